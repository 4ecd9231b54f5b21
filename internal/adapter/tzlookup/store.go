package tzlookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

const offsetKeyPrefix = "tz_offset:"

// OpenStore opens (or creates) the on-disk lookup cache in dir.
func OpenStore(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open lookup cache %s: %w", dir, err)
	}
	return db, nil
}

type storedOffset struct {
	OffsetSeconds int64     `json:"offset_seconds"`
	StoredAt      time.Time `json:"stored_at"`
}

// PersistentLocator wraps a TimeZoneLocator with a BadgerDB cache that
// survives restarts. Zone boundaries practically never move, so entries do
// not expire.
type PersistentLocator struct {
	inner   domain.TimeZoneLocator
	db      *badger.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPersistentLocator creates a persistent cache decorator. metrics may be
// nil.
func NewPersistentLocator(inner domain.TimeZoneLocator, db *badger.DB, logger *slog.Logger, metrics *observability.Metrics) *PersistentLocator {
	return &PersistentLocator{inner: inner, db: db, logger: logger, metrics: metrics}
}

func (p *PersistentLocator) StandardOffset(ctx context.Context, lat, lon float64) (time.Duration, error) {
	key := []byte(offsetKeyPrefix + coordKey(lat, lon))

	offset, ok, err := p.get(key)
	if err != nil {
		p.logger.Warn("lookup cache read failed", "lat", lat, "lon", lon, "error", err)
	}
	if ok {
		observeCache(p.metrics, "disk", "hit")
		return offset, nil
	}
	observeCache(p.metrics, "disk", "miss")

	offset, err = p.inner.StandardOffset(ctx, lat, lon)
	if err != nil {
		return offset, err
	}
	if err := p.put(key, offset); err != nil {
		p.logger.Warn("lookup cache write failed", "lat", lat, "lon", lon, "error", err)
	}
	return offset, nil
}

func (p *PersistentLocator) get(key []byte) (time.Duration, bool, error) {
	var stored storedOffset
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return time.Duration(stored.OffsetSeconds) * time.Second, true, nil
}

func (p *PersistentLocator) put(key []byte, offset time.Duration) error {
	data, err := json.Marshal(storedOffset{
		OffsetSeconds: int64(offset / time.Second),
		StoredAt:      domain.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal offset: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
