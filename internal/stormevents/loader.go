package stormevents

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/fetch"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

var (
	// ErrInvalidRange is returned when a query ends before it starts.
	ErrInvalidRange = errors.New("end precedes start")
	// ErrInvalidOptions wraps malformed load options.
	ErrInvalidOptions = errors.New("invalid load options")
	// ErrYearNotListed marks years absent from the archive listing.
	ErrYearNotListed = errors.New("no details file listed for year")
)

// wallClockMargin widens the pre-normalization window. US zone offsets span
// UTC-11 to UTC+10, so no record moves by a full day when normalized.
const wallClockMargin = 24 * time.Hour

var validate = validator.New(validator.WithRequiredStructEnabled())

// Loader answers time window queries against the yearly archive files.
type Loader struct {
	fetcher    *fetch.Fetcher
	archive    *Archive
	reconciler *temporal.Reconciler
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(fetcher *fetch.Fetcher, archive *Archive, reconciler *temporal.Reconciler, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		fetcher:    fetcher,
		archive:    archive,
		reconciler: reconciler,
		logger:     logger,
		metrics:    metrics,
	}
}

// LoadEvents returns the records whose normalized begin time falls in
// [start, end), converted into opts.TimeZone and sorted by begin time. Naive
// bounds are read as wall clock in that zone.
//
// Years that cannot be listed, fetched or parsed are skipped and reported in
// a single warning; the records of the remaining years are still returned.
func (l *Loader) LoadEvents(ctx context.Context, start, end time.Time, opts Options) ([]domain.EventRecord, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	target, err := timezone.Resolve(opts.TimeZone)
	if err != nil {
		return nil, err
	}
	start = temporal.Localize(start, target)
	end = temporal.Localize(end, target)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInvalidRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	lo := temporal.WallClock(start).Add(-wallClockMargin)
	hi := temporal.WallClock(end).Add(wallClockMargin)
	years := yearsBetween(lo, hi)

	yearURLs, err := l.archive.YearURLs(ctx, years)
	if err != nil {
		return nil, err
	}

	m := newMatcher(opts)
	var urls []string
	var missing []fetch.Result[[]domain.EventRecord]
	for _, y := range years {
		u, ok := yearURLs[y]
		if !ok {
			missing = append(missing, fetch.Result[[]domain.EventRecord]{
				URL: fmt.Sprintf("%s (year %d)", l.archive.BaseURL(), y),
				Err: ErrYearNotListed,
			})
			continue
		}
		urls = append(urls, u)
	}

	results := fetch.FetchAndTransform(ctx, l.fetcher, urls, nil, func(_ context.Context, path string) ([]domain.EventRecord, error) {
		recs, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(recs, func(r domain.EventRecord) bool {
			return !m.matchesStatic(r) || !nearWindow(r, lo, hi)
		}), nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []domain.EventRecord
	for _, r := range results {
		if r.Success {
			raw = append(raw, r.Output...)
		}
	}
	if err := fetch.Failures(append(missing, results...)); err != nil {
		var dre *fetch.DataRetrievalError
		if errors.As(err, &dre) {
			l.logger.Warn("storm event data unavailable, returning partial results",
				"sources", dre.URLs, "error", dre.Detail())
			if l.metrics != nil {
				l.metrics.RetrievalErrors.Add(float64(len(dre.URLs)))
			}
		}
	}

	normalized, err := l.reconciler.Reconcile(ctx, raw, opts.TimeZone)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventRecord, 0, len(normalized))
	for _, r := range normalized {
		in, err := temporal.InRange(r.BeginDateTime, start, end)
		if err != nil {
			return nil, err
		}
		if in && m.matchesCalendar(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.EventRecord) int {
		return cmp.Or(a.BeginDateTime.Compare(b.BeginDateTime), cmp.Compare(a.EventID, b.EventID))
	})

	if l.metrics != nil {
		l.metrics.RecordsLoaded.Add(float64(len(out)))
	}
	l.logger.Info("loaded storm events",
		"start", start, "end", end, "years", years, "records", len(out))
	return out, nil
}

// Probe checks that the archive listing is reachable.
func (l *Loader) Probe(ctx context.Context) error {
	_, err := l.archive.YearURLs(ctx, nil)
	return err
}

func yearsBetween(lo, hi time.Time) []int {
	var years []int
	for y := lo.Year(); y <= hi.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// nearWindow compares a record's wall clock begin with the widened window.
// Zone-aware records are always kept for the exact check after
// normalization.
func nearWindow(r domain.EventRecord, lo, hi time.Time) bool {
	if !domain.IsNaive(r.BeginDateTime) {
		return true
	}
	return !r.BeginDateTime.Before(lo) && r.BeginDateTime.Before(hi)
}
