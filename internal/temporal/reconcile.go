package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

// Reconciler moves records from whatever zone their CZ_TIMEZONE claims into a
// single reference zone.
type Reconciler struct {
	locator domain.TimeZoneLocator
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler. locator may be nil, in which case the
// coordinate fallback is skipped.
func NewReconciler(locator domain.TimeZoneLocator, logger *slog.Logger) *Reconciler {
	return &Reconciler{locator: locator, logger: logger}
}

// SourceZone determines the zone a record's timestamps were entered in:
//
//  1. CZ_TIMEZONE resolved directly;
//  2. the ambiguous "AST" disambiguated by state;
//  3. the standard zone of the record's state;
//  4. the standard offset at the record's begin coordinates.
//
// When every step fails the error from step 1 is returned, not the error of
// the last fallback.
func (r *Reconciler) SourceZone(ctx context.Context, rec domain.EventRecord) (timezone.TimeZone, error) {
	z, err := timezone.Resolve(rec.CZTimezone)
	if err == nil {
		return z, nil
	}

	switch strings.ToUpper(strings.TrimSpace(rec.CZTimezone)) {
	case "AST", "ADT":
		return timezone.DisambiguateAtlantic(rec.CZTimezone, rec.State)
	}

	if sz, ok := timezone.ForState(rec.State); ok {
		r.logger.Debug("time zone resolved by state",
			"event_id", rec.EventID, "cz_timezone", rec.CZTimezone, "state", rec.State, "zone", sz.Abbrev)
		return sz, nil
	}

	if r.locator != nil && rec.HasBegin() {
		offset, lerr := r.locator.StandardOffset(ctx, rec.BeginLat, rec.BeginLon)
		if lerr == nil {
			lz := timezone.FromOffset(offset)
			r.logger.Debug("time zone resolved by location",
				"event_id", rec.EventID, "cz_timezone", rec.CZTimezone, "zone", lz.Name())
			return lz, nil
		}
		r.logger.Warn("time zone lookup failed",
			"event_id", rec.EventID, "lat", rec.BeginLat, "lon", rec.BeginLon, "error", lerr)
	}

	return timezone.TimeZone{}, err
}

// ReconcileRecord converts a record's timestamps into target, re-derives its
// calendar fields and stamps CZ_TIMEZONE with the target abbreviation.
func (r *Reconciler) ReconcileRecord(ctx context.Context, rec domain.EventRecord, target timezone.TimeZone) (domain.EventRecord, error) {
	src, err := r.SourceZone(ctx, rec)
	if err != nil {
		return rec, err
	}
	rec.BeginDateTime = ConvertZones(rec.BeginDateTime, src, target)
	rec.EndDateTime = ConvertZones(rec.EndDateTime, src, target)
	rec = SyncCalendarFields(rec)
	rec.CZTimezone = target.Abbrev
	return rec, nil
}

// Reconcile converts every record into the zone named by target. The first
// record that cannot be placed in any zone aborts the call.
func (r *Reconciler) Reconcile(ctx context.Context, records []domain.EventRecord, target string) ([]domain.EventRecord, error) {
	tz, err := timezone.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("target zone: %w", err)
	}

	out := make([]domain.EventRecord, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		converted, err := r.ReconcileRecord(ctx, rec, tz)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", rec.EventID, err)
		}
		out[i] = converted
	}
	return out, nil
}
