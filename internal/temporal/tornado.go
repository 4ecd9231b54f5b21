package temporal

import (
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
)

// CorrectionPolicy holds the thresholds used to repair tornado begin/end
// pairs. The values are empirical; none of them is a physical limit.
type CorrectionPolicy struct {
	// LongevityLimit is the longest plausible tornado lifetime. The longest
	// on record (Tri-State, 1925) lasted about 3.5 hours.
	LongevityLimit time.Duration
	// MinSpeedMPH is the slowest plausible ground speed for tracks lasting
	// an hour or more.
	MinSpeedMPH float64
	// BriefTouchdownMiles is the path length under which an implausibly long
	// record is taken to be a brief touchdown.
	BriefTouchdownMiles float64
}

// DefaultCorrectionPolicy returns the thresholds used by the loader.
func DefaultCorrectionPolicy() CorrectionPolicy {
	return CorrectionPolicy{
		LongevityLimit:      4 * time.Hour,
		MinSpeedMPH:         8,
		BriefTouchdownMiles: 0.3,
	}
}

const oneDay = 24 * time.Hour

// CorrectTornadoTimes repairs malformed begin/end pairs of tornado records and
// re-derives their calendar fields. Other event types are returned unchanged.
// The input slice is not modified.
func CorrectTornadoTimes(records []domain.EventRecord, p CorrectionPolicy) []domain.EventRecord {
	out := make([]domain.EventRecord, len(records))
	for i, r := range records {
		if r.IsTornado() {
			r = SyncCalendarFields(p.Correct(r))
		}
		out[i] = r
	}
	return out
}

// Correct applies the policy to a single record's begin and end timestamps.
func (p CorrectionPolicy) Correct(r domain.EventRecord) domain.EventRecord {
	begin, end := r.BeginDateTime, r.EndDateTime

	switch {
	case !end.Before(begin):
		end = p.correctOnlyEnd(begin, end, r.TorLength)
	case begin.Sub(end) < p.LongevityLimit:
		// Entered the wrong way round.
		begin, end = end, begin
		end = p.correctOnlyEnd(begin, end, r.TorLength)
	default:
		// End date entered one day early.
		end = end.Add(oneDay)
	}

	r.BeginDateTime, r.EndDateTime = begin, end
	return r
}

// correctOnlyEnd fixes the end of a pair already known to satisfy end >= begin.
func (p CorrectionPolicy) correctOnlyEnd(begin, end time.Time, lengthMiles float64) time.Time {
	elapsed := end.Sub(begin)

	switch {
	case elapsed >= p.LongevityLimit:
		if lengthMiles < p.BriefTouchdownMiles {
			return begin
		}
		if !end.Before(begin.Add(oneDay)) {
			// End day off by one.
			return begin.Add(elapsed % oneDay)
		}
		return begin
	case elapsed >= time.Hour:
		mph := lengthMiles / elapsed.Hours()
		if mph < p.MinSpeedMPH {
			// End hour off by one.
			hours := elapsed / time.Hour
			return begin.Add(elapsed%time.Hour + (hours-1)*time.Hour)
		}
	}
	return end
}
