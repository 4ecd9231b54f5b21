// Package temporal localizes, converts and corrects storm event timestamps.
package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

// ErrTimestampComparison is wrapped by every naive-vs-aware comparison failure.
var ErrTimestampComparison = errors.New("cannot compare naive and zone-aware timestamps")

// TimestampComparisonError records the two operands of a rejected comparison.
type TimestampComparisonError struct {
	A, B time.Time
}

func (e *TimestampComparisonError) Error() string {
	return fmt.Sprintf("%s: %s vs %s", ErrTimestampComparison, describe(e.A), describe(e.B))
}

func (e *TimestampComparisonError) Unwrap() error { return ErrTimestampComparison }

func describe(t time.Time) string {
	if domain.IsNaive(t) {
		return t.Format("2006-01-02 15:04:05") + " (naive)"
	}
	return t.Format(time.RFC3339)
}

// Localize attaches zone z to t. A naive t keeps its wall clock; an aware t is
// converted so the instant is preserved.
func Localize(t time.Time, z timezone.TimeZone) time.Time {
	loc := z.Location()
	if domain.IsNaive(t) {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t.In(loc)
}

// WallClock drops the zone of t, keeping the wall clock it shows.
func WallClock(t time.Time) time.Time {
	if domain.IsNaive(t) {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), domain.Naive)
}

// Convert localizes t into from when naive and converts it to to. Both zone
// strings go through timezone.Resolve.
func Convert(t time.Time, from, to string) (time.Time, error) {
	fz, err := timezone.Resolve(from)
	if err != nil {
		return time.Time{}, err
	}
	tz, err := timezone.Resolve(to)
	if err != nil {
		return time.Time{}, err
	}
	return ConvertZones(t, fz, tz), nil
}

// ConvertZones is Convert for already resolved zones.
func ConvertZones(t time.Time, from, to timezone.TimeZone) time.Time {
	return Localize(t, from).In(to.Location())
}

// Compare orders a and b like time.Time.Compare but refuses to compare a naive
// timestamp with a zone-aware one.
func Compare(a, b time.Time) (int, error) {
	if domain.IsNaive(a) != domain.IsNaive(b) {
		return 0, &TimestampComparisonError{A: a, B: b}
	}
	return a.Compare(b), nil
}

// InRange reports whether start <= t < end.
func InRange(t, start, end time.Time) (bool, error) {
	lo, err := Compare(t, start)
	if err != nil {
		return false, err
	}
	hi, err := Compare(t, end)
	if err != nil {
		return false, err
	}
	return lo >= 0 && hi < 0, nil
}
