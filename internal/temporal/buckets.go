package temporal

import (
	"errors"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) (bool, error) {
	return InRange(t, w.Start, w.End)
}

// ErrInvalidStep is returned when a bucket step is not positive.
var ErrInvalidStep = errors.New("bucket step must be positive")

// DatetimeBuckets splits [start, end) into consecutive windows of length step.
// The last window is clipped to end.
func DatetimeBuckets(start, end time.Time, step time.Duration) ([]Window, error) {
	if step <= 0 {
		return nil, ErrInvalidStep
	}
	if _, err := Compare(start, end); err != nil {
		return nil, err
	}
	var out []Window
	for s := start; s.Before(end); s = s.Add(step) {
		e := s.Add(step)
		if e.After(end) {
			e = end
		}
		out = append(out, Window{Start: s, End: e})
	}
	return out, nil
}

// Partition is one bucket of a TimePartition.
type Partition struct {
	Window  Window
	Records []domain.EventRecord
}

// TimePartition groups records by the window their begin time falls in.
// Records outside every window are dropped; every window appears in the
// output, empty or not.
func TimePartition(records []domain.EventRecord, windows []Window) ([]Partition, error) {
	out := make([]Partition, len(windows))
	for i, w := range windows {
		out[i].Window = w
		for _, r := range records {
			in, err := w.Contains(r.BeginDateTime)
			if err != nil {
				return nil, err
			}
			if in {
				out[i].Records = append(out[i].Records, r)
			}
		}
	}
	return out, nil
}
