// Package track expands storm event begin/end pairs into evenly spaced
// points along the event's path.
package track

import (
	"fmt"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

// Point is one sample along an event's path.
type Point struct {
	EventID   int64
	Lat       float64
	Lon       float64
	Timestamp time.Time
}

// Options controls the sampling density.
type Options struct {
	// SpacingMinutes is the time between consecutive samples. Values <= 0
	// mean one minute.
	SpacingMinutes float64
	// IncludeEndpoint places the last sample exactly on the end position.
	IncludeEndpoint bool
}

// DefaultOptions samples once a minute without the endpoint.
func DefaultOptions() Options {
	return Options{SpacingMinutes: 1}
}

// Zone resolves the zone a record's timestamps are expressed in, using the
// record's state to settle the ambiguous "AST".
func Zone(rec domain.EventRecord) (timezone.TimeZone, error) {
	return timezone.DisambiguateAtlantic(rec.CZTimezone, rec.State)
}

// Discretize samples a record's path. The number of samples is the elapsed
// minutes divided by the spacing, rounded down, and never less than one.
// Latitude, longitude and time are interpolated with the same endpoint rule so
// the i-th sample of each belongs together. Records without an end position
// are sampled in place at their begin position.
func Discretize(rec domain.EventRecord, opts Options) ([]Point, error) {
	zone, err := Zone(rec)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", rec.EventID, err)
	}
	spacing := opts.SpacingMinutes
	if spacing <= 0 {
		spacing = 1
	}

	begin := temporal.Localize(rec.BeginDateTime, zone)
	end := temporal.Localize(rec.EndDateTime, zone)

	endLat, endLon := rec.EndLat, rec.EndLon
	if !rec.HasTrack() {
		endLat, endLon = rec.BeginLat, rec.BeginLon
	}

	span := end.Sub(begin)
	n := int(span.Minutes() / spacing)
	if n < 1 {
		n = 1
	}

	lats := linspace(rec.BeginLat, endLat, n, opts.IncludeEndpoint)
	lons := linspace(rec.BeginLon, endLon, n, opts.IncludeEndpoint)
	offsets := linspace(0, float64(span), n, opts.IncludeEndpoint)

	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			EventID:   rec.EventID,
			Lat:       lats[i],
			Lon:       lons[i],
			Timestamp: begin.Add(time.Duration(offsets[i])),
		}
	}
	return points, nil
}

// DiscretizeAll discretizes every record with a begin position and returns
// the samples in record order.
func DiscretizeAll(records []domain.EventRecord, opts Options) ([]Point, error) {
	var points []Point
	for _, rec := range records {
		if !rec.HasBegin() {
			continue
		}
		pts, err := Discretize(rec, opts)
		if err != nil {
			return nil, err
		}
		points = append(points, pts...)
	}
	return points, nil
}

// linspace returns n evenly spaced values from start towards stop. With
// endpoint the last value is stop; without it the spacing is (stop-start)/n.
// Time is interpolated as an offset from begin rather than as absolute
// nanoseconds, which keeps every value exactly representable in a float64.
func linspace(start, stop float64, n int, endpoint bool) []float64 {
	out := make([]float64, n)
	div := n
	if endpoint {
		div = n - 1
	}
	if div <= 0 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(div)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	if endpoint {
		out[n-1] = stop
	}
	return out
}
