package cluster

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// ErrEmptyCluster is returned by aggregates that are undefined without points.
var ErrEmptyCluster = errors.New("cluster has no points")

// endPad is added to the latest point so a cluster's end is exclusive.
const endPad = time.Minute

// Cluster is one storm family: the points sharing a label, plus a shared,
// read-only reference to the record table the points were sampled from.
type Cluster struct {
	label  int
	points []track.Point
	table  []domain.EventRecord
}

func newCluster(label int, points []track.Point, table []domain.EventRecord) *Cluster {
	return &Cluster{label: label, points: points, table: table}
}

// Label returns the algorithm's label, or NoiseLabel for the noise cluster.
func (c *Cluster) Label() int { return c.label }

// IsNoise reports whether c holds the unclustered points.
func (c *Cluster) IsNoise() bool { return c.label == NoiseLabel }

// Points returns a copy of the cluster's points.
func (c *Cluster) Points() []track.Point { return slices.Clone(c.points) }

// Len is the number of points, which at one-minute spacing is the number of
// tornado minutes.
func (c *Cluster) Len() int { return len(c.points) }

// Begin is the earliest point timestamp.
func (c *Cluster) Begin() time.Time {
	if len(c.points) == 0 {
		return time.Time{}
	}
	begin := c.points[0].Timestamp
	for _, p := range c.points[1:] {
		if p.Timestamp.Before(begin) {
			begin = p.Timestamp
		}
	}
	return begin
}

// End is the latest point timestamp plus one minute.
func (c *Cluster) End() time.Time {
	if len(c.points) == 0 {
		return time.Time{}
	}
	end := c.points[0].Timestamp
	for _, p := range c.points[1:] {
		if p.Timestamp.After(end) {
			end = p.Timestamp
		}
	}
	return end.Add(endPad)
}

// Centroid is the mean position of the cluster's points.
func (c *Cluster) Centroid() (lat, lon float64, err error) {
	if len(c.points) == 0 {
		return 0, 0, ErrEmptyCluster
	}
	for _, p := range c.points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(c.points))
	return lat / n, lon / n, nil
}

// Events returns the records that contributed at least one point, once each,
// in table order.
func (c *Cluster) Events() []domain.EventRecord {
	ids := make(map[int64]struct{}, len(c.points))
	for _, p := range c.points {
		ids[p.EventID] = struct{}{}
	}
	var out []domain.EventRecord
	for _, rec := range c.table {
		if _, ok := ids[rec.EventID]; ok {
			out = append(out, rec)
			delete(ids, rec.EventID)
		}
	}
	return out
}

// Summary is a compact description of a cluster's extent.
type Summary struct {
	Label      int           `json:"label"`
	Size       int           `json:"size"`
	MinTime    time.Time     `json:"min_time"`
	MaxTime    time.Time     `json:"max_time"`
	TimeSpread time.Duration `json:"time_spread"`
	CenterLat  float64       `json:"center_lat"`
	CenterLon  float64       `json:"center_lon"`
}

// Summary returns the cluster's extent. Empty clusters have no summary.
func (c *Cluster) Summary() (Summary, error) {
	lat, lon, err := c.Centroid()
	if err != nil {
		return Summary{}, err
	}
	minT := c.Begin()
	maxT := c.End().Add(-endPad)
	return Summary{
		Label:      c.label,
		Size:       len(c.points),
		MinTime:    minT,
		MaxTime:    maxT,
		TimeSpread: maxT.Sub(minT),
		CenterLat:  lat,
		CenterLon:  lon,
	}, nil
}

// TornadoStats aggregates the tornado segments of a cluster.
type TornadoStats struct {
	// EF counts segments by rating, EF0 through EF5.
	EF [6]int `json:"ef"`
	// Unknown counts segments with a missing or unparseable rating.
	Unknown    int           `json:"ef_unknown"`
	Segments   int           `json:"segments"`
	TotalTime  time.Duration `json:"total_time"`
	Fatalities int           `json:"fatalities"`
	Injuries   int           `json:"injuries"`
}

// TornadoStats tallies the tornado records among the cluster's events.
// Casualties count direct deaths and injuries only.
func (c *Cluster) TornadoStats() TornadoStats {
	var s TornadoStats
	for _, rec := range c.Events() {
		if !rec.IsTornado() {
			continue
		}
		s.Segments++
		if ef, ok := rec.EFRating(); ok {
			s.EF[ef]++
		} else {
			s.Unknown++
		}
		s.TotalTime += rec.Longevity()
		s.Fatalities += rec.DeathsDirect
		s.Injuries += rec.InjuriesDirect
	}
	return s
}

// DescribeOptions tunes Describe.
type DescribeOptions struct {
	// ShowLabel prefixes the time range with "(label) ".
	ShowLabel bool
	// Zone, when set, is appended to the time range.
	Zone string
}

const describeLayout = "2006-01-02 15:04"

// Describe renders a multi-line, human readable account of the cluster:
// time range, segment counts by rating, casualties, and tornado minutes.
func (c *Cluster) Describe(opts DescribeOptions) string {
	var lines []string

	if c.IsNoise() {
		lines = append(lines, "(Outliers)")
	} else {
		tp := fmt.Sprintf("%s to %s", c.Begin().Format(describeLayout), c.End().Format(describeLayout))
		if opts.Zone != "" {
			tp += " " + opts.Zone
		}
		if opts.ShowLabel {
			tp = fmt.Sprintf("(%d) %s", c.label, tp)
		}
		lines = append(lines, tp)
	}

	stats := c.TornadoStats()
	parts := make([]string, 0, len(stats.EF)+1)
	for rating, n := range stats.EF {
		parts = append(parts, fmt.Sprintf("EF%d: %d", rating, n))
	}
	if stats.Unknown > 0 {
		parts = append(parts, fmt.Sprintf("EF?: %d", stats.Unknown))
	}
	lines = append(lines,
		fmt.Sprintf("%d segments (%s)", stats.Segments, strings.Join(parts, ", ")),
		fmt.Sprintf("%d fatalities | %d injuries", stats.Fatalities, stats.Injuries),
		fmt.Sprintf("%d tornado minutes", c.Len()),
	)
	return strings.Join(lines, "\n")
}

// Equal reports whether two clusters hold the same points and resolve to the
// same events, regardless of label or ordering.
func (c *Cluster) Equal(o *Cluster) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil || len(c.points) != len(o.points) {
		return false
	}

	a, b := sortedPoints(c.points), sortedPoints(o.points)
	for i := range a {
		if a[i].EventID != b[i].EventID || a[i].Lat != b[i].Lat || a[i].Lon != b[i].Lon ||
			!a[i].Timestamp.Equal(b[i].Timestamp) {
			return false
		}
	}

	ea, eb := sortedEvents(c.Events()), sortedEvents(o.Events())
	if len(ea) != len(eb) {
		return false
	}
	for i := range ea {
		if !ea[i].Equal(eb[i]) {
			return false
		}
	}
	return true
}

func sortedPoints(points []track.Point) []track.Point {
	out := slices.Clone(points)
	slices.SortFunc(out, comparePoints)
	return out
}

func comparePoints(a, b track.Point) int {
	return cmp.Or(
		cmp.Compare(a.EventID, b.EventID),
		a.Timestamp.Compare(b.Timestamp),
		cmp.Compare(a.Lat, b.Lat),
		cmp.Compare(a.Lon, b.Lon),
	)
}

func sortedEvents(events []domain.EventRecord) []domain.EventRecord {
	slices.SortFunc(events, func(a, b domain.EventRecord) int {
		return cmp.Compare(a.EventID, b.EventID)
	})
	return events
}
