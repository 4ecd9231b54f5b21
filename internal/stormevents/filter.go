package stormevents

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
)

// Options narrows a load. Empty fields match everything.
type Options struct {
	// EventTypes keeps only these event types.
	EventTypes []domain.EventType `validate:"omitempty,dive,required"`
	// States keeps only these states, matched case-insensitively.
	States []string `validate:"omitempty,dive,required"`
	// Months keeps only these month names ("April"), matched case-insensitively.
	Months []string `validate:"omitempty,dive,required"`
	// Hours keeps only events beginning in these hours of the day (0-23).
	Hours []int `validate:"omitempty,dive,gte=0,lte=23"`
	// Region keeps only events whose begin position lies strictly inside the
	// polygon. Points are (lon, lat); the first ring is the outer boundary and
	// later rings are holes. Points on a boundary are outside.
	Region orb.Polygon `validate:"omitempty,dive,min=3"`
	// TimeZone is the zone loaded records are normalized into. Empty means UTC.
	TimeZone string
}

// Filter keeps the records matching every non-empty criterion. Months and
// hours are read from the calendar fields, so filter after normalizing when
// those should follow the target zone.
func Filter(records []domain.EventRecord, opts Options) []domain.EventRecord {
	m := newMatcher(opts)
	out := make([]domain.EventRecord, 0, len(records))
	for _, r := range records {
		if m.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

type matcher struct {
	types  map[domain.EventType]struct{}
	states map[string]struct{}
	months map[string]struct{}
	hours  map[int]struct{}
	region orb.Polygon
}

func newMatcher(opts Options) matcher {
	m := matcher{}
	if len(opts.EventTypes) > 0 {
		m.types = make(map[domain.EventType]struct{}, len(opts.EventTypes))
		for _, t := range opts.EventTypes {
			m.types[domain.ParseEventType(string(t))] = struct{}{}
		}
	}
	m.states = upperSet(opts.States)
	m.months = upperSet(opts.Months)
	if len(opts.Hours) > 0 {
		m.hours = make(map[int]struct{}, len(opts.Hours))
		for _, h := range opts.Hours {
			m.hours[h] = struct{}{}
		}
	}
	m.region = closeRings(opts.Region)
	return m
}

// closeRings repeats the first point of any open ring so boundary distances
// include the closing edge.
func closeRings(p orb.Polygon) orb.Polygon {
	if len(p) == 0 {
		return nil
	}
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		r = r.Clone()
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		out[i] = r
	}
	return out
}

func upperSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func (m matcher) matches(r domain.EventRecord) bool {
	return m.matchesStatic(r) && m.matchesCalendar(r)
}

// matchesStatic checks the criteria that do not change when a record moves
// between zones.
func (m matcher) matchesStatic(r domain.EventRecord) bool {
	if m.types != nil {
		if _, ok := m.types[r.EventType]; !ok {
			return false
		}
	}
	if m.states != nil {
		if _, ok := m.states[strings.ToUpper(r.State)]; !ok {
			return false
		}
	}
	if m.region != nil && !m.inRegion(r) {
		return false
	}
	return true
}

func (m matcher) inRegion(r domain.EventRecord) bool {
	if !r.HasBegin() {
		return false
	}
	pt := orb.Point{r.BeginLon, r.BeginLat}
	if !planar.PolygonContains(m.region, pt) {
		return false
	}
	for _, ring := range m.region {
		if planar.DistanceFrom(orb.LineString(ring), pt) == 0 {
			return false
		}
	}
	return true
}

func (m matcher) matchesCalendar(r domain.EventRecord) bool {
	if m.months != nil {
		if _, ok := m.months[strings.ToUpper(r.MonthName)]; !ok {
			return false
		}
	}
	if m.hours != nil {
		if _, ok := m.hours[domain.HourOf(r.BeginTime)]; !ok {
			return false
		}
	}
	return true
}
