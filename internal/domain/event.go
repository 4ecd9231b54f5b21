package domain

import (
	"math"
	"strings"
	"time"
)

// EventType is the NCEI storm event category (the EVENT_TYPE column).
type EventType string

const (
	Tornado          EventType = "Tornado"
	Hail             EventType = "Hail"
	ThunderstormWind EventType = "Thunderstorm Wind"
	FunnelCloud      EventType = "Funnel Cloud"
	Waterspout       EventType = "Waterspout"
)

var knownEventTypes = []EventType{Tornado, Hail, ThunderstormWind, FunnelCloud, Waterspout}

// ParseEventType matches value case-insensitively against the known event
// types. Unknown values are returned as-is so uncommon categories survive a
// load/export round trip.
func ParseEventType(value string) EventType {
	value = strings.TrimSpace(value)
	for _, t := range knownEventTypes {
		if strings.EqualFold(value, string(t)) {
			return t
		}
	}
	return EventType(value)
}

// Naive marks timestamps that carry a wall clock but no zone. Archive rows are
// loaded as naive and only become zone-aware once localized.
var Naive = time.FixedZone("NAIVE", 0)

// IsNaive reports whether t carries the Naive sentinel location.
func IsNaive(t time.Time) bool {
	return t.Location() == Naive
}

// EventRecord is one row of the StormEvents details archive.
type EventRecord struct {
	EventID   int64
	EpisodeID int64
	EventType EventType
	State     string
	Year      int
	MonthName string

	BeginYearMonth string
	BeginDay       int
	BeginTime      string // HHMM, zero-padded to width 4
	EndYearMonth   string
	EndDay         int
	EndTime        string

	BeginDateTime time.Time
	EndDateTime   time.Time

	CZType     string
	CZName     string
	CZTimezone string

	// Coordinates are NaN when the archive leaves them blank.
	BeginLat float64
	BeginLon float64
	EndLat   float64
	EndLon   float64

	TorFScale string
	TorLength float64 // miles
	TorWidth  float64 // yards

	InjuriesDirect   int
	InjuriesIndirect int
	DeathsDirect     int
	DeathsIndirect   int

	EpisodeNarrative string
	EventNarrative   string
}

// IsTornado reports whether the record is a tornado segment.
func (r EventRecord) IsTornado() bool {
	return r.EventType == Tornado
}

// HasBegin reports whether the record has a usable begin position.
func (r EventRecord) HasBegin() bool {
	return !math.IsNaN(r.BeginLat) && !math.IsNaN(r.BeginLon)
}

// HasTrack reports whether the record has both a begin and an end position.
func (r EventRecord) HasTrack() bool {
	return r.HasBegin() && !math.IsNaN(r.EndLat) && !math.IsNaN(r.EndLon)
}

// Longevity is the elapsed time between begin and end.
func (r EventRecord) Longevity() time.Duration {
	return r.EndDateTime.Sub(r.BeginDateTime)
}

// minSpeedLongevity is the shortest longevity for which a ground speed is
// reported; shorter segments produce meaningless speeds.
const minSpeedLongevity = 30 * time.Second

// SpeedMPH is the implied ground speed of a track in miles per hour, or NaN
// when the longevity is under 30 seconds or the length is unknown.
func (r EventRecord) SpeedMPH() float64 {
	longevity := r.Longevity()
	if longevity < minSpeedLongevity || math.IsNaN(r.TorLength) {
		return math.NaN()
	}
	return r.TorLength / longevity.Hours()
}

// EFRating returns the (E)F-scale integer of a tornado. Missing or
// unparseable ratings ("EFU", "") return false.
func (r EventRecord) EFRating() (int, bool) {
	return ParseFScale(r.TorFScale)
}

// Equal reports whether two records hold the same values. Timestamps are
// compared as instants and NaN coordinates compare equal to each other.
func (r EventRecord) Equal(o EventRecord) bool {
	return r.EventID == o.EventID &&
		r.EpisodeID == o.EpisodeID &&
		r.EventType == o.EventType &&
		r.State == o.State &&
		r.Year == o.Year &&
		r.MonthName == o.MonthName &&
		r.BeginYearMonth == o.BeginYearMonth &&
		r.BeginDay == o.BeginDay &&
		r.BeginTime == o.BeginTime &&
		r.EndYearMonth == o.EndYearMonth &&
		r.EndDay == o.EndDay &&
		r.EndTime == o.EndTime &&
		sameInstant(r.BeginDateTime, o.BeginDateTime) &&
		sameInstant(r.EndDateTime, o.EndDateTime) &&
		r.CZType == o.CZType &&
		r.CZName == o.CZName &&
		r.CZTimezone == o.CZTimezone &&
		sameFloat(r.BeginLat, o.BeginLat) &&
		sameFloat(r.BeginLon, o.BeginLon) &&
		sameFloat(r.EndLat, o.EndLat) &&
		sameFloat(r.EndLon, o.EndLon) &&
		r.TorFScale == o.TorFScale &&
		sameFloat(r.TorLength, o.TorLength) &&
		sameFloat(r.TorWidth, o.TorWidth) &&
		r.InjuriesDirect == o.InjuriesDirect &&
		r.InjuriesIndirect == o.InjuriesIndirect &&
		r.DeathsDirect == o.DeathsDirect &&
		r.DeathsIndirect == o.DeathsIndirect &&
		r.EpisodeNarrative == o.EpisodeNarrative &&
		r.EventNarrative == o.EventNarrative
}

// sameInstant treats a naive and an aware timestamp as different even when
// their wall clocks match.
func sameInstant(a, b time.Time) bool {
	return IsNaive(a) == IsNaive(b) && a.Equal(b)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
