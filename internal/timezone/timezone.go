// Package timezone resolves the time zone strings found in storm event
// records into fixed, DST-free UTC offsets.
package timezone

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // canonical identifiers must resolve on hosts without a zoneinfo database
)

// ErrInvalidTimeZone is the sentinel wrapped by every resolution failure.
var ErrInvalidTimeZone = errors.New("invalid time zone")

// InvalidTimeZoneError describes why a zone string could not be resolved.
type InvalidTimeZoneError struct {
	Value  string
	Reason string
}

func (e *InvalidTimeZoneError) Error() string {
	return fmt.Sprintf("invalid time zone %q: %s", e.Value, e.Reason)
}

func (e *InvalidTimeZoneError) Unwrap() error { return ErrInvalidTimeZone }

func invalid(value, format string, args ...any) error {
	return &InvalidTimeZoneError{Value: value, Reason: fmt.Sprintf(format, args...)}
}

// TimeZone is a fixed-offset zone. Offset is always the standard (non-DST)
// offset; DST variants add one hour on top of it.
type TimeZone struct {
	Abbrev string
	Offset time.Duration
	DST    bool
	States []string
}

// UTCOffset is the offset actually applied to timestamps in this zone.
func (z TimeZone) UTCOffset() time.Duration {
	if z.DST {
		return z.Offset + time.Hour
	}
	return z.Offset
}

// Name returns the POSIX-style identifier for the zone's applied offset,
// e.g. "Etc/GMT+6" for UTC-6.
func (z TimeZone) Name() string {
	return EtcName(z.UTCOffset())
}

// Location returns a fixed *time.Location for the zone's applied offset.
func (z TimeZone) Location() *time.Location {
	if z.UTCOffset() == 0 {
		return time.UTC
	}
	return time.FixedZone(z.Name(), int(z.UTCOffset()/time.Second))
}

// ToDST returns the daylight-saving variant of a standard zone. Arizona does
// not observe DST and is dropped from the Mountain daylight variant. UTC and
// zones that are already DST are returned unchanged.
func (z TimeZone) ToDST() TimeZone {
	if z.DST || z.Abbrev == UTC.Abbrev {
		return z
	}
	d := z
	d.DST = true
	if strings.HasSuffix(z.Abbrev, "ST") {
		d.Abbrev = strings.TrimSuffix(z.Abbrev, "ST") + "DT"
	} else {
		d.Abbrev = EtcName(d.UTCOffset())
	}
	d.States = slices.DeleteFunc(slices.Clone(z.States), func(s string) bool {
		return s == "ARIZONA"
	})
	return d
}

func (z TimeZone) String() string {
	return fmt.Sprintf("%s (%s)", z.Abbrev, z.Name())
}

// EtcName formats an offset as an Etc/GMT identifier. POSIX inverts the sign:
// UTC-6 is Etc/GMT+6.
func EtcName(offset time.Duration) string {
	if offset == 0 {
		return "UTC"
	}
	if offset%time.Hour != 0 {
		sign := '+'
		if offset < 0 {
			sign = '-'
		}
		a := offset.Abs()
		return fmt.Sprintf("UTC%c%02d:%02d", sign, int(a/time.Hour), int(a%time.Hour/time.Minute))
	}
	return fmt.Sprintf("Etc/GMT%+d", -int(offset/time.Hour))
}

// FromOffset builds an anonymous standard zone for a fixed offset.
func FromOffset(offset time.Duration) TimeZone {
	return TimeZone{Abbrev: EtcName(offset), Offset: offset}
}

// Standard zones. Each state appears in at most one of them; states that span
// several zones (Oregon, Idaho, Texas, ...) appear in none.
var (
	UTC  = TimeZone{Abbrev: "UTC"}
	SST  = TimeZone{Abbrev: "SST", Offset: -11 * time.Hour, States: []string{"AMERICAN SAMOA"}}
	HST  = TimeZone{Abbrev: "HST", Offset: -10 * time.Hour, States: []string{"HAWAII"}}
	AKST = TimeZone{Abbrev: "AKST", Offset: -9 * time.Hour, States: []string{"ALASKA"}}

	PST = TimeZone{Abbrev: "PST", Offset: -8 * time.Hour, States: []string{
		"WASHINGTON", "CALIFORNIA", "NEVADA",
	}}

	MST = TimeZone{Abbrev: "MST", Offset: -7 * time.Hour, States: []string{
		"MONTANA", "WYOMING", "UTAH", "COLORADO", "ARIZONA", "NEW MEXICO",
	}}

	CST = TimeZone{Abbrev: "CST", Offset: -6 * time.Hour, States: []string{
		"OKLAHOMA", "MINNESOTA", "IOWA", "WISCONSIN", "MISSOURI", "ARKANSAS",
		"LOUISIANA", "ILLINOIS", "MISSISSIPPI", "ALABAMA",
	}}

	EST = TimeZone{Abbrev: "EST", Offset: -5 * time.Hour, States: []string{
		"OHIO", "WEST VIRGINIA", "PENNSYLVANIA", "NEW YORK", "VERMONT",
		"NEW HAMPSHIRE", "MAINE", "MASSACHUSETTS", "RHODE ISLAND", "CONNECTICUT",
		"NEW JERSEY", "DELAWARE", "MARYLAND", "DISTRICT OF COLUMBIA", "VIRGINIA",
		"NORTH CAROLINA", "SOUTH CAROLINA", "GEORGIA",
	}}

	AST = TimeZone{Abbrev: "AST", Offset: -4 * time.Hour, States: []string{"PUERTO RICO", "VIRGIN ISLANDS"}}
	GST = TimeZone{Abbrev: "GST", Offset: 10 * time.Hour, States: []string{"GUAM"}}
)

var standardZones = []TimeZone{SST, HST, AKST, PST, MST, CST, EST, AST, GST}

// Zones returns the standard zones of the registry, UTC excluded.
func Zones() []TimeZone {
	return slices.Clone(standardZones)
}

var (
	byAbbrev = map[string]TimeZone{}
	byState  = map[string]TimeZone{}
)

func init() {
	for _, z := range standardZones {
		byAbbrev[z.Abbrev] = z
		for _, s := range z.States {
			byState[s] = z
		}
	}
}

// knownTypos are data-entry errors seen in the archive. They are rejected
// rather than guessed at.
var knownTypos = map[string]struct{}{
	"SCT": {},
	"CSC": {},
	"UNK": {},
}

var (
	abbrevPattern = regexp.MustCompile(`^([A-Z]{1,5})([+-]?\d{1,2})?$`)
	etcPattern    = regexp.MustCompile(`^(?i:etc/(?:gmt|utc))([+-]\d{1,2})?$`)
	clockPattern  = regexp.MustCompile(`^UTC([+-])(\d{2}):(\d{2})$`)
)

// Resolve parses a zone string: a plain abbreviation ("PST", "CDT"), an
// abbreviation with an explicit offset ("CST-6", "GST10"), an Etc/GMT or IANA
// identifier, a clock offset ("UTC+05:30"), or the empty string for UTC.
// Every name EtcName produces resolves back to its offset.
func Resolve(value string) (TimeZone, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return UTC, nil
	}
	if strings.Contains(s, "/") {
		return resolveIdentifier(value, s)
	}

	u := strings.ToUpper(s)
	switch u {
	case "UTC", "GMT", "UCT", "Z":
		return UTC, nil
	}
	if _, ok := knownTypos[u]; ok {
		return TimeZone{}, invalid(value, "known data-entry typo")
	}

	if m := clockPattern.FindStringSubmatch(u); m != nil {
		return resolveClock(value, m[1], m[2], m[3])
	}

	m := abbrevPattern.FindStringSubmatch(u)
	if m == nil {
		return TimeZone{}, invalid(value, "unrecognized format")
	}
	abbrev, suffix := m[1], m[2]

	if abbrev == "UTC" || abbrev == "GMT" {
		if suffix == "" {
			return UTC, nil
		}
		n, _ := strconv.Atoi(suffix)
		return FromOffset(time.Duration(n) * time.Hour), nil
	}

	if suffix == "" {
		if isAtlanticOrAlaska(abbrev) {
			return TimeZone{}, invalid(value, "ambiguous between Alaska and Atlantic time; disambiguate by state")
		}
		return lookupAbbrev(value, abbrev)
	}

	n, err := strconv.Atoi(suffix)
	if err != nil {
		return TimeZone{}, invalid(value, "malformed offset %q", suffix)
	}
	offset := time.Duration(n) * time.Hour

	if isAtlanticOrAlaska(abbrev) {
		for _, base := range []TimeZone{AST, AKST} {
			z := base
			if abbrev == "ADT" {
				z = base.ToDST()
			}
			if z.UTCOffset() == offset {
				return z, nil
			}
		}
		return TimeZone{}, invalid(value, "offset %+d matches neither Atlantic nor Alaska time", n)
	}

	z, err := lookupAbbrev(value, abbrev)
	if err != nil {
		return TimeZone{}, err
	}
	if z.UTCOffset() != offset {
		return TimeZone{}, invalid(value, "explicit offset %+d disagrees with %s (%s)", n, z.Abbrev, z.Name())
	}
	return z, nil
}

func resolveClock(value, sign, hh, mm string) (TimeZone, error) {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 14 || m > 59 {
		return TimeZone{}, invalid(value, "offset out of range")
	}
	offset := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if sign == "-" {
		offset = -offset
	}
	return FromOffset(offset), nil
}

func isAtlanticOrAlaska(abbrev string) bool {
	return abbrev == "AST" || abbrev == "ADT"
}

// lookupAbbrev maps a standard abbreviation, or its daylight form with the
// 'D' replaced by 'S', onto the registry.
func lookupAbbrev(value, abbrev string) (TimeZone, error) {
	if z, ok := byAbbrev[abbrev]; ok {
		return z, nil
	}
	if strings.Contains(abbrev, "D") {
		if z, ok := byAbbrev[strings.ReplaceAll(abbrev, "D", "S")]; ok {
			return z.ToDST(), nil
		}
	}
	return TimeZone{}, invalid(value, "unknown abbreviation %q", abbrev)
}

// resolveIdentifier handles Etc/GMT offsets and IANA names. IANA zones are
// reduced to their standard offset: whichever of the January and July
// offsets is smaller, since DST only ever adds time.
func resolveIdentifier(value, s string) (TimeZone, error) {
	if m := etcPattern.FindStringSubmatch(s); m != nil {
		if m[1] == "" {
			return UTC, nil
		}
		n, _ := strconv.Atoi(m[1])
		return FromOffset(time.Duration(-n) * time.Hour), nil
	}

	loc, err := time.LoadLocation(s)
	if err != nil {
		return TimeZone{}, invalid(value, "unknown zone identifier")
	}
	_, jan := time.Date(2001, time.January, 1, 0, 0, 0, 0, loc).Zone()
	_, jul := time.Date(2001, time.July, 1, 0, 0, 0, 0, loc).Zone()
	std := time.Duration(min(jan, jul)) * time.Second
	z := FromOffset(std)
	if named, ok := matchStandard(std); ok {
		z.Abbrev = named.Abbrev
	}
	return z, nil
}

func matchStandard(offset time.Duration) (TimeZone, bool) {
	for _, z := range standardZones {
		if z.Offset == offset {
			return z, true
		}
	}
	return TimeZone{}, false
}

// ForState returns the standard zone that owns a state name such as
// "KANSAS" or "new mexico". States split across zones report false.
func ForState(state string) (TimeZone, bool) {
	z, ok := byState[strings.ToUpper(strings.TrimSpace(state))]
	return z, ok
}

// DisambiguateAtlantic resolves the bare "AST"/"ADT" abbreviation using the
// record's state: Alaska rows mean Alaska time, all others Atlantic.
func DisambiguateAtlantic(abbrev, state string) (TimeZone, error) {
	u := strings.ToUpper(strings.TrimSpace(abbrev))
	if !isAtlanticOrAlaska(u) {
		return Resolve(abbrev)
	}
	z := AST
	if strings.EqualFold(strings.TrimSpace(state), "ALASKA") {
		z = AKST
	}
	if u == "ADT" {
		z = z.ToDST()
	}
	return z, nil
}
