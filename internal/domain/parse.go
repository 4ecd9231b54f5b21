package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseFScale strips every non-digit from an F/EF rating ("EF3", "F1") and
// parses what remains. Ratings outside 0-5 are treated as unknown.
func ParseFScale(raw string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.Atoi(digits)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// PadHHMM left-pads an HHMM time-of-day field to width 4. The archive drops
// leading zeros ("930" for 09:30, "5" for 00:05).
func PadHHMM(hhmm string) string {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return hhmm
	}
	if len(hhmm) < 4 {
		hhmm = strings.Repeat("0", 4-len(hhmm)) + hhmm
	}
	return hhmm
}

// HourOf returns the hour encoded in the first two digits of a padded HHMM
// field, or -1 when the field is malformed.
func HourOf(hhmm string) int {
	hhmm = PadHHMM(hhmm)
	if len(hhmm) < 2 {
		return -1
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	return h
}
