package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package-level time source for cache freshness checks and
// publish timestamps. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time { return clock.Now() }

// Since returns the time elapsed since t according to the package clock.
func Since(t time.Time) time.Duration { return clock.Since(t) }
