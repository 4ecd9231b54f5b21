package domain

import (
	"context"
	"time"
)

// TimeZoneLocator resolves the time zone in effect at a coordinate.
type TimeZoneLocator interface {
	// StandardOffset returns the zone's UTC offset with any daylight saving
	// component removed. Historical rows predate per-instant DST rules, so
	// callers only ever work with the fixed standard offset.
	StandardOffset(ctx context.Context, lat, lon float64) (time.Duration, error)
}
