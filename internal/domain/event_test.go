package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{"Tornado", Tornado},
		{"tornado", Tornado},
		{" HAIL ", Hail},
		{"thunderstorm wind", ThunderstormWind},
		{"Flash Flood", EventType("Flash Flood")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEventType(tt.in))
		})
	}
}

func TestParseFScale(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"EF3", 3, true},
		{"F1", 1, true},
		{"EF0", 0, true},
		{"EFU", 0, false},
		{"", 0, false},
		{"F9", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFScale(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPadHHMM(t *testing.T) {
	assert.Equal(t, "0005", PadHHMM("5"))
	assert.Equal(t, "0930", PadHHMM("930"))
	assert.Equal(t, "1510", PadHHMM("1510"))
	assert.Equal(t, "", PadHHMM(" "))
}

func TestHourOf(t *testing.T) {
	assert.Equal(t, 9, HourOf("930"))
	assert.Equal(t, 0, HourOf("5"))
	assert.Equal(t, 23, HourOf("2359"))
	assert.Equal(t, -1, HourOf("ab12"))
	assert.Equal(t, -1, HourOf(""))
}

func TestEventRecord_SpeedMPH(t *testing.T) {
	begin := time.Date(2017, 1, 1, 0, 0, 0, 0, Naive)

	t.Run("ten minute track", func(t *testing.T) {
		r := EventRecord{BeginDateTime: begin, EndDateTime: begin.Add(10 * time.Minute), TorLength: 2}
		assert.InDelta(t, 12.0, r.SpeedMPH(), 1e-9)
	})

	t.Run("under thirty seconds is undefined", func(t *testing.T) {
		r := EventRecord{BeginDateTime: begin, EndDateTime: begin.Add(20 * time.Second), TorLength: 2}
		assert.True(t, math.IsNaN(r.SpeedMPH()))
	})

	t.Run("missing length is undefined", func(t *testing.T) {
		r := EventRecord{BeginDateTime: begin, EndDateTime: begin.Add(time.Hour), TorLength: math.NaN()}
		assert.True(t, math.IsNaN(r.SpeedMPH()))
	})
}

func TestEventRecord_Positions(t *testing.T) {
	nan := math.NaN()
	point := EventRecord{BeginLat: 35, BeginLon: -97, EndLat: nan, EndLon: nan}
	assert.True(t, point.HasBegin())
	assert.False(t, point.HasTrack())

	track := EventRecord{BeginLat: 35, BeginLon: -97, EndLat: 35.1, EndLon: -96.9}
	assert.True(t, track.HasTrack())

	missing := EventRecord{BeginLat: nan, BeginLon: nan}
	assert.False(t, missing.HasBegin())
}

func TestIsNaive(t *testing.T) {
	assert.True(t, IsNaive(time.Date(2017, 1, 1, 0, 0, 0, 0, Naive)))
	assert.False(t, IsNaive(time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsNaive(time.Date(2017, 1, 1, 0, 0, 0, 0, Naive).In(time.UTC)))
}

func TestEventRecord_Equal(t *testing.T) {
	nan := math.NaN()
	begin := time.Date(2017, 1, 1, 0, 0, 0, 0, Naive)
	a := EventRecord{EventID: 1, BeginDateTime: begin, EndDateTime: begin, EndLat: nan, EndLon: nan}
	b := a

	assert.True(t, a.Equal(b), "NaN coordinates compare equal")

	b.BeginDateTime = begin.In(time.UTC)
	assert.False(t, a.Equal(b), "naive and aware differ")

	utc := a
	utc.BeginDateTime = time.Date(2017, 1, 1, 6, 0, 0, 0, time.UTC)
	central := utc
	central.BeginDateTime = time.Date(2017, 1, 1, 0, 0, 0, 0, time.FixedZone("Etc/GMT+6", -6*3600))
	assert.True(t, utc.Equal(central), "same instant in different zones")

	b = a
	b.TorLength = 1
	assert.False(t, a.Equal(b))
}

func TestSetClock(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(fixed)
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, fixed, Now())
	fake.Advance(90 * time.Minute)
	assert.Equal(t, 90*time.Minute, Since(fixed))
}
