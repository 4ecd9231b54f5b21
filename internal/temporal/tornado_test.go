package temporal

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tornado(begin, end time.Time, lengthMiles float64) domain.EventRecord {
	return domain.EventRecord{
		EventID:       1,
		EventType:     domain.Tornado,
		BeginDateTime: begin,
		EndDateTime:   end,
		TorLength:     lengthMiles,
	}
}

func TestCorrectTornadoTimes(t *testing.T) {
	t0 := naive(2017, 1, 1, 0, 0)

	tests := []struct {
		name      string
		begin     time.Time
		end       time.Time
		length    float64
		wantBegin time.Time
		wantEnd   time.Time
	}{
		{
			name:  "plausible short track unchanged",
			begin: t0, end: t0.Add(10 * time.Minute), length: 2,
			wantBegin: t0, wantEnd: t0.Add(10 * time.Minute),
		},
		{
			name:  "slow track loses an hour",
			begin: t0, end: t0.Add(70 * time.Minute), length: 2,
			wantBegin: t0, wantEnd: t0.Add(10 * time.Minute),
		},
		{
			name:  "slow multi-hour track loses exactly one hour",
			begin: t0, end: t0.Add(2*time.Hour + 30*time.Minute), length: 5,
			wantBegin: t0, wantEnd: t0.Add(time.Hour + 30*time.Minute),
		},
		{
			name:  "fast long track unchanged",
			begin: t0, end: t0.Add(90 * time.Minute), length: 30,
			wantBegin: t0, wantEnd: t0.Add(90 * time.Minute),
		},
		{
			name:  "implausibly long short path is a brief touchdown",
			begin: t0, end: t0.Add(5 * time.Hour), length: 0.1,
			wantBegin: t0, wantEnd: t0,
		},
		{
			name:  "end a day late",
			begin: t0, end: t0.Add(24*time.Hour + 15*time.Minute), length: 3,
			wantBegin: t0, wantEnd: t0.Add(15 * time.Minute),
		},
		{
			name:  "implausibly long under a day falls back to touchdown",
			begin: t0, end: t0.Add(6 * time.Hour), length: 3,
			wantBegin: t0, wantEnd: t0,
		},
		{
			name:  "swapped times",
			begin: t0.Add(20 * time.Minute), end: t0, length: 5,
			wantBegin: t0, wantEnd: t0.Add(20 * time.Minute),
		},
		{
			name:  "swapped times then hour correction",
			begin: t0.Add(75 * time.Minute), end: t0, length: 1,
			wantBegin: t0, wantEnd: t0.Add(15 * time.Minute),
		},
		{
			name:  "end a day early",
			begin: t0.Add(23 * time.Hour), end: t0.Add(5 * time.Minute), length: 1,
			wantBegin: t0.Add(23 * time.Hour), wantEnd: t0.Add(24*time.Hour + 5*time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CorrectTornadoTimes([]domain.EventRecord{tornado(tt.begin, tt.end, tt.length)}, DefaultCorrectionPolicy())
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantBegin, got[0].BeginDateTime)
			assert.Equal(t, tt.wantEnd, got[0].EndDateTime)
			assert.False(t, got[0].EndDateTime.Before(got[0].BeginDateTime))
		})
	}
}

func TestCorrectTornadoTimes_SyncsCalendarFields(t *testing.T) {
	t0 := naive(2017, 1, 1, 23, 0)
	in := tornado(t0, t0.Add(-22*time.Hour), 3)

	got := CorrectTornadoTimes([]domain.EventRecord{in}, DefaultCorrectionPolicy())[0]

	assert.Equal(t, naive(2017, 1, 2, 1, 0), got.EndDateTime)
	assert.Equal(t, 2, got.EndDay)
	assert.Equal(t, "0100", got.EndTime)
	assert.Equal(t, "2300", got.BeginTime)
	assert.Equal(t, "January", got.MonthName)
}

func TestCorrectTornadoTimes_LeavesOtherEventsAlone(t *testing.T) {
	t0 := naive(2017, 1, 1, 0, 0)
	hail := domain.EventRecord{EventType: domain.Hail, BeginDateTime: t0, EndDateTime: t0.Add(-5 * time.Hour)}
	in := []domain.EventRecord{hail}

	got := CorrectTornadoTimes(in, DefaultCorrectionPolicy())

	assert.Equal(t, hail, got[0])
	assert.Equal(t, t0.Add(-5*time.Hour), in[0].EndDateTime, "input must not be modified")
}

func TestCorrectTornadoTimes_UnknownLength(t *testing.T) {
	t0 := naive(2017, 1, 1, 0, 0)
	in := tornado(t0, t0.Add(2*time.Hour), math.NaN())

	got := CorrectTornadoTimes([]domain.EventRecord{in}, DefaultCorrectionPolicy())[0]
	assert.Equal(t, t0.Add(2*time.Hour), got.EndDateTime)
}

func TestCorrectionPolicy_Configurable(t *testing.T) {
	t0 := naive(2017, 1, 1, 0, 0)
	p := DefaultCorrectionPolicy()
	p.MinSpeedMPH = 1

	got := p.Correct(tornado(t0, t0.Add(70*time.Minute), 2))
	assert.Equal(t, t0.Add(70*time.Minute), got.EndDateTime)
}
