// Command validate runs integrity checks over StormEvents details files: the
// schema, calendar consistency, time zone resolution, tornado plausibility
// and the export round trip. It is meant for vetting archive files (or
// exports of this service) before they are used as fixtures.
//
// Usage:
//
//	go run ./cmd/validate -tz UTC \
//	  data/StormEvents_details-ftp_v1.0_d2011_c20220425.csv.gz
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
)

// maxErrorsPerPhase keeps reports on badly broken files readable.
const maxErrorsPerPhase = 50

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	dropped int
}

func (p *phase) errorf(format string, args ...any) {
	if len(p.errors) >= maxErrorsPerPhase {
		p.dropped++
		return
	}
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) count() int { return len(p.errors) + p.dropped }

func (p *phase) passed() bool { return p.count() == 0 }

func main() {
	tz := flag.String("tz", "UTC", "time zone used for the export round trip")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	code := 0
	for _, path := range flag.Args() {
		if c := run(path, *tz); c != 0 {
			code = c
		}
	}
	os.Exit(code)
}

func run(path, tz string) int {
	fmt.Printf("=== StormEvents Integrity Validation: %s ===\n", path)

	recs, err := stormevents.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", path, err)
		return 1
	}

	ctx := context.Background()
	reconciler := temporal.NewReconciler(nil, slog.New(slog.DiscardHandler))
	policy := temporal.DefaultCorrectionPolicy()

	phases := []*phase{
		validateSchema(recs),
		validateCalendar(recs),
		validateTimeZones(ctx, reconciler, recs),
		validateTornadoes(recs, policy),
		validateRoundTrip(ctx, reconciler, recs, tz),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", p.count())
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d (%d tornado segments)\n", len(recs), countTornadoes(recs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.dropped > 0 {
			fmt.Printf("  ... and %d more\n", p.dropped)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func countTornadoes(recs []domain.EventRecord) int {
	n := 0
	for i := range recs {
		if recs[i].IsTornado() {
			n++
		}
	}
	return n
}

// ── Phase 1: Schema ──

func validateSchema(recs []domain.EventRecord) *phase {
	p := &phase{name: "Phase 1: Schema"}

	seen := make(map[int64]int, len(recs))
	for i := range recs {
		r := &recs[i]
		if prev, ok := seen[r.EventID]; ok {
			p.errorf("event %d: duplicate id (rows %d and %d)", r.EventID, prev+1, i+1)
		}
		seen[r.EventID] = i
		if r.EventType == "" {
			p.errorf("event %d: empty EVENT_TYPE", r.EventID)
		}
		if r.BeginDateTime.IsZero() || r.EndDateTime.IsZero() {
			p.errorf("event %d: missing begin or end timestamp", r.EventID)
		}
		checkCoord(p, r.EventID, "BEGIN", r.BeginLat, r.BeginLon)
		checkCoord(p, r.EventID, "END", r.EndLat, r.EndLon)
		if r.InjuriesDirect < 0 || r.InjuriesIndirect < 0 || r.DeathsDirect < 0 || r.DeathsIndirect < 0 {
			p.errorf("event %d: negative casualty count", r.EventID)
		}
	}
	return p
}

func checkCoord(p *phase, id int64, prefix string, lat, lon float64) {
	if math.IsNaN(lat) != math.IsNaN(lon) {
		p.errorf("event %d: %s_LAT/%s_LON only half present", id, prefix, prefix)
		return
	}
	if !math.IsNaN(lat) && (math.Abs(lat) > 90 || math.Abs(lon) > 180) {
		p.errorf("event %d: %s coordinate out of range (%g, %g)", id, prefix, lat, lon)
	}
}

// ── Phase 2: Calendar fields ──

func validateCalendar(recs []domain.EventRecord) *phase {
	p := &phase{name: "Phase 2: Calendar Consistency"}

	for i := range recs {
		r := recs[i]
		want := temporal.SyncCalendarFields(r)
		if r.BeginYearMonth != want.BeginYearMonth || r.BeginDay != want.BeginDay || r.BeginTime != want.BeginTime {
			p.errorf("event %d: begin fields %s/%d/%s disagree with BEGIN_DATE_TIME %s",
				r.EventID, r.BeginYearMonth, r.BeginDay, r.BeginTime, r.BeginDateTime.Format(time.DateTime))
		}
		if r.EndYearMonth != "" && (r.EndYearMonth != want.EndYearMonth || r.EndDay != want.EndDay || r.EndTime != want.EndTime) {
			p.errorf("event %d: end fields %s/%d/%s disagree with END_DATE_TIME %s",
				r.EventID, r.EndYearMonth, r.EndDay, r.EndTime, r.EndDateTime.Format(time.DateTime))
		}
		if r.Year != 0 && r.Year != want.Year {
			p.errorf("event %d: YEAR %d, begins in %d", r.EventID, r.Year, want.Year)
		}
	}
	return p
}

// ── Phase 3: Time zones ──

func validateTimeZones(ctx context.Context, rc *temporal.Reconciler, recs []domain.EventRecord) *phase {
	p := &phase{name: "Phase 3: Time Zone Resolution"}

	for i := range recs {
		if !domain.IsNaive(recs[i].BeginDateTime) {
			continue
		}
		if _, err := rc.SourceZone(ctx, recs[i]); err != nil {
			p.errorf("event %d: %v", recs[i].EventID, err)
		}
	}
	return p
}

// ── Phase 4: Tornado plausibility ──

func validateTornadoes(recs []domain.EventRecord, policy temporal.CorrectionPolicy) *phase {
	p := &phase{name: "Phase 4: Tornado Plausibility"}

	corrected := temporal.CorrectTornadoTimes(recs, policy)
	for i := range corrected {
		r := corrected[i]
		if !r.IsTornado() {
			continue
		}
		if l := r.Longevity(); l < 0 || l > policy.LongevityLimit {
			p.errorf("event %d: longevity %s after correction (was %s)", r.EventID, l, recs[i].Longevity())
		}
		if _, ok := r.EFRating(); !ok && r.TorFScale != "" && r.TorFScale != "EFU" && r.TorFScale != "FU" {
			p.errorf("event %d: unrecognized TOR_F_SCALE %q", r.EventID, r.TorFScale)
		}
		if !r.HasBegin() {
			p.errorf("event %d: tornado without a begin position", r.EventID)
		}
	}
	return p
}

// ── Phase 5: Export round trip ──

func validateRoundTrip(ctx context.Context, rc *temporal.Reconciler, recs []domain.EventRecord, tz string) *phase {
	p := &phase{name: "Phase 5: Export Round Trip (" + tz + ")"}

	converted, err := rc.Reconcile(ctx, recs, tz)
	if err != nil {
		p.errorf("reconcile to %s: %v", tz, err)
		return p
	}

	var buf bytes.Buffer
	if err := stormevents.Export(&buf, converted); err != nil {
		p.errorf("export: %v", err)
		return p
	}
	reloaded, err := stormevents.ReadCSV(&buf)
	if err != nil {
		p.errorf("re-read export: %v", err)
		return p
	}
	if len(reloaded) != len(converted) {
		p.errorf("exported %d records, read back %d", len(converted), len(reloaded))
		return p
	}
	for i := range converted {
		if !converted[i].Equal(reloaded[i]) {
			p.errorf("event %d: differs after export and re-read", converted[i].EventID)
		}
	}
	return p
}
