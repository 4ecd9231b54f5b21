// Package stormevents reads, filters, loads and exports NCEI StormEvents
// "details" tables.
package stormevents

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
)

// ErrMissingColumn is returned when a table lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// requiredColumns must be present in every table, after header normalization.
var requiredColumns = []string{"event_id", "event_type", "state", "begin_date_time", "end_date_time", "cz_timezone"}

const (
	// ncdcLayout is the archive's BEGIN_DATE_TIME format, e.g. "28-APR-17 14:23:00".
	ncdcLayout = "02-Jan-06 15:04:05"
	// exportLayout is written for naive timestamps.
	exportLayout = "2006-01-02 15:04:05"
	// exportZonedLayout is written for zone-aware timestamps.
	exportZonedLayout = "2006-01-02 15:04:05-07:00"
)

// NormalizeHeader converts a column name to lower_snake_case.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

// ReadFile reads a details table from disk. Gzip files are detected by their
// magic bytes rather than their extension.
func ReadFile(path string) ([]domain.EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a details table, gzip-compressed or not.
func ReadCSV(r io.Reader) ([]domain.EventRecord, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()
		return readRows(zr)
	}
	return readRows(br)
}

func readRows(r io.Reader) ([]domain.EventRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[NormalizeHeader(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var recs []domain.EventRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rec, err := parseRow(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func get(row []string, colIdx map[string]int, col string) string {
	i, ok := colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowParser accumulates the first conversion error so parseRow reads as a
// flat list of fields.
type rowParser struct {
	row    []string
	colIdx map[string]int
	err    error
}

func (p *rowParser) str(col string) string { return get(p.row, p.colIdx, col) }

func (p *rowParser) int64(col string) int64 {
	s := p.str(col)
	if s == "" || p.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some exports write integral columns as floats ("3.0").
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) {
			p.err = fmt.Errorf("column %s: invalid integer %q", col, s)
			return 0
		}
		n = int64(f)
	}
	return n
}

func (p *rowParser) int(col string) int { return int(p.int64(col)) }

func (p *rowParser) float(col string) float64 {
	s := p.str(col)
	if s == "" || p.err != nil {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("column %s: invalid number %q", col, s)
		return math.NaN()
	}
	return f
}

func (p *rowParser) datetime(col, yearMonthCol string) time.Time {
	s := p.str(col)
	if p.err != nil {
		return time.Time{}
	}
	t, err := ParseDateTime(s, p.str(yearMonthCol))
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return t
}

func parseRow(row []string, colIdx map[string]int) (domain.EventRecord, error) {
	p := &rowParser{row: row, colIdx: colIdx}
	rec := domain.EventRecord{
		EventID:          p.int64("event_id"),
		EpisodeID:        p.int64("episode_id"),
		EventType:        domain.ParseEventType(p.str("event_type")),
		State:            p.str("state"),
		Year:             p.int("year"),
		MonthName:        p.str("month_name"),
		BeginYearMonth:   p.str("begin_yearmonth"),
		BeginDay:         p.int("begin_day"),
		BeginTime:        domain.PadHHMM(p.str("begin_time")),
		EndYearMonth:     p.str("end_yearmonth"),
		EndDay:           p.int("end_day"),
		EndTime:          domain.PadHHMM(p.str("end_time")),
		BeginDateTime:    p.datetime("begin_date_time", "begin_yearmonth"),
		EndDateTime:      p.datetime("end_date_time", "end_yearmonth"),
		CZType:           p.str("cz_type"),
		CZName:           p.str("cz_name"),
		CZTimezone:       p.str("cz_timezone"),
		BeginLat:         p.float("begin_lat"),
		BeginLon:         p.float("begin_lon"),
		EndLat:           p.float("end_lat"),
		EndLon:           p.float("end_lon"),
		TorFScale:        p.str("tor_f_scale"),
		TorLength:        p.float("tor_length"),
		TorWidth:         p.float("tor_width"),
		InjuriesDirect:   p.int("injuries_direct"),
		InjuriesIndirect: p.int("injuries_indirect"),
		DeathsDirect:     p.int("deaths_direct"),
		DeathsIndirect:   p.int("deaths_indirect"),
		EpisodeNarrative: p.str("episode_narrative"),
		EventNarrative:   p.str("event_narrative"),
	}
	return rec, p.err
}

// ParseDateTime parses a date column. Archive values carry a two-digit year,
// so the century is taken from the matching YYYYMM column when present.
// Values with an explicit offset come back zone-aware; all others are naive.
func ParseDateTime(value, yearMonth string) (time.Time, error) {
	if t, err := time.Parse(exportZonedLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(exportLayout, value, domain.Naive); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(ncdcLayout, value, domain.Naive)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date time %q", value)
	}
	if len(yearMonth) >= 4 {
		if year, yerr := strconv.Atoi(yearMonth[:4]); yerr == nil && year != t.Year() {
			t = t.AddDate(year-t.Year(), 0, 0)
		}
	}
	return t, nil
}
