package stormevents

import (
	"encoding/csv"
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

// exportColumns is the column order written by Export. Headers are written
// upper-cased, matching the archive.
var exportColumns = []string{
	"begin_yearmonth", "begin_day", "begin_time",
	"end_yearmonth", "end_day", "end_time",
	"episode_id", "event_id", "state", "year", "month_name", "event_type",
	"cz_type", "cz_name", "begin_date_time", "cz_timezone", "end_date_time",
	"injuries_direct", "injuries_indirect", "deaths_direct", "deaths_indirect",
	"tor_f_scale", "tor_length", "tor_width",
	"begin_lat", "begin_lon", "end_lat", "end_lon",
	"episode_narrative", "event_narrative",
}

// Export writes records as CSV with upper-cased headers. ReadCSV reads the
// output back into equal records.
func Export(w io.Writer, records []domain.EventRecord) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = strings.ToUpper(c)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(exportRow(r)); err != nil {
			return fmt.Errorf("write event %d: %w", r.EventID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes records to path, gzip-compressed when path ends in ".gz".
func ExportFile(path string, records []domain.EventRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return Export(f, records)
	}
	zw := gzip.NewWriter(f)
	if err := Export(zw, records); err != nil {
		zw.Close() //nolint:errcheck,gosec // export error takes precedence
		return err
	}
	return zw.Close()
}

func exportRow(r domain.EventRecord) []string {
	return []string{
		r.BeginYearMonth, itoa(r.BeginDay), r.BeginTime,
		r.EndYearMonth, itoa(r.EndDay), r.EndTime,
		strconv.FormatInt(r.EpisodeID, 10), strconv.FormatInt(r.EventID, 10),
		r.State, itoa(r.Year), r.MonthName, string(r.EventType),
		r.CZType, r.CZName, formatTime(r.BeginDateTime), r.CZTimezone, formatTime(r.EndDateTime),
		itoa(r.InjuriesDirect), itoa(r.InjuriesIndirect), itoa(r.DeathsDirect), itoa(r.DeathsIndirect),
		r.TorFScale, ftoa(r.TorLength), ftoa(r.TorWidth),
		ftoa(r.BeginLat), ftoa(r.BeginLon), ftoa(r.EndLat), ftoa(r.EndLon),
		r.EpisodeNarrative, r.EventNarrative,
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if domain.IsNaive(t) {
		return t.Format(exportLayout)
	}
	return t.Format(exportZonedLayout)
}
