package stormevents

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/fetch"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
)

const details2017 = `BEGIN_YEARMONTH,BEGIN_DAY,BEGIN_TIME,END_YEARMONTH,END_DAY,END_TIME,EPISODE_ID,EVENT_ID,STATE,STATE_FIPS,YEAR,MONTH_NAME,EVENT_TYPE,CZ_TYPE,CZ_FIPS,CZ_NAME,WFO,BEGIN_DATE_TIME,CZ_TIMEZONE,END_DATE_TIME,INJURIES_DIRECT,INJURIES_INDIRECT,DEATHS_DIRECT,DEATHS_INDIRECT,TOR_F_SCALE,TOR_LENGTH,TOR_WIDTH,BEGIN_LAT,BEGIN_LON,END_LAT,END_LON,EPISODE_NARRATIVE,EVENT_NARRATIVE
201704,2,1500,201704,2,1510,111,1001,OKLAHOMA,40,2017,April,Tornado,C,109,OKLAHOMA,OUN,02-APR-17 15:00:00,CST-6,02-APR-17 15:10:00,3,0,1,0,EF2,4.3,200,35.0,-97.0,35.05,-96.95,"Storms formed, quickly.",Tornado touched down.
201704,2,930,201704,2,930,112,1002,TEXAS,48,2017,April,Hail,C,113,DALLAS,FWD,02-APR-17 09:30:00,CST-6,02-APR-17 09:30:00,0,0,0,0,,,,32.8,-96.8,,,,
201704,2,1600,201704,2,1605,113,1003,FLORIDA,12,2017,April,Tornado,C,86,MIAMI-DADE,MFL,02-APR-17 16:00:00,EST-5,02-APR-17 16:05:00,0,0,0,0,EF0,0.5,50,25.7,-80.2,25.71,-80.19,,
201705,10,1200,201705,10,1200,114,1004,KANSAS,20,2017,May,Hail,C,173,SEDGWICK,ICT,10-MAY-17 12:00:00,CST-6,10-MAY-17 12:00:00,0,0,0,0,,,,37.7,-97.3,,,,
201704,3,30,201704,3,45,115,1005,GEORGIA,13,2017,April,Thunderstorm Wind,C,121,FULTON,FFC,03-APR-17 00:30:00,EST-5,03-APR-17 00:45:00,0,0,0,0,,,,33.7,-84.4,,,,
`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := io.WriteString(zw, s)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "begin_yearmonth", NormalizeHeader("BEGIN_YEARMONTH"))
	assert.Equal(t, "cz_timezone", NormalizeHeader(" Cz Timezone "))
	assert.Equal(t, "event_id", NormalizeHeader("\ufeffEVENT_ID"))
}

func TestReadCSV(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(details2017))
	require.NoError(t, err)
	require.Len(t, recs, 5)

	tor := recs[0]
	assert.Equal(t, int64(1001), tor.EventID)
	assert.Equal(t, int64(111), tor.EpisodeID)
	assert.Equal(t, domain.Tornado, tor.EventType)
	assert.Equal(t, "OKLAHOMA", tor.State)
	assert.Equal(t, "CST-6", tor.CZTimezone)
	assert.True(t, time.Date(2017, 4, 2, 15, 0, 0, 0, domain.Naive).Equal(tor.BeginDateTime))
	assert.True(t, domain.IsNaive(tor.EndDateTime))
	assert.Equal(t, "EF2", tor.TorFScale)
	assert.InDelta(t, 4.3, tor.TorLength, 1e-9)
	assert.InDelta(t, -96.95, tor.EndLon, 1e-9)
	assert.Equal(t, 1, tor.DeathsDirect)
	assert.Equal(t, 3, tor.InjuriesDirect)
	assert.Equal(t, "Storms formed, quickly.", tor.EpisodeNarrative)

	hail := recs[1]
	assert.Equal(t, "0930", hail.BeginTime)
	assert.True(t, math.IsNaN(hail.TorLength))
	assert.True(t, math.IsNaN(hail.EndLat))
	assert.False(t, hail.HasTrack())

	assert.Equal(t, domain.ThunderstormWind, recs[4].EventType)
	assert.Equal(t, "0030", recs[4].BeginTime)
}

func TestReadCSV_Gzip(t *testing.T) {
	recs, err := ReadCSV(bytes.NewReader(gzipBytes(t, details2017)))
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("EVENT_ID,STATE\n1,TEXAS\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	bad := strings.Replace(details2017, "02-APR-17 15:00:00", "yesterday", 1)
	_, err = ReadCSV(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "begin_date_time")

	recs, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseDateTime_Century(t *testing.T) {
	got, err := ParseDateTime("28-APR-50 14:23:00", "195004")
	require.NoError(t, err)
	assert.True(t, time.Date(1950, 4, 28, 14, 23, 0, 0, domain.Naive).Equal(got))
	assert.True(t, domain.IsNaive(got))

	got, err = ParseDateTime("28-APR-17 14:23:00", "")
	require.NoError(t, err)
	assert.Equal(t, 2017, got.Year())
}

func TestFilter(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(details2017))
	require.NoError(t, err)

	ids := func(rs []domain.EventRecord) []int64 {
		var out []int64
		for _, r := range rs {
			out = append(out, r.EventID)
		}
		return out
	}

	assert.Equal(t, []int64{1001, 1002, 1003, 1004, 1005}, ids(Filter(recs, Options{})))
	assert.Equal(t, []int64{1001, 1003}, ids(Filter(recs, Options{EventTypes: []domain.EventType{"tornado"}})))
	assert.Equal(t, []int64{1002}, ids(Filter(recs, Options{States: []string{"texas"}})))
	assert.Equal(t, []int64{1004}, ids(Filter(recs, Options{Months: []string{"may"}})))
	assert.Equal(t, []int64{1001, 1004}, ids(Filter(recs, Options{Hours: []int{15, 12}})))
	assert.Empty(t, Filter(recs, Options{States: []string{"TEXAS"}, EventTypes: []domain.EventType{domain.Tornado}}))
}

func TestFilter_Region(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(details2017))
	require.NoError(t, err)
	base := recs[0]
	at := func(id int64, lon, lat float64) domain.EventRecord {
		r := base
		r.EventID, r.BeginLon, r.BeginLat = id, lon, lat
		return r
	}
	points := []domain.EventRecord{
		at(1, -97, 35),        // inside
		at(2, -95, 35),        // east of the box
		at(3, -98, 32),        // on the southern edge
		at(4, -100, 36),       // on a corner
		at(5, -98.5, 33.5),    // inside the hole
		at(6, -99, 33),        // on the hole's corner
		at(7, math.NaN(), 35), // no begin position
	}
	box := orb.Ring{{-100, 32}, {-96, 32}, {-96, 36}, {-100, 36}, {-100, 32}}
	hole := orb.Ring{{-99, 33}, {-98, 33}, {-98, 34}, {-99, 34}, {-99, 33}}

	ids := func(rs []domain.EventRecord) []int64 {
		var out []int64
		for _, r := range rs {
			out = append(out, r.EventID)
		}
		return out
	}

	tests := []struct {
		name   string
		region orb.Polygon
		want   []int64
	}{
		{"outer ring", orb.Polygon{box}, []int64{1, 5, 6}},
		{"with hole", orb.Polygon{box, hole}, []int64{1}},
		{"open ring", orb.Polygon{box[:4]}, []int64{1, 5, 6}},
		{"no region", nil, []int64{1, 2, 3, 4, 5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(points, Options{Region: tt.region})))
		})
	}

	// Fixture events: only the Oklahoma row falls inside the box.
	assert.Equal(t, []int64{1001}, ids(Filter(recs, Options{Region: orb.Polygon{{{-98, 34}, {-96, 34}, {-96, 36}, {-98, 36}}}})))
}

func TestExport_RoundTrip(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(details2017))
	require.NoError(t, err)

	// Mix naive and zone-aware rows.
	r := temporal.NewReconciler(nil, slog.Default())
	converted, err := r.Reconcile(context.Background(), recs[:2], "UTC")
	require.NoError(t, err)
	recs = append(converted, recs[2:]...)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, recs))

	header, _, _ := strings.Cut(buf.String(), "\n")
	assert.Equal(t, header, strings.ToUpper(header))
	assert.True(t, strings.HasPrefix(header, "BEGIN_YEARMONTH,BEGIN_DAY,BEGIN_TIME"))

	reloaded, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, reloaded, len(recs))
	for i := range recs {
		assert.True(t, recs[i].Equal(reloaded[i]), "event %d", recs[i].EventID)
	}
}

func TestExportFile_Gzip(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(details2017))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv.gz")
	require.NoError(t, ExportFile(path, recs))

	reloaded, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, reloaded, len(recs))
	for i := range recs {
		assert.True(t, recs[i].Equal(reloaded[i]))
	}
}

const listing = `<html><body><pre>
<a href="../">Parent Directory</a>
<a href="StormEvents_details-ftp_v1.0_d2017_c20200101.csv.gz">StormEvents_details-ftp_v1.0_d2017_c20200101.csv.gz</a>
<a href="StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz">StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz</a>
<a href="StormEvents_fatalities-ftp_v1.0_d2017_c20230118.csv.gz">fatalities</a>
<a href="StormEvents_details-ftp_v1.0_d2018_c20230118.csv.gz">StormEvents_details-ftp_v1.0_d2018_c20230118.csv.gz</a>
</pre></body></html>`

func newArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/csvfiles/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, listing)
	})
	mux.HandleFunc("/csvfiles/StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, details2017))
	})
	mux.HandleFunc("/csvfiles/StormEvents_details-ftp_v1.0_d2018_c20230118.csv.gz", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testLoader(t *testing.T, srv *httptest.Server) (*Loader, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	f := fetch.New(fetch.Config{Dir: t.TempDir(), Workers: 2}, slog.Default(), metrics)
	archive := NewArchive(f, srv.URL+"/csvfiles/")
	return NewLoader(f, archive, temporal.NewReconciler(nil, slog.Default()), slog.Default(), metrics), metrics
}

func TestArchive_YearURLs(t *testing.T) {
	srv := newArchiveServer(t)
	f := fetch.New(fetch.Config{Dir: t.TempDir()}, slog.Default(), nil)
	archive := NewArchive(f, srv.URL+"/csvfiles/")

	urls, err := archive.YearURLs(context.Background(), []int{2017, 2019})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{
		2017: srv.URL + "/csvfiles/StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz",
	}, urls)
}

func TestLoader_LoadEvents(t *testing.T) {
	srv := newArchiveServer(t)
	l, metrics := testLoader(t, srv)

	start := time.Date(2017, 4, 2, 0, 0, 0, 0, domain.Naive)
	end := time.Date(2017, 4, 3, 0, 0, 0, 0, domain.Naive)
	recs, err := l.LoadEvents(context.Background(), start, end, Options{TimeZone: "CST"})
	require.NoError(t, err)

	var ids []int64
	for _, r := range recs {
		ids = append(ids, r.EventID)
		assert.Equal(t, "CST", r.CZTimezone)
		assert.False(t, domain.IsNaive(r.BeginDateTime))
	}
	assert.Equal(t, []int64{1002, 1001, 1003, 1005}, ids)

	// 00:30 EST on the 3rd is 23:30 CST on the 2nd.
	late := recs[3]
	assert.Equal(t, 2, late.BeginDay)
	assert.Equal(t, "2330", late.BeginTime)
	assert.Equal(t, 23, late.BeginDateTime.Hour())

	assert.InDelta(t, 4.0, testutil.ToFloat64(metrics.RecordsLoaded), 0)
}

func TestLoader_LoadEvents_Filters(t *testing.T) {
	srv := newArchiveServer(t)
	l, _ := testLoader(t, srv)
	start := time.Date(2017, 4, 2, 0, 0, 0, 0, domain.Naive)
	end := time.Date(2017, 4, 3, 0, 0, 0, 0, domain.Naive)

	recs, err := l.LoadEvents(context.Background(), start, end, Options{
		TimeZone: "CST",
		Hours:    []int{15},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// 16:00 EST counts as 15:00 once normalized.
	assert.Equal(t, int64(1001), recs[0].EventID)
	assert.Equal(t, int64(1003), recs[1].EventID)

	recs, err = l.LoadEvents(context.Background(), start, end, Options{
		TimeZone:   "CST",
		EventTypes: []domain.EventType{domain.Tornado},
		States:     []string{"Florida"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1003), recs[0].EventID)
}

func TestLoader_LoadEvents_PartialFailure(t *testing.T) {
	srv := newArchiveServer(t)
	l, metrics := testLoader(t, srv)

	// Spans 2017 (ok), 2018 (server error) and 2019 (not listed).
	start := time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	recs, err := l.LoadEvents(context.Background(), start, end, Options{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.RetrievalErrors), 0)
}

func TestLoader_LoadEvents_InvalidInput(t *testing.T) {
	srv := newArchiveServer(t)
	l, _ := testLoader(t, srv)
	start := time.Date(2017, 4, 2, 0, 0, 0, 0, domain.Naive)

	_, err := l.LoadEvents(context.Background(), start, start.Add(-time.Hour), Options{})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = l.LoadEvents(context.Background(), start, start.Add(time.Hour), Options{Hours: []int{24}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = l.LoadEvents(context.Background(), start, start.Add(time.Hour), Options{Region: orb.Polygon{{{-98, 34}, {-96, 34}}}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = l.LoadEvents(context.Background(), start, start.Add(time.Hour), Options{TimeZone: "SCT"})
	assert.Error(t, err)
}

func TestLoader_Probe(t *testing.T) {
	srv := newArchiveServer(t)
	l, _ := testLoader(t, srv)
	require.NoError(t, l.Probe(context.Background()))

	srv.Close()
	assert.Error(t, l.Probe(context.Background()))
}
