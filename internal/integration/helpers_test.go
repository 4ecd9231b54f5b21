//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startKafka runs a single-node broker for the duration of the test and
// returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0", kafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := kc.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// details2017 holds an Oklahoma tornado, a hail report beside its track and
// an unrelated Texas hail report.
const details2017 = `BEGIN_YEARMONTH,BEGIN_DAY,BEGIN_TIME,END_YEARMONTH,END_DAY,END_TIME,EPISODE_ID,EVENT_ID,STATE,STATE_FIPS,YEAR,MONTH_NAME,EVENT_TYPE,CZ_TYPE,CZ_FIPS,CZ_NAME,WFO,BEGIN_DATE_TIME,CZ_TIMEZONE,END_DATE_TIME,INJURIES_DIRECT,INJURIES_INDIRECT,DEATHS_DIRECT,DEATHS_INDIRECT,TOR_F_SCALE,TOR_LENGTH,TOR_WIDTH,BEGIN_LAT,BEGIN_LON,END_LAT,END_LON,EPISODE_NARRATIVE,EVENT_NARRATIVE
201704,2,1500,201704,2,1510,111,1001,OKLAHOMA,40,2017,April,Tornado,C,109,OKLAHOMA,OUN,02-APR-17 15:00:00,CST-6,02-APR-17 15:10:00,3,0,1,0,EF2,4.3,200,35.0,-97.0,35.05,-96.95,,
201704,2,1505,201704,2,1505,111,1002,OKLAHOMA,40,2017,April,Hail,C,109,OKLAHOMA,OUN,02-APR-17 15:05:00,CST-6,02-APR-17 15:05:00,0,0,0,0,,,,35.01,-97.01,,,,
201704,2,1500,201704,2,1500,112,1003,TEXAS,48,2017,April,Hail,C,113,DALLAS,FWD,02-APR-17 15:00:00,CST-6,02-APR-17 15:00:00,0,0,0,0,,,,32.8,-96.8,,,,
`

const listing = `<html><body><pre>
<a href="StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz">StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz</a>
</pre></body></html>`

// startArchive serves a one-year StormEvents archive and returns the
// directory listing URL.
func startArchive(t *testing.T) string {
	t.Helper()
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := io.WriteString(zw, details2017)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	mux.HandleFunc("/csvfiles/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, listing)
	})
	mux.HandleFunc("/csvfiles/StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gz.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL + "/csvfiles/"
}
