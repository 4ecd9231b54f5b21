// Package kafka publishes cluster summaries to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/config"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

// MessageType is the event_type header of every published message.
const MessageType = "storm_cluster"

// ClusterMessage is the JSON payload describing one cluster of a run.
type ClusterMessage struct {
	RunID       string               `json:"run_id"`
	Label       int                  `json:"label"`
	Summary     cluster.Summary      `json:"summary"`
	Tornadoes   cluster.TornadoStats `json:"tornadoes"`
	EventIDs    []int64              `json:"event_ids"`
	Description string               `json:"description"`
}

// Writer produces cluster summaries to a Kafka topic.
// It implements pipeline.ClusterPublisher.
type Writer struct {
	writer  *kafkago.Writer
	zone    string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the configured cluster topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaClusterTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, zone: cfg.TargetTimeZone, logger: logger, metrics: metrics}
}

// PublishClusters serializes every cluster of g, noise excluded, and writes
// them in a single WriteMessages call.
func (w *Writer) PublishClusters(ctx context.Context, runID string, g *cluster.Group) error {
	clusters := g.Clusters()
	if len(clusters) == 0 {
		return nil
	}
	publishedAt := domain.Now()
	msgs := make([]kafkago.Message, 0, len(clusters))
	for _, c := range clusters {
		msg, err := serializeToMessage(runID, c, w.zone, publishedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish clusters: %w", err)
	}
	if w.metrics != nil {
		w.metrics.MessagesProduced.Add(float64(len(msgs)))
	}
	w.logger.Debug("published clusters", "run_id", runID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func newClusterMessage(runID string, c *cluster.Cluster, zone string) (ClusterMessage, error) {
	summary, err := c.Summary()
	if err != nil {
		return ClusterMessage{}, fmt.Errorf("summarize cluster %d: %w", c.Label(), err)
	}
	events := c.Events()
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	return ClusterMessage{
		RunID:       runID,
		Label:       c.Label(),
		Summary:     summary,
		Tornadoes:   c.TornadoStats(),
		EventIDs:    ids,
		Description: c.Describe(cluster.DescribeOptions{Zone: zone}),
	}, nil
}

// serializeToMessage marshals one cluster into a Kafka message keyed by
// run and label.
func serializeToMessage(runID string, c *cluster.Cluster, zone string, publishedAt time.Time) (kafkago.Message, error) {
	payload, err := newClusterMessage(runID, c, zone)
	if err != nil {
		return kafkago.Message{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize cluster: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(runID + "/" + strconv.Itoa(c.Label())),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(MessageType)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
