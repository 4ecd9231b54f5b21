package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// Clusterer discretizes event records and groups the resulting points.
type Clusterer struct {
	algorithm Algorithm
	track     track.Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClusterer creates a Clusterer. A nil algorithm means Density; metrics
// may be nil.
func NewClusterer(algorithm Algorithm, opts track.Options, logger *slog.Logger, metrics *observability.Metrics) *Clusterer {
	if algorithm == nil {
		algorithm = Density{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{algorithm: algorithm, track: opts, logger: logger, metrics: metrics}
}

// Algorithm returns the labeling strategy in use.
func (c *Clusterer) Algorithm() Algorithm { return c.algorithm }

// Cluster discretizes records into points and partitions them. The returned
// group references its own copy of records.
func (c *Clusterer) Cluster(ctx context.Context, records []domain.EventRecord, p Params) (*Group, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return EmptyGroup(), nil
	}

	table := slices.Clone(records)
	points, err := track.DiscretizeAll(table, c.track)
	if err != nil {
		return nil, fmt.Errorf("discretize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := domain.Now()
	labels := c.algorithm.Label(points, p)
	elapsed := domain.Since(start)

	g := newGroup(points, labels, table)

	if c.metrics != nil {
		name := c.algorithm.Name()
		c.metrics.ClusterRuns.WithLabelValues(name).Inc()
		c.metrics.ClusterDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		c.metrics.ClusterPoints.Observe(float64(len(points)))
		c.metrics.ClustersFound.Observe(float64(g.Len()))
	}
	c.logger.Debug("clustered events",
		"algorithm", c.algorithm.Name(),
		"records", len(table),
		"points", len(points),
		"clusters", g.Len(),
		"noise", g.Noise().Len(),
		"duration", elapsed,
	)
	return g, nil
}

// ClusterEvents clusters records with a one-minute track spacing.
func ClusterEvents(ctx context.Context, records []domain.EventRecord, p Params, algorithm Algorithm) (*Group, error) {
	return NewClusterer(algorithm, track.DefaultOptions(), nil, nil).Cluster(ctx, records, p)
}

// Bucket is the clustering result of one time window.
type Bucket struct {
	Window temporal.Window
	Group  *Group
}

// TimeBucketed clusters each window of records independently. With
// removeEmpty, windows that produce no clusters are left out.
func (c *Clusterer) TimeBucketed(ctx context.Context, records []domain.EventRecord, windows []temporal.Window, p Params, removeEmpty bool) ([]Bucket, error) {
	parts, err := temporal.TimePartition(records, windows)
	if err != nil {
		return nil, err
	}
	out := make([]Bucket, 0, len(parts))
	for _, part := range parts {
		g, err := c.Cluster(ctx, part.Records, p)
		if err != nil {
			return nil, err
		}
		if removeEmpty && g.Len() == 0 {
			continue
		}
		out = append(out, Bucket{Window: part.Window, Group: g})
	}
	return out, nil
}
