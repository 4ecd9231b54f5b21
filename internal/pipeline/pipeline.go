// Package pipeline wires the archive loader, the clusterer and the optional
// cluster sink into the operations served by the HTTP API.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
	"github.com/couchcryptid/storm-data-clusters/internal/temporal"
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// EventLoader answers time window queries against the archive.
type EventLoader interface {
	LoadEvents(ctx context.Context, start, end time.Time, opts stormevents.Options) ([]domain.EventRecord, error)
	Probe(ctx context.Context) error
}

// ClusterPublisher receives the clusters of every run.
type ClusterPublisher interface {
	PublishClusters(ctx context.Context, runID string, g *cluster.Group) error
}

// Query selects a window of events and, for cluster runs, how to group them.
type Query struct {
	Start  time.Time
	End    time.Time
	Filter stormevents.Options
	Params cluster.Params
	// Algorithm overrides the service default when set.
	Algorithm cluster.Algorithm
}

// ClusterResult is the outcome of one cluster run.
type ClusterResult struct {
	RunID  string
	Events int
	Group  *cluster.Group
}

// Service loads and clusters storm events on demand.
type Service struct {
	loader     EventLoader
	publisher  ClusterPublisher
	algorithm  cluster.Algorithm
	track      track.Options
	correction temporal.CorrectionPolicy
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Service. publisher may be nil, in which case cluster runs
// are not published anywhere.
func New(loader EventLoader, publisher ClusterPublisher, algorithm cluster.Algorithm, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if algorithm == nil {
		algorithm = cluster.Density{}
	}
	return &Service{
		loader:     loader,
		publisher:  publisher,
		algorithm:  algorithm,
		track:      track.DefaultOptions(),
		correction: temporal.DefaultCorrectionPolicy(),
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once the archive listing has been reached, or an
// error describing why the service is not yet ready.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("storm event archive has not been reached yet")
	}
	return nil
}

// Run probes the archive until it answers, marks the service ready and then
// blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("service started", "algorithm", s.algorithm.Name())

	backoff := initialBackoff
	for {
		err := s.loader.Probe(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("archive probe failed", "error", err, "retry_in", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}

	s.ready.Store(true)
	s.setReadyGauge(1)
	defer s.setReadyGauge(0)
	s.logger.Info("storm event archive reachable, service ready")

	<-ctx.Done()
	s.logger.Info("service stopping", "reason", ctx.Err())
	return nil
}

func (s *Service) setReadyGauge(v float64) {
	if s.metrics != nil {
		s.metrics.ServiceReady.Set(v)
	}
}

// Events loads the records of a query window.
func (s *Service) Events(ctx context.Context, q Query) ([]domain.EventRecord, error) {
	recs, err := s.loader.LoadEvents(ctx, q.Start, q.End, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return recs, nil
}

// Clusters loads a query window, corrects tornado times, clusters the result
// and publishes it. A failed publish is logged; the clusters are still
// returned.
func (s *Service) Clusters(ctx context.Context, q Query) (*ClusterResult, error) {
	if err := q.Params.Validate(); err != nil {
		return nil, err
	}
	recs, err := s.Events(ctx, q)
	if err != nil {
		return nil, err
	}
	recs = temporal.CorrectTornadoTimes(recs, s.correction)

	alg := q.Algorithm
	if alg == nil {
		alg = s.algorithm
	}
	c := cluster.NewClusterer(alg, s.track, s.logger, s.metrics)
	g, err := c.Cluster(ctx, recs, q.Params)
	if err != nil {
		return nil, fmt.Errorf("cluster events: %w", err)
	}

	runID := uuid.NewString()
	s.logger.Info("cluster run complete",
		"run_id", runID, "algorithm", alg.Name(), "events", len(recs),
		"clusters", g.Len(), "noise", g.Noise().Len())

	if s.publisher != nil && g.Len() > 0 {
		if err := s.publisher.PublishClusters(ctx, runID, g); err != nil {
			s.logger.Error("publish clusters failed", "run_id", runID, "error", err)
		}
	}
	return &ClusterResult{RunID: runID, Events: len(recs), Group: g}, nil
}
