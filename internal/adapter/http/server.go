// Package http serves the health, metrics and query endpoints of the
// service.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/pipeline"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
	"github.com/couchcryptid/storm-data-clusters/internal/timezone"
)

// queryTimeout bounds a single events or clusters request. Cold archive
// downloads dominate it.
const queryTimeout = 5 * time.Minute

// StormService is the query surface behind the API.
type StormService interface {
	sharedobs.ReadinessChecker
	Events(ctx context.Context, q pipeline.Query) ([]domain.EventRecord, error)
	Clusters(ctx context.Context, q pipeline.Query) (*pipeline.ClusterResult, error)
}

// Defaults fill query parameters the caller leaves out.
type Defaults struct {
	TimeZone string
	Params   cluster.Params
}

// Server exposes health, readiness, metrics and query HTTP endpoints.
type Server struct {
	httpServer *http.Server
	svc        StormService
	defaults   Defaults
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /v1/events and /v1/clusters routes.
func NewServer(addr string, svc StormService, defaults Defaults, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: queryTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:      svc,
		defaults: defaults,
		logger:   logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(svc))
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/clusters", s.handleClusters)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	recs, err := s.svc.Events(ctx, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]eventJSON, len(recs))
	for i, rec := range recs {
		out[i] = toEventJSON(rec)
	}
	writeJSON(w, http.StatusOK, eventsResponse{Count: len(out), Events: out})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	res, err := s.svc.Clusters(ctx, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := toClustersResponse(res, q.Filter.TimeZone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps service errors onto status codes. Caller mistakes become 400s.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stormevents.ErrInvalidRange),
		errors.Is(err, stormevents.ErrInvalidOptions),
		errors.Is(err, cluster.ErrInvalidParams),
		errors.Is(err, timezone.ErrInvalidTimeZone):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		s.logger.Error("query failed",
			"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
