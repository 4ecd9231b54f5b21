// Package fetch downloads remote files into a working directory with a
// bounded worker pool, reusing fresh local copies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

// DefaultWorkers bounds concurrent downloads when Config.Workers is unset.
const DefaultWorkers = 4

// maxPageBytes caps bodies read into memory by Get.
const maxPageBytes = 8 << 20

// Config is the explicit retrieval configuration threaded through every call.
type Config struct {
	// Dir receives downloaded files.
	Dir string
	// Workers bounds concurrent downloads.
	Workers int
	// Timeout applies to each request individually.
	Timeout time.Duration
	// OverrideExisting always downloads, ignoring local copies.
	OverrideExisting bool
	// MaxAge is how long a local copy stays fresh. Zero keeps copies forever.
	MaxAge time.Duration
}

// Result is the outcome of fetching one URL.
type Result[T any] struct {
	URL     string
	Path    string
	Success bool
	Err     error
	Output  T
}

// DestFunc maps a URL to its local path.
type DestFunc func(rawURL string) string

// TransformFunc turns a fetched file into a value.
type TransformFunc[T any] func(ctx context.Context, path string) (T, error)

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// Fetcher performs HTTP retrievals behind a shared circuit breaker.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher. metrics may be nil.
func New(cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	f := &Fetcher{
		cfg:     cfg,
		client:  &http.Client{},
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "archive-fetch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return f
}

// Config returns the fetcher's configuration with defaults applied.
func (f *Fetcher) Config() Config { return f.cfg }

// Fetch downloads every URL and reports each file's local path.
func (f *Fetcher) Fetch(ctx context.Context, urls []string, dest DestFunc) []Result[string] {
	return FetchAndTransform(ctx, f, urls, dest, func(_ context.Context, p string) (string, error) {
		return p, nil
	})
}

// FetchAndTransform downloads every URL and passes each file through
// transform. Results keep input order. A failed URL never stops the others.
func FetchAndTransform[T any](ctx context.Context, f *Fetcher, urls []string, dest DestFunc, transform TransformFunc[T]) []Result[T] {
	if dest == nil {
		dest = f.DefaultDest
	}
	results := make([]Result[T], len(urls))

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for i, u := range urls {
		results[i] = Result[T]{URL: u, Path: dest(u)}
		g.Go(func() error {
			r := &results[i]
			if err := ctx.Err(); err != nil {
				r.Err = err
				return nil
			}
			if err := f.ensure(ctx, r.URL, r.Path); err != nil {
				r.Err = err
				return nil
			}
			out, err := transform(ctx, r.Path)
			if err != nil {
				r.Err = fmt.Errorf("transform %s: %w", r.Path, err)
				return nil
			}
			r.Output = out
			r.Success = true
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// DefaultDest places a URL's last path segment in the configured directory.
func (f *Fetcher) DefaultDest(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	return filepath.Join(f.cfg.Dir, name)
}

// ensure leaves a fresh copy of rawURL at dst, downloading when needed.
func (f *Fetcher) ensure(ctx context.Context, rawURL, dst string) error {
	if !f.cfg.OverrideExisting && f.fresh(dst) {
		f.logger.Debug("using cached file", "url", rawURL, "path", dst)
		f.observe("cached", 0)
		return nil
	}

	start := time.Now()
	err := f.download(ctx, rawURL, dst)
	if err != nil {
		f.logger.Warn("fetch failed", "url", rawURL, "error", err)
		f.observe("error", 0)
		return err
	}
	f.logger.Debug("fetched file", "url", rawURL, "path", dst, "duration", time.Since(start))
	f.observe("downloaded", time.Since(start))
	return nil
}

func (f *Fetcher) fresh(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	return f.cfg.MaxAge == 0 || domain.Since(info.ModTime()) < f.cfg.MaxAge
}

// download writes to a temporary file beside dst and renames it into place,
// so readers never see a partial file.
func (f *Fetcher) download(ctx context.Context, rawURL, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	_, err := f.breaker.Execute(func() (struct{}, error) {
		body, err := f.open(ctx, rawURL)
		if err != nil {
			return struct{}{}, err
		}
		defer body.Close()

		tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
		if err != nil {
			return struct{}{}, fmt.Errorf("create temp file: %w", err)
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

		if _, err := io.Copy(tmp, body); err != nil {
			tmp.Close() //nolint:errcheck,gosec // copy error takes precedence
			return struct{}{}, fmt.Errorf("download %s: %w", rawURL, err)
		}
		if err := tmp.Close(); err != nil {
			return struct{}{}, fmt.Errorf("close temp file: %w", err)
		}
		if err := os.Rename(tmp.Name(), dst); err != nil {
			return struct{}{}, fmt.Errorf("move into place: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Get reads a small remote document, such as a directory listing, through
// the same breaker as downloads.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	_, err := f.breaker.Execute(func() (struct{}, error) {
		body, err := f.open(ctx, rawURL)
		if err != nil {
			return struct{}{}, err
		}
		defer body.Close()
		data, err = io.ReadAll(io.LimitReader(body, maxPageBytes))
		if err != nil {
			return struct{}{}, fmt.Errorf("read %s: %w", rawURL, err)
		}
		return struct{}{}, nil
	})
	return data, err
}

// open issues a GET and returns the body of a 200 response. The request
// deadline is released when the body is closed.
func (f *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if f.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck,gosec // body unused
		cancel()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (f *Fetcher) observe(outcome string, d time.Duration) {
	if f.metrics == nil {
		return
	}
	f.metrics.FetchRequests.WithLabelValues(outcome).Inc()
	if outcome == "downloaded" {
		f.metrics.FetchDuration.Observe(d.Seconds())
	}
}

// IsBreakerOpen reports whether err came from a rejected call while the
// circuit was open or probing.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
