// Package tzlookup resolves the standard UTC offset at a coordinate through
// the Google Time Zone API, with in-memory and on-disk caching layers.
package tzlookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

// DefaultBaseURL is the Google Time Zone API endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/timezone/json"

// ErrNoZone is returned for coordinates outside any time zone, such as open
// ocean.
var ErrNoZone = errors.New("no time zone at location")

// Client implements domain.TimeZoneLocator using the Google Time Zone API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[time.Duration]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates a time zone lookup client. metrics may be nil.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(rate.Limit(40), 10),
		metrics: metrics,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[time.Duration](gobreaker.Settings{
		Name:        "tz-lookup",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoZone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

var _ domain.TimeZoneLocator = (*Client)(nil)

// StandardOffset returns the raw (non-DST) offset of the zone at lat, lon.
func (c *Client) StandardOffset(ctx context.Context, lat, lon float64) (time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{
		"location":  {strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lon, 'f', 6, 64)},
		"timestamp": {strconv.FormatInt(domain.Now().Unix(), 10)},
		"key":       {c.apiKey},
	}

	start := time.Now()
	offset, err := c.breaker.Execute(func() (time.Duration, error) {
		return c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	})
	if c.metrics != nil {
		c.metrics.TZLookupAPIDuration.Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		c.observe("ok")
	case errors.Is(err, ErrNoZone):
		c.observe("not_found")
	default:
		c.observe("error")
		c.logger.Warn("time zone lookup failed", "lat", lat, "lon", lon, "error", err)
	}
	return offset, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("time zone request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("time zone API error: status %d: %s", resp.StatusCode, body)
	}

	var tzResp response
	if err := json.NewDecoder(resp.Body).Decode(&tzResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	switch tzResp.Status {
	case "OK":
		return time.Duration(tzResp.RawOffset) * time.Second, nil
	case "ZERO_RESULTS":
		return 0, ErrNoZone
	default:
		return 0, fmt.Errorf("time zone API error: %s: %s", tzResp.Status, tzResp.ErrorMessage)
	}
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.TZLookupRequests.WithLabelValues(outcome).Inc()
	}
}

// Time Zone API response.

type response struct {
	DSTOffset    int64  `json:"dstOffset"`
	RawOffset    int64  `json:"rawOffset"` // seconds, excludes DST
	Status       string `json:"status"`
	TimeZoneID   string `json:"timeZoneId"`
	TimeZoneName string `json:"timeZoneName"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
