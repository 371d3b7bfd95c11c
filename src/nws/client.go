// Package nws is a client for the National Weather Service API (api.weather.gov)
package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultBaseURL is the public NWS API
	DefaultBaseURL = "https://api.weather.gov"
	// DefaultUserAgent identifies the client; the API rejects requests without one
	DefaultUserAgent = "weather-app/1.0"
	// DefaultTimeout is the per-request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultCacheTTL applies to forecasts and alerts
	DefaultCacheTTL = 5 * time.Minute
	// PointCacheTTL applies to point metadata, which rarely changes
	PointCacheTTL = 1 * time.Hour

	acceptHeader = "application/geo+json"
	maxErrorBody = 4096
)

// ErrNotFound is matched by StatusError values carrying a 404
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	URL        string
	Title      string
	Detail     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("NWS API returned status %d for %s", e.StatusCode, e.URL)
	switch {
	case e.Detail != "":
		msg += ": " + e.Detail
	case e.Title != "":
		msg += ": " + e.Title
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) work for 404 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Client talks to the NWS API
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      *cache.Cache
	cacheTTL   time.Duration
	logger     *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTimeout sets the per-request timeout of the client's own HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithCacheTTL sets the TTL for forecasts and alerts. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client with the given options
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		cacheTTL:   DefaultCacheTTL,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("nws")
	if c.cacheTTL > 0 {
		c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}
	return c
}

// BaseURL returns the configured API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FormatCoordinate renders a coordinate the way the API expects in a path:
// the shortest decimal that round-trips
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Point looks up grid metadata and forecast links for a coordinate
func (c *Client) Point(ctx context.Context, lat, lon float64) (*Point, error) {
	u := fmt.Sprintf("%s/points/%s,%s", c.baseURL, FormatCoordinate(lat), FormatCoordinate(lon))

	var point Point
	if err := c.getCached(ctx, "points", u, PointCacheTTL, &point); err != nil {
		return nil, err
	}
	return &point, nil
}

// Forecast fetches the forecast behind a point's forecast link. Relative
// links are resolved against the base URL.
func (c *Client) Forecast(ctx context.Context, forecastURL string) (*Forecast, error) {
	if forecastURL == "" {
		return nil, errors.New("empty forecast URL")
	}
	u, err := c.resolve(forecastURL)
	if err != nil {
		return nil, err
	}

	var forecast Forecast
	if err := c.getCached(ctx, "forecast", u, c.cacheTTL, &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

// ActiveAlerts fetches active alerts for an area (US state or marine area code)
func (c *Client) ActiveAlerts(ctx context.Context, area string) (*AlertCollection, error) {
	area = strings.ToUpper(strings.TrimSpace(area))
	if area == "" {
		return nil, errors.New("empty area code")
	}
	u := fmt.Sprintf("%s/alerts/active/area/%s", c.baseURL, url.PathEscape(area))

	var alerts AlertCollection
	if err := c.getCached(ctx, "alerts", u, c.cacheTTL, &alerts); err != nil {
		return nil, err
	}
	return &alerts, nil
}

func (c *Client) resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse forecast URL: %w", err)
	}
	if parsed.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	return base.ResolveReference(parsed).String(), nil
}

// getCached serves a decoded response from the cache or fetches and stores it.
// result must be a pointer to a struct value.
func (c *Client) getCached(ctx context.Context, endpoint, u string, ttl time.Duration, result interface{}) error {
	if c.cache == nil || ttl <= 0 {
		return c.getJSON(ctx, endpoint, u, result)
	}

	if cached, found := c.cache.Get(u); found {
		metrics.CacheHits.WithLabelValues(endpoint).Inc()
		c.logger.Debug("cache hit %s", u)
		return json.Unmarshal(cached.([]byte), result)
	}
	metrics.CacheMisses.WithLabelValues(endpoint).Inc()

	if err := c.getJSON(ctx, endpoint, u, result); err != nil {
		return err
	}

	// Store the re-encoded value so callers never share mutable state
	if data, err := json.Marshal(result); err == nil {
		c.cache.Set(u, data, ttl)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, u string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.logger.Debug("GET %s failed: %v", u, err)
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug("GET %s -> %d (%s)", u, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp, u)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func newStatusError(resp *http.Response, u string) *StatusError {
	statusErr := &StatusError{StatusCode: resp.StatusCode, URL: u}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var p problem
	if err := json.Unmarshal(body, &p); err == nil {
		statusErr.Title = p.Title
		statusErr.Detail = p.Detail
	} else if text := strings.TrimSpace(string(body)); text != "" {
		statusErr.Detail = text
	}
	return statusErr
}
