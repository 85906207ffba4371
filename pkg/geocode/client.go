// Package geocode resolves free-text place names to coordinates using a
// Nominatim (OpenStreetMap) search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultUserAgent identifies the application, as Nominatim's usage policy
// requires.
const DefaultUserAgent = "hilalscope/1.0 (+https://github.com/unklstewy/hilalscope)"

// ErrNotFound is returned by First when the query matched nothing.
var ErrNotFound = errors.New("place not found")

// Place is one search hit.
type Place struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Label returns the first comma-separated segment of the display name,
// e.g. "London" for "London, Greater London, England, United Kingdom".
func (p Place) Label() string {
	label, _, _ := strings.Cut(p.DisplayName, ",")
	return strings.TrimSpace(label)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Nominatim instance.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit sets the maximum request rate. Nominatim allows one request
// per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry sets the retry policy for rate-limit and transport failures.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// Client searches a Nominatim endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup returns up to limit places matching query. An empty slice with a
// nil error means nothing matched.
func (c *Client) Lookup(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	return RetryWithBackoffResult(ctx, c.retry, func() ([]Place, error) {
		return c.search(ctx, query, limit)
	})
}

// First returns the best match for query, or ErrNotFound.
func (c *Client) First(ctx context.Context, query string) (Place, error) {
	places, err := c.Lookup(ctx, query, 1)
	if err != nil {
		return Place{}, err
	}
	if len(places) == 0 {
		return Place{}, eris.Wrapf(ErrNotFound, "no results for %q", query)
	}
	return places[0], nil
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit wait")
	}

	params := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	zap.L().Debug("geocode request", zap.String("query", query), zap.Int("limit", limit))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "geocode: rate limited by " + c.baseURL,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var raw []nominatimResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: bad latitude %q", r.Lat)
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geocode: bad longitude %q", r.Lon)
		}
		places = append(places, Place{Latitude: lat, Longitude: lon, DisplayName: r.DisplayName})
	}
	return places, nil
}
