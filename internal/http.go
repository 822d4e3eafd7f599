package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/go-salesforce-api-wrapper/pkg/errors"
	"github.com/jamesprial/go-salesforce-api-wrapper/pkg/types"
)

// Client manages communication with the Salesforce REST and Bulk APIs.
type Client struct {
	client    *http.Client
	session   *Session
	UserAgent string
	logger    *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
	usage          types.APIUsage
}

// RateLimitConfig controls client-side throttling of outgoing requests.
type RateLimitConfig struct {
	// RequestsPerSecond caps steady-state throughput. Zero means unlimited.
	RequestsPerSecond float64
	// Burst allows short spikes above the steady-state rate. Defaults to 1 when a rate is set.
	Burst int
}

const (
	dataPathPrefix     = "/services/data/"
	limitInfoHeader    = "Sforce-Limit-Info"
	retryAfterHeader   = "Retry-After"
	ParseFloatBitSize  = 64
	maxLoggedBodyBytes = 512
)

// NewClient returns a new Salesforce API client bound to session.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, session *Session, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		session:   session,
		UserAgent: userAgent,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
	}
}

// ResolveURL turns path into an absolute URL.
// Paths starting with "/" are resolved against the instance URL
// (e.g. "/services/data/" or a nextRecordsUrl); other paths are resolved
// against the versioned data path "{instance}/services/data/{version}/".
func (c *Client) ResolveURL(instanceURL, path string) (string, error) {
	base := instanceURL + dataPathPrefix + c.session.Version() + "/"
	if strings.HasPrefix(path, "/") {
		base = instanceURL + "/"
		path = strings.TrimPrefix(path, "/")
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u, err := baseURL.Parse(path)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// NewRequest creates an authenticated API request. See ResolveURL for how path is interpreted.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	authorization, instanceURL, err := c.session.Credentials(method + " " + path)
	if err != nil {
		return nil, err
	}

	u, err := c.ResolveURL(instanceURL, path)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method, URL: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: method, URL: u, Err: err}
	}

	req.Header.Set("Authorization", authorization)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// NewJSONRequest creates a request whose body is v encoded as JSON.
func (c *Client) NewJSONRequest(ctx context.Context, method, path string, v any) (*http.Request, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: method + " " + path, Message: "failed to encode request body", Err: err}
	}
	return c.NewRequest(ctx, method, path, bytes.NewReader(payload))
}

// Do sends an API request. A 2xx body is JSON decoded into v unless v is nil
// or the body is empty; any other status is returned as an *errors.APIError
// built from Salesforce's error body.
func (c *Client) Do(req *http.Request, v any) (*http.Response, error) {
	body, resp, err := c.do(req)
	if err != nil {
		return resp, err
	}

	if v != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return resp, &pkgerrs.ParseError{Operation: req.Method + " " + req.URL.Path, Err: err}
		}
	}

	return resp, nil
}

// DoRaw sends an API request and returns the raw 2xx body.
func (c *Client) DoRaw(req *http.Request) ([]byte, *http.Response, error) {
	return c.do(req)
}

// APIUsage returns the most recent Sforce-Limit-Info reading.
func (c *Client) APIUsage() types.APIUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, nil, &pkgerrs.RequestError{Operation: req.Method, URL: req.URL.String(), Err: err}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("salesforce request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, nil, &pkgerrs.RequestError{Operation: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &pkgerrs.RequestError{Operation: req.Method, URL: req.URL.String(), Message: "failed to read response body", Err: err}
	}

	c.applyRateHeaders(resp)

	c.logger.Debug("salesforce request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("salesforce error response", "status", resp.StatusCode, "body", truncate(body, maxLoggedBodyBytes))
		return body, resp, ParseAPIError(resp.StatusCode, body)
	}

	return body, resp, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get(retryAfterHeader); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 && !math.IsInf(seconds, 0) {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	if usage, ok := ParseLimitInfo(resp.Header.Get(limitInfoHeader)); ok {
		c.mu.Lock()
		c.usage = usage
		c.mu.Unlock()
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
