// Package transfer is the authenticated HTTP side of the scraper: a
// cookie-bearing client used for streamed downloads once the browser
// session has resolved a file URL. Cookies are seeded once after login and
// are not refreshed mid-run.
package transfer

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/ratelimit"
	"canvasfetch/pkg/retry"
)

// Client wraps an http.Client with the session cookies, default headers,
// pacing and retry behavior the portal expects.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewClient creates a transfer client. limiter may be nil to disable pacing.
func NewClient(timeout time.Duration, limiter ratelimit.Limiter, maxRetries int, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
		},
		limiter: limiter,
		retrier: retry.NewTransferRetrier(maxRetries, log),
		logger:  log,
	}
}

// SetHeader sets a custom header for every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SeedCookies installs the browser session's cookies for the portal host.
// Called exactly once, after login completes.
func (c *Client) SeedCookies(baseURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return errs.New(errs.ErrorTypeAuth, "invalid portal URL %q: %v", baseURL, err)
	}
	c.httpClient.Jar.SetCookies(u, cookies)

	c.logger.DebugWithFields("session cookies seeded", map[string]interface{}{
		"host":    u.Host,
		"cookies": len(cookies),
	})
	return nil
}

// Fetch performs a streamed GET against the given URL. On success the caller
// owns the returned body and must close it. The reported length is -1 when
// the server sends no Content-Length.
func (c *Client) Fetch(rawURL string) (io.ReadCloser, int64, error) {
	var body io.ReadCloser
	var length int64

	err := c.retrier.Do(func() error {
		b, n, err := c.fetchOnce(rawURL)
		if err != nil {
			return err
		}
		body, length = b, n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return body, length, nil
}

func (c *Client) fetchOnce(rawURL string) (io.ReadCloser, int64, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.DebugWithFields("transfer paced by rate limit", map[string]interface{}{
			"url": rawURL,
		})
		c.limiter.Wait()
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, errs.New(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		return nil, 0, errs.New(errs.ErrorTypeNetwork, "network error: %v", err)
	}

	if err := checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		logger.LogRequest(http.MethodGet, rawURL, resp.StatusCode, float64(time.Since(start).Milliseconds()))
		return nil, 0, err
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	return resp.Body, resp.ContentLength, nil
}

// checkResponseStatus maps HTTP statuses onto the failure taxonomy.
func checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.NewHTTP(errs.ErrorTypeAuth, resp.StatusCode, "authentication required")
	case resp.StatusCode == http.StatusNotFound:
		return errs.NewHTTP(errs.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errs.NewHTTP(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		return errs.NewHTTP(errs.ErrorTypeServerError, resp.StatusCode, "server error")
	default:
		return errs.NewHTTP(errs.ErrorTypeTransfer, resp.StatusCode, "unexpected status code")
	}
}
