// Package fetch retrieves raw bytes for one source endpoint under the
// source's declared request policy: hard per-attempt timeout, bounded retry
// with jittered exponential backoff, and a minimum inter-request gap per
// remote host shared across all sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/cache"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

// ErrExhausted wraps the last attempt error once the retry budget is spent.
var ErrExhausted = errors.New("retries exhausted")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status: %d", e.Code) }

// Retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Result is the outcome of fetching one endpoint.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    string
	Attempts    int
	Elapsed     time.Duration
	// Revalidated is true when the remote answered 304 and the body was
	// served from the conditional cache.
	Revalidated bool
}

// Client fetches endpoints. The zero value is usable; fields tune behavior.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// Cache enables conditional revalidation when set.
	Cache *cache.Cache
	// MaxBodyBytes caps response size. Zero means the default (32 MiB).
	MaxBodyBytes int64
	// HostGap is the minimum spacing between requests to one host.
	// Zero disables host throttling.
	HostGap time.Duration
	// RedirectMaxHops caps redirect following. Zero means default (5).
	RedirectMaxHops int

	hosts hostLimiters

	// test seams
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rand  func() float64
}

func (c *Client) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) doSleep(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const defaultMaxBodyBytes = 32 << 20

// Fetch retrieves def's endpoint. It retries transport failures, timeouts,
// 429 and 5xx responses up to the definition's retry budget; any other 4xx
// is terminal on the first sight. The returned error wraps ErrExhausted
// when the budget ran out.
func (c *Client) Fetch(ctx context.Context, def *registry.Definition, endpoint string) (*Result, error) {
	target := def.EndpointURL(endpoint)
	u, err := url.Parse(target)
	if err != nil || !isHTTPScheme(u) {
		return nil, fmt.Errorf("endpoint %q: not an http(s) URL", target)
	}

	attempts := def.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(def.RequestTimeoutSeconds) * time.Second
	baseDelay := time.Duration(def.RetryDelaySeconds * float64(time.Second))

	start := c.timeNow()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.hosts.wait(ctx, u.Hostname(), c.HostGap); err != nil {
			return nil, err
		}

		res, err := c.tryOnce(ctx, def, target, timeout)
		if err == nil {
			res.Attempts = attempt
			res.Elapsed = c.timeNow().Sub(start)
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			log.Debug().Str("source", def.ID).Str("url", target).Err(err).Msg("terminal fetch failure")
			return nil, err
		}
		if attempt == attempts {
			break
		}
		delay := backoff(baseDelay, attempt, c.rand)
		log.Debug().Str("source", def.ID).Str("url", target).Int("attempt", attempt).
			Dur("delay", delay).Err(err).Msg("retrying fetch")
		if err := c.doSleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s after %d attempts: %w (%w)", target, attempts, ErrExhausted, lastErr)
}

func (c *Client) tryOnce(ctx context.Context, def *registry.Definition, target string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range def.Headers {
		req.Header.Set(k, v)
	}

	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.Meta(ctx, target); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
			if etag != "" {
				req.Header.Set("If-None-Match", etag)
			}
			if lastMod != "" {
				req.Header.Set("If-Modified-Since", lastMod)
			}
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusNotModified && c.Cache != nil {
		body, err := c.Cache.Body(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("304 but cache body missing: %w", err)
		}
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			if meta, err := c.Cache.Meta(ctx, target); err == nil && meta != nil {
				ct = meta.ContentType
			}
		}
		return &Result{Body: body, ContentType: ct, StatusCode: resp.StatusCode, FinalURL: finalURL, Revalidated: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	maxBody := c.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBody)
	}

	ct := resp.Header.Get("Content-Type")
	if c.Cache != nil {
		if err := c.Cache.Store(ctx, target, ct, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), body); err != nil {
			log.Warn().Str("url", target).Err(err).Msg("cache store failed")
		}
	}
	return &Result{Body: body, ContentType: ct, StatusCode: resp.StatusCode, FinalURL: finalURL}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach the redirect policy without mutating the caller's client.
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirect()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirect()}
}

func (c *Client) checkRedirect() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

// retryable classifies transport errors, timeouts, 429 and 5xx as worth
// another attempt. Context cancellation from the caller is not retried.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Deadline errors here come from the per-attempt timeout.
	return true
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}
