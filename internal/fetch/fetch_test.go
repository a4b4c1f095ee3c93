package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/cache"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

func testDef(baseURL string) *registry.Definition {
	return &registry.Definition{
		ID:                    "src-1",
		Name:                  "Test source",
		SourceType:            registry.StaticHTML,
		FetchMethod:           registry.DirectDownload,
		BaseURL:               baseURL,
		Endpoints:             []string{"/doc"},
		MaxRetries:            3,
		RetryDelaySeconds:     1.0,
		RequestTimeoutSeconds: 5,
	}
}

// noSleep records requested delays without waiting.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	def := testDef(srv.URL)
	def.Headers = map[string]string{"Authorization": "token abc"}

	c := &Client{UserAgent: "regingest-test"}
	res, err := c.Fetch(context.Background(), def, "/doc")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, res.ContentType, "text/html")
	assert.NotEmpty(t, res.Body)
}

func TestFetch_RetryThenSucceed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	var delays []time.Duration
	c := &Client{sleep: noSleep(&delays), rand: func() float64 { return 0.5 }}
	res, err := c.Fetch(context.Background(), testDef(srv.URL), "/doc")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []byte("recovered"), res.Body)
	// Exponential backoff seeded at retryDelaySeconds, doubling, no jitter
	// with rand pinned to the midpoint.
	require.Len(t, delays, 2)
	assert.Equal(t, 1*time.Second, delays[0])
	assert.Equal(t, 2*time.Second, delays[1])
}

func TestFetch_ExhaustsRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := &Client{sleep: noSleep(&delays)}
	_, err := c.Fetch(context.Background(), testDef(srv.URL), "/doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetch_4xxIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{}
	_, err := c.Fetch(context.Background(), testDef(srv.URL), "/doc")
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "404 must not be retried")
}

func TestFetch_429IsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var delays []time.Duration
	c := &Client{sleep: noSleep(&delays)}
	res, err := c.Fetch(context.Background(), testDef(srv.URL), "/doc")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestFetch_Conditional304ServesCachedBody(t *testing.T) {
	etag := `"fp-1"`
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first body"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("unexpected"))
	}))
	defer srv.Close()

	c := &Client{Cache: &cache.Cache{Dir: t.TempDir()}}
	def := testDef(srv.URL)

	res1, err := c.Fetch(context.Background(), def, "/doc")
	require.NoError(t, err)
	assert.False(t, res1.Revalidated)

	res2, err := c.Fetch(context.Background(), def, "/doc")
	require.NoError(t, err)
	assert.True(t, res2.Revalidated)
	assert.Equal(t, []byte("first body"), res2.Body)
	assert.Contains(t, res2.ContentType, "text/html")
}

func TestFetch_BodySizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	c := &Client{MaxBodyBytes: 1024}
	_, err := c.Fetch(context.Background(), testDef(srv.URL), "/doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetch_RejectsNonHTTPScheme(t *testing.T) {
	def := testDef("ftp://example.com")
	c := &Client{}
	_, err := c.Fetch(context.Background(), def, "/doc")
	require.Error(t, err)
}

func TestFetch_CancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	_, err := c.Fetch(ctx, testDef(srv.URL), "/doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(context.DeadlineExceeded), "per-attempt timeout is retryable")
	assert.False(t, retryable(context.Canceled))
	assert.True(t, retryable(&StatusError{Code: 503}))
	assert.True(t, retryable(&StatusError{Code: 429}))
	assert.False(t, retryable(&StatusError{Code: 403}))
	assert.True(t, retryable(errors.New("connection refused")))
}

func TestBackoff_JitterBounds(t *testing.T) {
	base := time.Second
	low := backoff(base, 1, func() float64 { return 0 })
	high := backoff(base, 1, func() float64 { return 1 })
	assert.Equal(t, 800*time.Millisecond, low)
	assert.Equal(t, 1200*time.Millisecond, high)
	assert.Equal(t, 4*time.Second, backoff(base, 3, func() float64 { return 0.5 }))
	assert.Zero(t, backoff(0, 3, nil))
}

func TestHostGap_ThrottlesSameHost(t *testing.T) {
	var h hostLimiters
	ctx := context.Background()
	gap := 30 * time.Millisecond

	require.NoError(t, h.wait(ctx, "example.com", gap))
	start := time.Now()
	require.NoError(t, h.wait(ctx, "example.com", gap))
	assert.GreaterOrEqual(t, time.Since(start), gap/2, "second request to the same host should wait")

	// A different host is not throttled by the first host's limiter.
	start = time.Now()
	require.NoError(t, h.wait(ctx, "other.com", gap))
	assert.Less(t, time.Since(start), gap)
}
