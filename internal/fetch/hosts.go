package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiters enforces a minimum inter-request gap per remote host.
// Endpoints of different sources sharing a host are throttled together.
type hostLimiters struct {
	mu  sync.Mutex
	lim map[string]*rate.Limiter
}

func (h *hostLimiters) wait(ctx context.Context, host string, gap time.Duration) error {
	if gap <= 0 {
		return nil
	}
	h.mu.Lock()
	if h.lim == nil {
		h.lim = make(map[string]*rate.Limiter)
	}
	l, ok := h.lim[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(gap), 1)
		h.lim[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
