package http

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// HostLimiter keeps one token bucket per host.
type HostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter allows perSecond requests per host with the given burst.
// A burst below one is treated as one.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	return &HostLimiter{
		limit:    rate.Limit(perSecond),
		burst:    max(burst, 1),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *HostLimiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}

// Allow reports whether a request to host may proceed now, consuming a token if so.
func (l *HostLimiter) Allow(host string) bool {
	return l.forHost(host).Allow()
}

// Wait blocks until a request to host may proceed.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	reservation := l.forHost(host).Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}
	observability.RateLimitWaitsTotal.WithLabelValues(host).Inc()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}
