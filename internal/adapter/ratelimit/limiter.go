package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vnykmshr/goflow/pkg/ratelimit/bucket"
	"golang.org/x/time/rate"
)

// HostLimiter paces requests per host with one token bucket each.
type HostLimiter struct {
	perSecond float64
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter allowing perSecond requests to each host.
// A non-positive rate disables limiting.
func NewHostLimiter(perSecond float64) *HostLimiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{perSecond: perSecond, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to host is permitted.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || h.perSecond <= 0 || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.perSecond), h.burst)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}

// Limiter combines a global token bucket with per-host pacing.
type Limiter struct {
	global bucket.Limiter
	hosts  *HostLimiter
}

// New builds a limiter. Non-positive rates disable the corresponding stage.
func New(globalPerSecond, perHostPerSecond float64) (*Limiter, error) {
	l := &Limiter{hosts: NewHostLimiter(perHostPerSecond)}
	if globalPerSecond > 0 {
		// Burst capacity of 2x the rate per second
		burst := int(globalPerSecond * 2)
		if burst < 1 {
			burst = 1
		}
		global, err := bucket.NewSafe(bucket.Limit(globalPerSecond), burst)
		if err != nil {
			return nil, fmt.Errorf("create global rate limiter: %w", err)
		}
		l.global = global
	}
	return l, nil
}

// Wait blocks until both the global and the host budget allow a request.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}
	if l.global != nil {
		if err := l.global.Wait(ctx); err != nil {
			return err
		}
	}
	return l.hosts.Wait(ctx, host)
}
