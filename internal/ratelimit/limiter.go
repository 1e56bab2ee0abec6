package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wallet-tax-engine/internal/observability"
)

// DefaultSpacing is the minimum interval between two calls to the same provider.
const DefaultSpacing = 200 * time.Millisecond

// Gate enforces a minimum spacing between calls. Callers are delayed, never rejected.
type Gate struct {
	limiter *rate.Limiter
	clock   Clock
}

// NewGate creates a gate admitting one call per spacing. Spacing <= 0 disables the gate.
func NewGate(spacing time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = SystemClock()
	}
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &Gate{
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
	}
}

// Wait blocks until the next call slot and returns how long the caller was delayed.
// On cancellation the reserved slot is released.
func (g *Gate) Wait(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := g.clock.Now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0, fmt.Errorf("rate limiter: reservation exceeds burst")
	}

	delay := r.DelayFrom(now)
	if delay <= 0 {
		return 0, nil
	}
	if err := g.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(g.clock.Now())
		return 0, err
	}
	return delay, nil
}

// Limiter holds one Gate per upstream provider.
type Limiter struct {
	mu        sync.Mutex
	spacing   time.Duration
	overrides map[string]time.Duration
	gates     map[string]*Gate
	clock     Clock
}

// NewLimiter creates a limiter applying spacing to every provider without an override.
func NewLimiter(spacing time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &Limiter{
		spacing:   spacing,
		overrides: make(map[string]time.Duration),
		gates:     make(map[string]*Gate),
		clock:     clock,
	}
}

// SetSpacing overrides the spacing for one provider. Must be called before its first Wait.
func (l *Limiter) SetSpacing(provider string, spacing time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[provider] = spacing
	delete(l.gates, provider)
}

// Wait blocks until provider may be called again.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	delay, err := l.gate(provider).Wait(ctx)
	if err != nil {
		return err
	}
	observability.RecordRateLimitWait(provider, delay.Seconds())
	return nil
}

// Clock returns the limiter's clock.
func (l *Limiter) Clock() Clock {
	return l.clock
}

func (l *Limiter) gate(provider string) *Gate {
	l.mu.Lock()
	defer l.mu.Unlock()

	if g, ok := l.gates[provider]; ok {
		return g
	}
	spacing := l.spacing
	if s, ok := l.overrides[provider]; ok {
		spacing = s
	}
	g := NewGate(spacing, l.clock)
	l.gates[provider] = g
	return g
}
