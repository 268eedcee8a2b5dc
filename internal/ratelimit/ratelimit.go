package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// PoliteLimiter spaces out requests to one site: a token bucket plus a
// random pause of up to jitter after each token.
type PoliteLimiter struct {
	limiter *rate.Limiter
	jitter  time.Duration
	mu      sync.Mutex
	rnd     *rand.Rand
}

func NewPoliteLimiter(perSecond float64, burst int, jitter time.Duration) *PoliteLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PoliteLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		jitter:  jitter,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PoliteLimiter) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	delay := p.jitterDelay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *PoliteLimiter) Limit() rate.Limit {
	return p.limiter.Limit()
}

func (p *PoliteLimiter) SetLimit(limit rate.Limit) {
	p.limiter.SetLimit(limit)
}

func (p *PoliteLimiter) jitterDelay() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rnd.Int63n(int64(p.jitter)))
}

// AdaptiveRateLimiter slows down after repeated fetch failures and speeds
// back up towards the configured rate after a run of successes.
type AdaptiveRateLimiter struct {
	*PoliteLimiter
	baseLimit     rate.Limit
	minLimit      rate.Limit
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
	mu            sync.Mutex
}

func NewAdaptiveRateLimiter(perSecond float64, burst int, jitter time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		PoliteLimiter: NewPoliteLimiter(perSecond, burst, jitter),
		baseLimit:     rate.Limit(perSecond),
		minLimit:      rate.Limit(perSecond / 16),
		maxErrorCount: 3,
		backoffFactor: 2,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		next := a.Limit() * 1.25
		if next > a.baseLimit {
			next = a.baseLimit
		}
		a.SetLimit(next)
		a.successCount = 0
	}
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		next := a.Limit() / rate.Limit(a.backoffFactor)
		if next < a.minLimit {
			next = a.minLimit
		}
		a.SetLimit(next)
		a.errorCount = 0
	}
}
