package worker

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// unknownPayer is the bucket shared by claims with no payer
const unknownPayer = "(unknown)"

// Limiter throttles work per payer
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per payer
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until the payer's bucket allows another claim or ctx is done
func (l *Limiter) Wait(ctx context.Context, payer string) error {
	return l.getLimiter(payerKey(payer)).Wait(ctx)
}

// Allow reports whether a claim for payer may proceed now without waiting
func (l *Limiter) Allow(payer string) bool {
	return l.getLimiter(payerKey(payer)).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// SetPayerRate overrides the rate for one payer
func (l *Limiter) SetPayerRate(payer string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[payerKey(payer)] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// payerKey normalizes payer names so "Aetna" and " aetna " share a bucket
func payerKey(payer string) string {
	key := strings.ToLower(strings.TrimSpace(payer))
	if key == "" {
		return unknownPayer
	}
	return key
}
