// Package ratelimit provides token-bucket limiting for inbound WebSocket
// events and for the execution proxy endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket refilled at a fixed rate.
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Allow consumes one token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
}

// PerKey hands out one Limiter per key (e.g. remote address), creating them
// on first use.
type PerKey struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.Mutex
}

func NewPerKey(rate float64, burst int) *PerKey {
	return &PerKey{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}
}

// Get returns the limiter for a key, creating it if needed. The map is
// rebuilt once it grows past a bound so abandoned keys cannot accumulate
// forever.
func (p *PerKey) Get(key string) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.limiters) > 10000 {
		p.limiters = make(map[string]*Limiter)
	}

	limiter, ok := p.limiters[key]
	if !ok {
		limiter = NewLimiter(p.rate, p.burst)
		p.limiters[key] = limiter
	}
	return limiter
}
