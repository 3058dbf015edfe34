// Package ratelimit throttles API writes with one token bucket per key
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Level represents the level of rate limiting
type Level string

const (
	LevelOrganization Level = "organization"
	LevelActor        Level = "actor"
	LevelIP           Level = "ip"
)

// Config contains rate limit configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL drops buckets not used for this long (default: 10m)
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter implements per-key token buckets
type Limiter struct {
	cfg     Config
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Result describes a rate limit decision
type Result struct {
	Allowed    bool
	Level      Level
	Key        string
	RetryAfter time.Duration
}

// NewLimiter creates a new rate limiter
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Allow takes one token from the bucket of (level, key)
func (l *Limiter) Allow(level Level, key string) *Result {
	now := l.now()

	l.mu.Lock()
	b := l.getOrCreate(makeKey(level, key), now)
	r := b.limiter.ReserveN(now, 1)
	l.mu.Unlock()

	res := &Result{Allowed: true, Level: level, Key: key}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.Allowed = false
		res.RetryAfter = delay
	}
	return res
}

// Len returns the number of tracked buckets
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Start runs the idle bucket eviction loop until ctx is done or Stop is called
func (l *Limiter) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cfg.IdleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-ticker.C:
				l.evictIdle()
			}
		}
	}()
}

// Stop stops the eviction loop
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

func (l *Limiter) getOrCreate(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

func (l *Limiter) evictIdle() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			evicted++
		}
	}
	return evicted
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}
