// Package expiry runs the background jobs that move enrollments and
// campaigns past their deadlines.
package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foxzi/hyperdrive/internal/lifecycle"
)

// Runner is the part of the lifecycle service the sweeper drives
type Runner interface {
	ExpireOverdue(ctx context.Context) (*lifecycle.ExpiryReport, error)
	Check(ctx context.Context) (*lifecycle.Snapshot, error)
}

// Config contains sweeper settings
type Config struct {
	// Interval between expiry passes
	Interval time.Duration
	// CheckInterval between consistency checks, 0 disables them
	CheckInterval time.Duration
}

// Sweeper expires overdue enrollments and stale campaigns
type Sweeper struct {
	runner Runner
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
}

// NewSweeper creates a new sweeper
func NewSweeper(runner Runner, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Sweeper{
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "expiry"),
		done:   make(chan struct{}),
	}
}

// Start starts the sweeper goroutines
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx, s.cfg.Interval, s.runExpiry)

	if s.cfg.CheckInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, s.cfg.CheckInterval, s.runCheck)
	}

	s.logger.Info("sweeper started",
		"interval", s.cfg.Interval,
		"check_interval", s.cfg.CheckInterval,
	)
}

// Stop stops the sweeper and waits for goroutines to finish
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// RunOnce performs a single expiry pass
func (s *Sweeper) RunOnce(ctx context.Context) (*lifecycle.ExpiryReport, error) {
	return s.runner.ExpireOverdue(ctx)
}

func (s *Sweeper) runExpiry(ctx context.Context) {
	if _, err := s.runner.ExpireOverdue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("expiry pass failed", "error", err)
	}
}

func (s *Sweeper) runCheck(ctx context.Context) {
	snap, err := s.runner.Check(ctx)
	if err != nil {
		s.logger.Error("consistency check failed", "error", err)
		return
	}
	for _, p := range snap.Problems {
		s.logger.Warn("consistency problem", "problem", p)
	}
}
