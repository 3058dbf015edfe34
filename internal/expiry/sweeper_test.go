package expiry

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foxzi/hyperdrive/internal/lifecycle"
)

type fakeRunner struct {
	expired atomic.Int32
	checked atomic.Int32
}

func (f *fakeRunner) ExpireOverdue(ctx context.Context) (*lifecycle.ExpiryReport, error) {
	f.expired.Add(1)
	return &lifecycle.ExpiryReport{Enrollments: 1}, nil
}

func (f *fakeRunner) Check(ctx context.Context) (*lifecycle.Snapshot, error) {
	f.checked.Add(1)
	return &lifecycle.Snapshot{Problems: []string{"campaign c1 counters drifted"}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRunsImmediatelyAndStops(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSweeper(runner, Config{Interval: 10 * time.Millisecond, CheckInterval: 10 * time.Millisecond}, testLogger())

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for runner.expired.Load() < 2 || runner.checked.Load() < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not run: expired=%d checked=%d", runner.expired.Load(), runner.checked.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	after := runner.expired.Load()
	time.Sleep(30 * time.Millisecond)
	if runner.expired.Load() != after {
		t.Error("sweeper kept running after Stop")
	}
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSweeper(runner, Config{Interval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not exit after context cancel")
	}
	if runner.checked.Load() != 0 {
		t.Error("check ran although disabled")
	}
}

func TestRunOnce(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSweeper(runner, Config{}, testLogger())

	report, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.Enrollments != 1 {
		t.Errorf("Enrollments = %d, want 1", report.Enrollments)
	}
	if s.cfg.Interval != time.Minute {
		t.Errorf("default interval = %v", s.cfg.Interval)
	}
}
