package metrics

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// StatusProvider counts campaigns and enrollments by status
type StatusProvider interface {
	StatusCounts(ctx context.Context) (campaigns, enrollments map[string]int, err error)
}

// Collector periodically refreshes the gauges that are sampled rather than
// counted
type Collector struct {
	metrics     *Metrics
	provider    StatusProvider
	storagePath string
	interval    time.Duration
	startTime   time.Time
	logger      *slog.Logger

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewCollector creates a new metrics collector
func NewCollector(m *Metrics, provider StatusProvider, storagePath string, interval time.Duration, logger *slog.Logger) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		metrics:     m,
		provider:    provider,
		storagePath: storagePath,
		interval:    interval,
		startTime:   time.Now(),
		logger:      logger.With("component", "metrics"),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the collector background loop
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect samples system state and status counts once
func (c *Collector) Collect(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.storagePath != "" {
		if info, err := os.Stat(c.storagePath); err == nil {
			c.metrics.StorageUsedBytes.Set(float64(info.Size()))
		}
	}

	if c.provider == nil {
		return
	}
	campaigns, enrollments, err := c.provider.StatusCounts(ctx)
	if err != nil {
		c.logger.Warn("failed to collect status counts", "error", err)
		return
	}
	c.metrics.SetStatusCounts(campaigns, enrollments)
}
