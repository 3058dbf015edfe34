package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for Hyperdrive
type Metrics struct {
	// Lifecycle counters
	TransitionsTotal *prometheus.CounterVec
	BulkItemsTotal   *prometheus.CounterVec
	ExpiredTotal     *prometheus.CounterVec

	// State gauges
	CampaignsByStatus   *prometheus.GaugeVec
	EnrollmentsByStatus *prometheus.GaugeVec
	WalletAvailable     *prometheus.GaugeVec
	WalletPending       *prometheus.GaugeVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Rate limiting
	RateLimitExceededTotal prometheus.Counter

	// System metrics
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	StorageUsedBytes prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperdrive_transitions_total",
				Help: "Total number of campaign and enrollment transitions",
			},
			[]string{"entity", "action", "result"},
		),
		BulkItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperdrive_bulk_items_total",
				Help: "Total number of enrollments processed by bulk review",
			},
			[]string{"action", "outcome"},
		),
		ExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperdrive_expired_total",
				Help: "Total number of entities expired by the sweeper",
			},
			[]string{"entity"},
		),

		CampaignsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hyperdrive_campaigns",
				Help: "Number of campaigns per status",
			},
			[]string{"status"},
		),
		EnrollmentsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hyperdrive_enrollments",
				Help: "Number of enrollments per status",
			},
			[]string{"status"},
		),
		WalletAvailable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hyperdrive_wallet_available_balance",
				Help: "Available wallet balance per organization",
			},
			[]string{"holder"},
		),
		WalletPending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hyperdrive_wallet_pending_balance",
				Help: "Wallet balance held for enrollments under review",
			},
			[]string{"holder"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperdrive_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hyperdrive_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hyperdrive_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		RateLimitExceededTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hyperdrive_ratelimit_exceeded_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hyperdrive_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hyperdrive_goroutines",
				Help: "Number of active goroutines",
			},
		),
		StorageUsedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hyperdrive_storage_used_bytes",
				Help: "BoltDB file size in bytes",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.TransitionsTotal,
		m.BulkItemsTotal,
		m.ExpiredTotal,
		m.CampaignsByStatus,
		m.EnrollmentsByStatus,
		m.WalletAvailable,
		m.WalletPending,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.RateLimitExceededTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.StorageUsedBytes,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTransition counts a campaign or enrollment transition attempt
func (m *Metrics) RecordTransition(entity, action, result string) {
	m.TransitionsTotal.WithLabelValues(entity, action, result).Inc()
}

// RecordBulk counts the outcome of a bulk review
func (m *Metrics) RecordBulk(action string, updated, failed int) {
	m.BulkItemsTotal.WithLabelValues(action, "updated").Add(float64(updated))
	m.BulkItemsTotal.WithLabelValues(action, "failed").Add(float64(failed))
}

// RecordExpired counts entities moved to expired
func (m *Metrics) RecordExpired(entity string, count int) {
	if count > 0 {
		m.ExpiredTotal.WithLabelValues(entity).Add(float64(count))
	}
}

// SetWalletBalance updates the wallet gauges of one holder
func (m *Metrics) SetWalletBalance(holderID string, available, pending float64) {
	m.WalletAvailable.WithLabelValues(holderID).Set(available)
	m.WalletPending.WithLabelValues(holderID).Set(pending)
}

// IncRateLimitExceeded counts a request rejected with 429
func (m *Metrics) IncRateLimitExceeded() {
	m.RateLimitExceededTotal.Inc()
}

// SetStatusCounts replaces the per-status gauges
func (m *Metrics) SetStatusCounts(campaigns, enrollments map[string]int) {
	for status, n := range campaigns {
		m.CampaignsByStatus.WithLabelValues(status).Set(float64(n))
	}
	for status, n := range enrollments {
		m.EnrollmentsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Metrics) observeRequest(method, path string, status int, seconds float64) {
	m.APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.APIRequestDurationSeconds.WithLabelValues(method, path).Observe(seconds)
	if status >= 400 {
		m.APIErrorsTotal.WithLabelValues(categorizeStatus(status)).Inc()
	}
}
