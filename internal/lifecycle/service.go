// Package lifecycle runs campaign, enrollment and wallet operations against
// the store. Each operation is one bbolt transaction: the entity, the campaign
// counters, the wallet and its holds change together or not at all.
package lifecycle

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/storage"
)

// Recorder receives operational counters. metrics.Metrics implements it.
type Recorder interface {
	RecordTransition(entity, action, result string)
	RecordBulk(action string, updated, failed int)
	RecordExpired(entity string, count int)
	SetWalletBalance(holderID string, available, pending float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string, string)    {}
func (nopRecorder) RecordBulk(string, int, int)                {}
func (nopRecorder) RecordExpired(string, int)                  {}
func (nopRecorder) SetWalletBalance(string, float64, float64) {}

// Config contains service settings
type Config struct {
	// SubmissionWindow is how long a shopper has to submit proof
	SubmissionWindow   time.Duration
	DefaultCreditLimit decimal.Decimal
	EndingSoonDays     int
	SpendWindowDays    int
	DefaultPageSize    int
	MaxPageSize        int
}

// Service implements every lifecycle operation
type Service struct {
	store    *storage.Store
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// New creates a new lifecycle service
func New(store *storage.Store, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.SubmissionWindow <= 0 {
		cfg.SubmissionWindow = 7 * 24 * time.Hour
	}
	if cfg.EndingSoonDays <= 0 {
		cfg.EndingSoonDays = 7
	}
	if cfg.SpendWindowDays <= 0 {
		cfg.SpendWindowDays = 30
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:    store,
		cfg:      cfg,
		logger:   logger.With("component", "lifecycle"),
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) page(p storage.Page) storage.Page {
	return p.Normalize(s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
}

// checkVersion enforces an If-Match precondition when the caller sent one
func checkVersion(entity, id string, ifMatch *int64, current int64) error {
	if ifMatch == nil || *ifMatch == current {
		return nil
	}
	return apperr.Conflict("%s %s is at version %d, not %d", entity, id, current, *ifMatch)
}

func result(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperr.KindOf(err))
}
