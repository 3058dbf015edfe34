package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNew(t *testing.T) {
	m := New()
	if m.Registry() == nil {
		t.Fatal("Registry() returned nil")
	}

	m.RecordTransition("campaign", "pause", "ok")
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "hyperdrive_transitions_total" {
			found = true
		}
	}
	if !found {
		t.Error("hyperdrive_transitions_total not registered")
	}
}

func TestRecordTransition(t *testing.T) {
	m := New()

	m.RecordTransition("enrollment", "approve", "ok")
	m.RecordTransition("enrollment", "approve", "ok")
	m.RecordTransition("enrollment", "approve", "invalid_transition")

	if v := counterValue(t, m.TransitionsTotal.WithLabelValues("enrollment", "approve", "ok")); v != 2 {
		t.Errorf("ok transitions = %v, want 2", v)
	}
	if v := counterValue(t, m.TransitionsTotal.WithLabelValues("enrollment", "approve", "invalid_transition")); v != 1 {
		t.Errorf("failed transitions = %v, want 1", v)
	}
}

func TestRecordBulk(t *testing.T) {
	m := New()

	m.RecordBulk("approve", 3, 1)
	m.RecordBulk("approve", 2, 0)

	if v := counterValue(t, m.BulkItemsTotal.WithLabelValues("approve", "updated")); v != 5 {
		t.Errorf("updated = %v, want 5", v)
	}
	if v := counterValue(t, m.BulkItemsTotal.WithLabelValues("approve", "failed")); v != 1 {
		t.Errorf("failed = %v, want 1", v)
	}
}

func TestRecordExpired(t *testing.T) {
	m := New()

	m.RecordExpired("enrollment", 4)
	m.RecordExpired("enrollment", 0)

	if v := counterValue(t, m.ExpiredTotal.WithLabelValues("enrollment")); v != 4 {
		t.Errorf("expired = %v, want 4", v)
	}
}

func TestSetWalletBalance(t *testing.T) {
	m := New()

	m.SetWalletBalance("org-1", 3770, 1230)
	m.SetWalletBalance("org-1", 3770, 0)

	if v := gaugeValue(t, m.WalletAvailable.WithLabelValues("org-1")); v != 3770 {
		t.Errorf("available = %v, want 3770", v)
	}
	if v := gaugeValue(t, m.WalletPending.WithLabelValues("org-1")); v != 0 {
		t.Errorf("pending = %v, want 0", v)
	}
}

func TestSetStatusCounts(t *testing.T) {
	m := New()

	m.SetStatusCounts(
		map[string]int{"active": 2, "draft": 1},
		map[string]int{"approved": 7},
	)

	if v := gaugeValue(t, m.CampaignsByStatus.WithLabelValues("active")); v != 2 {
		t.Errorf("active campaigns = %v, want 2", v)
	}
	if v := gaugeValue(t, m.EnrollmentsByStatus.WithLabelValues("approved")); v != 7 {
		t.Errorf("approved enrollments = %v, want 7", v)
	}
}

func TestIncRateLimitExceeded(t *testing.T) {
	m := New()
	m.IncRateLimitExceeded()
	if v := counterValue(t, m.RateLimitExceededTotal); v != 1 {
		t.Errorf("rate limited = %v, want 1", v)
	}
}
