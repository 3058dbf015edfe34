package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestApprovalRate(t *testing.T) {
	assert.Equal(t, 0.0, ApprovalRate(0, 0))
	assert.Equal(t, 0.0, ApprovalRate(5, 0))
	assert.Equal(t, 50.0, ApprovalRate(1, 2))
	assert.Equal(t, 33.33, ApprovalRate(1, 3))
	assert.Equal(t, 100.0, ApprovalRate(7, 7))
}

func TestEmptyInputsAreZeroed(t *testing.T) {
	s := CampaignSummary(nil)
	assert.Equal(t, 0, s.TotalCampaigns)
	assert.Equal(t, 0.0, s.ApprovalRate)
	assert.True(t, s.TotalPayout.IsZero())
	assert.Len(t, s.ByStatus, len(campaign.Machine.Statuses))

	d := EnrollmentDistribution(nil)
	assert.Equal(t, 0, d.Total)
	require.Len(t, d.ByStatus, len(enrollment.Statuses))
	for _, n := range d.ByStatus {
		assert.Equal(t, 0, n)
	}

	assert.True(t, AverageDailySpend(nil, now, 30).IsZero())
	assert.Empty(t, EndingSoon(nil, now, time.Hour))

	dash := Dashboard(DashboardInput{Now: now, EndingSoonDays: 7, SpendWindowDays: 30})
	assert.Equal(t, 0, dash.Wallet.RunwayDays)
	assert.NotNil(t, dash.EndingSoon)
}

func TestCampaignSummary(t *testing.T) {
	campaigns := []*campaign.Campaign{
		{Status: campaign.StatusActive, CurrentEnrollments: 10, ApprovedCount: 4, PendingCount: 2, RejectedCount: 1, TotalPayout: decimal.NewFromInt(400)},
		{Status: campaign.StatusActive, CurrentEnrollments: 10, ApprovedCount: 1, TotalPayout: decimal.NewFromInt(100)},
		{Status: campaign.StatusDraft, TotalPayout: decimal.Zero},
	}
	s := CampaignSummary(campaigns)
	assert.Equal(t, 3, s.TotalCampaigns)
	assert.Equal(t, 2, s.ByStatus[campaign.StatusActive])
	assert.Equal(t, 1, s.ByStatus[campaign.StatusDraft])
	assert.Equal(t, 0, s.ByStatus[campaign.StatusArchived])
	assert.Equal(t, 20, s.TotalEnrollments)
	assert.Equal(t, 25.0, s.ApprovalRate)
	assert.True(t, s.TotalPayout.Equal(decimal.NewFromInt(500)))
}

func TestRunway(t *testing.T) {
	assert.Equal(t, 0, Runway(decimal.NewFromInt(1000), decimal.Zero))
	assert.Equal(t, 3, Runway(decimal.NewFromInt(1000), decimal.NewFromInt(300)))
	assert.Equal(t, 0, Runway(decimal.Zero, decimal.NewFromInt(10)))
}

func TestAverageDailySpend(t *testing.T) {
	entries := []wallet.LedgerEntry{
		{Type: wallet.EntryDebit, Amount: decimal.NewFromInt(300), CreatedAt: now.Add(-24 * time.Hour)},
		{Type: wallet.EntryDebit, Amount: decimal.NewFromInt(600), CreatedAt: now.Add(-48 * time.Hour)},
		{Type: wallet.EntryDeposit, Amount: decimal.NewFromInt(9000), CreatedAt: now.Add(-time.Hour)},
		{Type: wallet.EntryDebit, Amount: decimal.NewFromInt(5000), CreatedAt: now.AddDate(0, 0, -40)},
	}
	assert.True(t, AverageDailySpend(entries, now, 30).Equal(decimal.NewFromInt(30)))
}

func TestEndingSoon(t *testing.T) {
	later := &campaign.Campaign{ID: "later", Status: campaign.StatusActive, EndDate: now.Add(5 * 24 * time.Hour)}
	sooner := &campaign.Campaign{ID: "sooner", Status: campaign.StatusActive, EndDate: now.Add(24 * time.Hour)}
	paused := &campaign.Campaign{ID: "paused", Status: campaign.StatusPaused, EndDate: now.Add(24 * time.Hour)}
	far := &campaign.Campaign{ID: "far", Status: campaign.StatusActive, EndDate: now.Add(30 * 24 * time.Hour)}
	past := &campaign.Campaign{ID: "past", Status: campaign.StatusActive, EndDate: now.Add(-time.Hour)}

	got := EndingSoon([]*campaign.Campaign{later, paused, far, sooner, past}, now, 7*24*time.Hour)
	require.Len(t, got, 2)
	assert.Equal(t, "sooner", got[0].ID)
	assert.Equal(t, "later", got[1].ID)
}

func TestDashboard(t *testing.T) {
	w := wallet.New("org-1", decimal.Zero, now)
	_, err := w.Deposit(decimal.NewFromInt(3000), "", now)
	require.NoError(t, err)

	limit := 100
	dash := Dashboard(DashboardInput{
		Campaigns: []*campaign.Campaign{
			{ID: "c1", Title: "Headphones", Status: campaign.StatusActive, EndDate: now.Add(48 * time.Hour),
				MaxEnrollments: &limit, CurrentEnrollments: 100, TotalPayout: decimal.Zero},
		},
		Enrollments: []*enrollment.Enrollment{{Status: enrollment.StatusApproved}},
		Wallet:      w,
		Ledger: []wallet.LedgerEntry{
			{Type: wallet.EntryDebit, Amount: decimal.NewFromInt(3000), CreatedAt: now.Add(-time.Hour)},
		},
		Now:             now,
		EndingSoonDays:  7,
		SpendWindowDays: 30,
	})

	assert.Equal(t, 1, dash.Enrollments.ByStatus[enrollment.StatusApproved])
	assert.True(t, dash.Wallet.AverageDailySpend.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 30, dash.Wallet.RunwayDays)
	require.Len(t, dash.EndingSoon, 1)
	assert.Equal(t, 100.0, dash.EndingSoon[0].EnrollmentPercentage)
}
