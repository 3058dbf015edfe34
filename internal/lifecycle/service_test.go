package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/pricing"
	"github.com/foxzi/hyperdrive/internal/storage"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

var (
	owner    = access.Actor{ID: "owner-1", OrganizationID: "org-1", Role: access.RoleOwner}
	reviewer = access.Actor{ID: "rev-1", OrganizationID: "org-1", Role: access.RoleReviewer}
	viewer   = access.Actor{ID: "viewer-1", OrganizationID: "org-1", Role: access.RoleViewer}
	outsider = access.Actor{ID: "owner-2", OrganizationID: "org-2", Role: access.RoleOwner}
	platform = access.Actor{ID: "ops", Role: access.RolePlatformAdmin}
	shopper  = access.Actor{ID: "shopper-1", Role: access.RoleShopper}
)

type harness struct {
	svc   *Service
	store *storage.Store
	now   time.Time
	ctx   context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store: store,
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		ctx:   context.Background(),
	}
	seq := 0
	h.svc = New(store, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return h.now }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return h
}

func (h *harness) draft(maxEnrollments *int) campaign.Draft {
	return campaign.Draft{
		ProductID:      "sku-1",
		Title:          "Wireless Headphones",
		StartDate:      h.now.Add(-time.Hour),
		EndDate:        h.now.AddDate(0, 0, 30),
		MaxEnrollments: maxEnrollments,
		Pricing: pricing.Pricing{
			BillRate:    decimal.NewFromInt(10),
			GSTRate:     decimal.NewFromInt(18),
			PlatformFee: decimal.NewFromInt(50),
		},
	}
}

// activeCampaign creates a campaign and walks it to active
func (h *harness) activeCampaign(t *testing.T, maxEnrollments *int) *campaign.Campaign {
	t.Helper()
	return h.activate(t, h.draft(maxEnrollments))
}

func (h *harness) activate(t *testing.T, d campaign.Draft) *campaign.Campaign {
	t.Helper()
	c, err := h.svc.CreateCampaign(h.ctx, owner, d)
	require.NoError(t, err)
	_, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionSubmitForApproval, nil)
	require.NoError(t, err)
	_, err = h.svc.TransitionCampaign(h.ctx, platform, c.ID, campaign.ActionApprove, nil)
	require.NoError(t, err)
	c, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionActivate, nil)
	require.NoError(t, err)
	require.Equal(t, campaign.StatusActive, c.Status)
	return c
}

func (h *harness) enroll(t *testing.T, campaignID, orderID string) *enrollment.Enrollment {
	t.Helper()
	e, err := h.svc.CreateEnrollment(h.ctx, shopper, campaignID, EnrollmentRequest{
		OrderID:    orderID,
		OrderValue: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	return e
}

func (h *harness) fund(t *testing.T, amount int64) {
	t.Helper()
	_, err := h.svc.Deposit(h.ctx, owner, decimal.NewFromInt(amount), "bank transfer")
	require.NoError(t, err)
}

func (h *harness) assertConsistent(t *testing.T) {
	t.Helper()
	snap, err := h.svc.Check(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Problems)
}

func TestEnrollmentApprovalFlow(t *testing.T) {
	h := newHarness(t)
	limit := 100
	c := h.activeCampaign(t, &limit)
	h.fund(t, 5000)

	e := h.enroll(t, c.ID, "order-1")
	assert.True(t, e.TotalCost.Equal(decimal.NewFromInt(1230)))
	assert.Equal(t, "shopper-1", e.ShopperID)

	e, err := h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingReview, e.Status)

	w, err := h.svc.GetWallet(h.ctx, owner)
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(3770)))
	assert.True(t, w.PendingBalance.Equal(decimal.NewFromInt(1230)))

	holds, _, err := h.svc.ListHolds(h.ctx, owner, storage.Page{})
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, e.ID, holds[0].EnrollmentID)

	got, err := h.svc.GetCampaign(h.ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentEnrollments)
	assert.Equal(t, 1, got.PendingCount)
	h.assertConsistent(t)

	_, err = h.svc.TransitionEnrollment(h.ctx, reviewer, e.ID, enrollment.ActionApprove, "", nil)
	require.NoError(t, err)

	w, _ = h.svc.GetWallet(h.ctx, owner)
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(3770)))

	got, _ = h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 0, got.PendingCount)
	assert.Equal(t, 1, got.ApprovedCount)
	assert.True(t, got.TotalPayout.Equal(decimal.NewFromInt(1000)))

	entries, meta, err := h.svc.Ledger(h.ctx, owner, storage.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, wallet.EntryDebit, entries[0].Type)
	h.assertConsistent(t)
}

func TestSubmitWithoutFundsRollsBack(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.fund(t, 100)
	e := h.enroll(t, c.ID, "order-1")

	_, err := h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	stored, err := h.svc.GetEnrollment(h.ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingSubmission, stored.Status)
	assert.Len(t, stored.History, 1)

	got, _ := h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 0, got.PendingCount)
	h.assertConsistent(t)
}

func TestRejectAndResubmitCycle(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.fund(t, 2000)
	e := h.enroll(t, c.ID, "order-1")

	_, err := h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)
	_, err = h.svc.TransitionEnrollment(h.ctx, reviewer, e.ID, enrollment.ActionRequestChanges, "order id unreadable", nil)
	require.NoError(t, err)

	w, _ := h.svc.GetWallet(h.ctx, owner)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(2000)))
	h.assertConsistent(t)

	_, err = h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)
	e, err = h.svc.TransitionEnrollment(h.ctx, reviewer, e.ID, enrollment.ActionReject, "duplicate order", nil)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusRejected, e.Status)
	assert.Len(t, e.History, 5)

	w, _ = h.svc.GetWallet(h.ctx, owner)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(2000)))
	assert.True(t, w.PendingBalance.IsZero())

	got, _ := h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 1, got.RejectedCount)
	assert.Equal(t, 0, got.PendingCount)
	h.assertConsistent(t)
}

func TestBulkApprovePartialFailure(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.fund(t, 10000)

	a := h.enroll(t, c.ID, "order-a")
	b := h.enroll(t, c.ID, "order-b")
	for _, id := range []string{a.ID, b.ID} {
		_, err := h.svc.TransitionEnrollment(h.ctx, shopper, id, enrollment.ActionSubmit, "", nil)
		require.NoError(t, err)
	}
	_, err := h.svc.TransitionEnrollment(h.ctx, reviewer, b.ID, enrollment.ActionApprove, "", nil)
	require.NoError(t, err)

	res, err := h.svc.BulkReview(h.ctx, reviewer, enrollment.ActionApprove, []string{a.ID, b.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "invalid_transition", res.Results[1].Code)

	got, _ := h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 2, got.ApprovedCount)
	h.assertConsistent(t)

	_, err = h.svc.BulkReview(h.ctx, viewer, enrollment.ActionApprove, []string{a.ID}, "")
	assert.True(t, errors.Is(err, apperr.ErrPermission))
}

func TestFullCampaignRejectsEnrollment(t *testing.T) {
	h := newHarness(t)
	limit := 1
	c := h.activeCampaign(t, &limit)
	h.enroll(t, c.ID, "order-1")

	got, _ := h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 100.0, got.EnrollmentPercentage())

	_, err := h.svc.CreateEnrollment(h.ctx, shopper, c.ID, EnrollmentRequest{OrderID: "order-2", OrderValue: decimal.NewFromInt(100)})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	got, _ = h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.Equal(t, 1, got.CurrentEnrollments)
}

func TestDuplicateOrderRejected(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.enroll(t, c.ID, "order-1")

	_, err := h.svc.CreateEnrollment(h.ctx, shopper, c.ID, EnrollmentRequest{OrderID: "order-1", OrderValue: decimal.NewFromInt(100)})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestDuplicateOrderIgnoresPadding(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.enroll(t, c.ID, "order-1")

	_, err := h.svc.CreateEnrollment(h.ctx, shopper, c.ID, EnrollmentRequest{OrderID: " order-1 ", OrderValue: decimal.NewFromInt(100)})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	got, err := h.svc.GetCampaign(h.ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentEnrollments)
}

func TestZeroCostEnrollmentNeedsNoHold(t *testing.T) {
	h := newHarness(t)
	d := h.draft(nil)
	d.Pricing.PlatformFee = decimal.Zero
	c := h.activate(t, d)

	e, err := h.svc.CreateEnrollment(h.ctx, shopper, c.ID, EnrollmentRequest{OrderID: "order-1", OrderValue: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, e.TotalCost.IsZero())

	e, err = h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusAwaitingReview, e.Status)

	holds, _, err := h.svc.ListHolds(h.ctx, owner, storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, holds)

	e, err = h.svc.TransitionEnrollment(h.ctx, reviewer, e.ID, enrollment.ActionApprove, "", nil)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusApproved, e.Status)

	w, err := h.svc.GetWallet(h.ctx, owner)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.PendingBalance.IsZero())

	_, meta, err := h.svc.Ledger(h.ctx, owner, storage.Page{})
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Total)

	got, err := h.svc.GetCampaign(h.ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ApprovedCount)
	h.assertConsistent(t)
}

func TestCampaignPauseTwice(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)

	c, err := h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionPause, nil)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPaused, c.Status)

	_, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionPause, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.EqualError(t, err, "invalid transition from paused to paused")
}

func TestCampaignAccessRules(t *testing.T) {
	h := newHarness(t)
	c, err := h.svc.CreateCampaign(h.ctx, owner, h.draft(nil))
	require.NoError(t, err)

	_, err = h.svc.GetCampaign(h.ctx, outsider, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = h.svc.CreateCampaign(h.ctx, viewer, h.draft(nil))
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionApprove, nil)
	assert.True(t, errors.Is(err, apperr.ErrPermission), "owners cannot approve their own campaign")

	_, err = h.svc.GetCampaign(h.ctx, shopper, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "shoppers only see active campaigns")

	list, meta, err := h.svc.ListCampaigns(h.ctx, outsider, CampaignQuery{}, storage.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, meta.Total)
}

func TestVersionPrecondition(t *testing.T) {
	h := newHarness(t)
	c, err := h.svc.CreateCampaign(h.ctx, owner, h.draft(nil))
	require.NoError(t, err)

	stale := c.Version
	edit := h.draft(nil)
	edit.Title = "Noise Cancelling Headphones"
	c, err = h.svc.UpdateCampaign(h.ctx, owner, c.ID, edit, &stale)
	require.NoError(t, err)
	assert.Equal(t, stale+1, c.Version)

	_, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionSubmitForApproval, &stale)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	current := c.Version
	_, err = h.svc.TransitionCampaign(h.ctx, owner, c.ID, campaign.ActionSubmitForApproval, &current)
	require.NoError(t, err)
}

func TestDeleteOnlyDraft(t *testing.T) {
	h := newHarness(t)
	c, err := h.svc.CreateCampaign(h.ctx, owner, h.draft(nil))
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteCampaign(h.ctx, owner, c.ID, nil))

	_, err = h.svc.GetCampaign(h.ctx, owner, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	active := h.activeCampaign(t, nil)
	err = h.svc.DeleteCampaign(h.ctx, owner, active.ID, nil)
	assert.EqualError(t, err, "invalid transition from active to deleted")
}

func TestExpireOverdue(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.fund(t, 5000)

	late := h.enroll(t, c.ID, "order-late")
	submitted := h.enroll(t, c.ID, "order-ok")
	_, err := h.svc.TransitionEnrollment(h.ctx, shopper, submitted.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)

	stuck, err := h.svc.CreateCampaign(h.ctx, owner, h.draft(nil))
	require.NoError(t, err)
	_, err = h.svc.TransitionCampaign(h.ctx, owner, stuck.ID, campaign.ActionSubmitForApproval, nil)
	require.NoError(t, err)

	report, err := h.svc.ExpireOverdue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{}, *report)

	h.now = h.now.AddDate(0, 0, 8)
	report, err = h.svc.ExpireOverdue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enrollments)
	assert.Equal(t, 0, report.Campaigns)

	e, _ := h.svc.GetEnrollment(h.ctx, owner, late.ID)
	assert.Equal(t, enrollment.StatusExpired, e.Status)
	e, _ = h.svc.GetEnrollment(h.ctx, owner, submitted.ID)
	assert.Equal(t, enrollment.StatusAwaitingReview, e.Status)

	h.now = h.now.AddDate(0, 0, 30)
	report, err = h.svc.ExpireOverdue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Campaigns)

	got, _ := h.svc.GetCampaign(h.ctx, owner, stuck.ID)
	assert.Equal(t, campaign.StatusExpired, got.Status)
	h.assertConsistent(t)
}

func TestWithdrawalFailureReturnsFunds(t *testing.T) {
	h := newHarness(t)
	h.fund(t, 1000)

	wd, err := h.svc.RequestWithdrawal(h.ctx, owner, decimal.NewFromInt(600))
	require.NoError(t, err)
	w, _ := h.svc.GetWallet(h.ctx, owner)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(400)))

	_, err = h.svc.RequestWithdrawal(h.ctx, owner, decimal.NewFromInt(600))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = h.svc.TransitionWithdrawal(h.ctx, outsider, wd.ID, wallet.WithdrawalProcess, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = h.svc.TransitionWithdrawal(h.ctx, owner, wd.ID, wallet.WithdrawalProcess, "")
	require.NoError(t, err)
	wd, err = h.svc.TransitionWithdrawal(h.ctx, owner, wd.ID, wallet.WithdrawalFail, "account closed")
	require.NoError(t, err)
	assert.Equal(t, wallet.WithdrawalFailed, wd.Status)

	w, _ = h.svc.GetWallet(h.ctx, owner)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(1000)))

	list, _, err := h.svc.ListWithdrawals(h.ctx, owner, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	h.fund(t, 5000)
	e := h.enroll(t, c.ID, "order-1")
	_, err := h.svc.TransitionEnrollment(h.ctx, shopper, e.ID, enrollment.ActionSubmit, "", nil)
	require.NoError(t, err)
	_, err = h.svc.TransitionEnrollment(h.ctx, reviewer, e.ID, enrollment.ActionApprove, "", nil)
	require.NoError(t, err)

	dash, err := h.svc.Dashboard(h.ctx, owner, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Campaigns.TotalCampaigns)
	assert.Equal(t, 100.0, dash.Campaigns.ApprovalRate)
	assert.Equal(t, 1, dash.Enrollments.ByStatus[enrollment.StatusApproved])
	assert.True(t, dash.Wallet.AvailableBalance.Equal(decimal.NewFromInt(3770)))
	assert.True(t, dash.Wallet.AverageDailySpend.Equal(decimal.NewFromInt(41)))
	assert.Equal(t, 91, dash.Wallet.RunwayDays)
	assert.Empty(t, dash.EndingSoon)

	dash, err = h.svc.Dashboard(h.ctx, owner, 31)
	require.NoError(t, err)
	assert.Len(t, dash.EndingSoon, 1)
}

func TestPreviewPricing(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)

	preview, err := h.svc.PreviewPricing(h.ctx, owner, c.ID, decimal.NewFromInt(10000))
	require.NoError(t, err)
	assert.True(t, preview.Cost.TotalCost.Equal(decimal.NewFromInt(1230)))

	_, err = h.svc.PreviewPricing(h.ctx, owner, c.ID, decimal.NewFromInt(-1))
	assert.True(t, errors.Is(err, apperr.ErrInvalidPricingInput))
}

func TestStatusCounts(t *testing.T) {
	h := newHarness(t)
	c := h.activeCampaign(t, nil)
	_, err := h.svc.CreateCampaign(h.ctx, owner, h.draft(nil))
	require.NoError(t, err)
	h.enroll(t, c.ID, "order-1")

	campaigns, enrollments, err := h.svc.StatusCounts(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, campaigns["active"])
	assert.Equal(t, 1, campaigns["draft"])
	assert.Equal(t, 0, campaigns["completed"])
	assert.Equal(t, 1, enrollments["awaiting_submission"])
	assert.Contains(t, enrollments, "expired")
}
