package enrollment

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/pricing"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var testPricing = pricing.Pricing{
	BillRate:    decimal.NewFromInt(10),
	GSTRate:     decimal.NewFromInt(18),
	PlatformFee: decimal.NewFromInt(50),
}

func newEnrollment(t *testing.T, status Status) *Enrollment {
	t.Helper()
	e, err := New(NewParams{
		ID:                 "e1",
		CampaignID:         "c1",
		OrganizationID:     "org-1",
		ShopperID:          "shopper-1",
		OrderID:            "order-1",
		OrderValue:         decimal.NewFromInt(10000),
		SubmissionDeadline: now.Add(72 * time.Hour),
		Actor:              "shopper-1",
	}, testPricing, now)
	require.NoError(t, err)
	e.Status = status
	return e
}

func TestNewEnrollmentIsPriced(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingSubmission)
	assert.Equal(t, StatusAwaitingSubmission, e.Status)
	assert.True(t, e.BillAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, e.GSTAmount.Equal(decimal.NewFromInt(180)))
	assert.True(t, e.TotalCost.Equal(decimal.NewFromInt(1230)))
	require.Len(t, e.History, 1)
	assert.Equal(t, "enrolled", e.History[0].Action)
}

func TestNewEnrollmentValidation(t *testing.T) {
	params := NewParams{ShopperID: "s", OrderID: "o", SubmissionDeadline: now.Add(time.Hour)}

	p := params
	p.ShopperID = ""
	_, err := New(p, testPricing, now)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	p = params
	p.SubmissionDeadline = now
	_, err = New(p, testPricing, now)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	p = params
	p.OrderValue = decimal.NewFromInt(-1)
	_, err = New(p, testPricing, now)
	assert.True(t, errors.Is(err, apperr.ErrInvalidPricingInput))
}

func TestReviewOnlyFromAwaitingReview(t *testing.T) {
	for _, s := range Statuses {
		if s == StatusAwaitingReview {
			continue
		}
		for _, a := range []Action{ActionApprove, ActionReject, ActionRequestChanges} {
			e := newEnrollment(t, s)
			historyLen := len(e.History)

			err := e.Transition(a, "reviewer", "reason", now)
			assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "%s on %s", a, s)
			assert.Equal(t, s, e.Status)
			assert.Len(t, e.History, historyLen)
		}
	}
}

func TestSubmitReviewCycle(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingSubmission)

	require.NoError(t, e.Transition(ActionSubmit, "shopper-1", "", now))
	assert.Equal(t, StatusAwaitingReview, e.Status)
	require.NotNil(t, e.SubmittedAt)

	require.NoError(t, e.Transition(ActionRequestChanges, "rev", "blurry screenshot", now))
	assert.Equal(t, StatusChangesRequested, e.Status)
	assert.Equal(t, "blurry screenshot", e.ReviewNote)

	require.NoError(t, e.Transition(ActionSubmit, "shopper-1", "", now))
	require.NoError(t, e.Transition(ActionApprove, "rev", "", now))
	assert.Equal(t, StatusApproved, e.Status)

	actions := make([]string, 0, len(e.History))
	for _, h := range e.History {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{"enrolled", "submit", "request_changes", "submit", "approve"}, actions)
	assert.Equal(t, int64(5), e.Version)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingSubmission)
	first := e.History[0]

	require.NoError(t, e.Transition(ActionSubmit, "s", "", now))
	require.NoError(t, e.Transition(ActionReject, "r", "fake order", now.Add(time.Hour)))

	require.Len(t, e.History, 3)
	assert.Equal(t, first, e.History[0])
	assert.Equal(t, "Status changed from awaiting_review to rejected: fake order", e.History[2].Description)
}

func TestRejectRequiresReason(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingReview)
	err := e.Transition(ActionReject, "r", "  ", now)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, StatusAwaitingReview, e.Status)
}

func TestExpireAndWithdraw(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingSubmission)
	require.NoError(t, e.Transition(ActionExpire, "system", "", now))
	assert.Equal(t, StatusExpired, e.Status)
	assert.True(t, e.Status.Terminal())

	e = newEnrollment(t, StatusAwaitingReview)
	assert.Error(t, e.Transition(ActionExpire, "system", "", now))
	require.NoError(t, e.Transition(ActionWithdraw, "s", "", now))
	assert.Equal(t, StatusWithdrawn, e.Status)
}

func TestOverdue(t *testing.T) {
	e := newEnrollment(t, StatusAwaitingSubmission)
	assert.False(t, e.Overdue(now))
	assert.True(t, e.Overdue(e.SubmissionDeadline))

	e.Status = StatusAwaitingReview
	assert.False(t, e.Overdue(e.SubmissionDeadline.Add(time.Hour)))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("request-changes")
	require.NoError(t, err)
	assert.Equal(t, ActionRequestChanges, a)

	_, err = ParseAction("nope")
	assert.Error(t, err)
}

func TestBulkPartialFailure(t *testing.T) {
	store := map[string]*Enrollment{
		"A": newEnrollment(t, StatusAwaitingReview),
		"B": newEnrollment(t, StatusApproved),
	}

	res := Bulk(ActionApprove, []string{"A", "B", "A", "missing"}, func(id string) (*Enrollment, error) {
		e, ok := store[id]
		if !ok {
			return nil, apperr.NotFound("enrollment", id)
		}
		if err := e.Transition(ActionApprove, "rev", "", now); err != nil {
			return nil, err
		}
		return e, nil
	})

	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 2, res.FailedCount)
	require.Len(t, res.Results, 3)

	assert.Equal(t, ItemResult{ID: "A", Success: true, Status: StatusApproved}, res.Results[0])
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "invalid_transition", res.Results[1].Code)
	assert.Equal(t, "not_found", res.Results[2].Code)
}

func TestValidateBulk(t *testing.T) {
	assert.NoError(t, ValidateBulk(ActionReject, []string{"a"}))
	assert.Error(t, ValidateBulk(ActionSubmit, []string{"a"}))
	assert.Error(t, ValidateBulk(ActionApprove, nil))
	assert.Error(t, ValidateBulk(ActionApprove, make([]string, MaxBulkItems+1)))
}
