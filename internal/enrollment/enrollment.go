// Package enrollment holds shopper enrollments, their review lifecycle and
// the append-only history log.
package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/pricing"
)

// HistoryEntry records one change to an enrollment
type HistoryEntry struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performedBy"`
	PerformedAt time.Time `json:"performedAt"`
}

// Enrollment is a shopper's participation in a campaign
type Enrollment struct {
	ID                 string          `json:"id"`
	CampaignID         string          `json:"campaignId"`
	OrganizationID     string          `json:"organizationId"`
	ShopperID          string          `json:"shopperId"`
	OrderID            string          `json:"orderId"`
	OrderValue         decimal.Decimal `json:"orderValue"`
	BillAmount         decimal.Decimal `json:"billAmount"`
	GSTAmount          decimal.Decimal `json:"gstAmount"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	Status             Status          `json:"status"`
	SubmissionDeadline time.Time       `json:"submissionDeadline"`
	SubmittedAt        *time.Time      `json:"submittedAt,omitempty"`
	ReviewNote         string          `json:"reviewNote,omitempty"`
	History            []HistoryEntry  `json:"history"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewParams describes a shopper enrolling in a campaign
type NewParams struct {
	ID                 string
	CampaignID         string
	OrganizationID     string
	ShopperID          string
	OrderID            string
	OrderValue         decimal.Decimal
	SubmissionDeadline time.Time
	Actor              string
}

// New creates an enrollment awaiting submission, priced with p
func New(params NewParams, p pricing.Pricing, now time.Time) (*Enrollment, error) {
	if strings.TrimSpace(params.ShopperID) == "" {
		return nil, apperr.Validation("shopperId is required")
	}
	if strings.TrimSpace(params.OrderID) == "" {
		return nil, apperr.Validation("orderId is required")
	}
	if !params.SubmissionDeadline.After(now) {
		return nil, apperr.Validation("submissionDeadline must be in the future")
	}

	cost, err := p.Cost(params.OrderValue)
	if err != nil {
		return nil, err
	}

	e := &Enrollment{
		ID:                 params.ID,
		CampaignID:         params.CampaignID,
		OrganizationID:     params.OrganizationID,
		ShopperID:          strings.TrimSpace(params.ShopperID),
		OrderID:            strings.TrimSpace(params.OrderID),
		OrderValue:         params.OrderValue,
		BillAmount:         cost.BillAmount,
		GSTAmount:          cost.GSTAmount,
		TotalCost:          cost.TotalCost,
		Status:             StatusAwaitingSubmission,
		SubmissionDeadline: params.SubmissionDeadline,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	e.History = append(e.History, HistoryEntry{
		Action:      "enrolled",
		Description: fmt.Sprintf("Enrolled with order %s", e.OrderID),
		PerformedBy: params.Actor,
		PerformedAt: now,
	})
	return e, nil
}

// Transition applies action and appends a history entry. On failure the
// enrollment is left unchanged.
func (e *Enrollment) Transition(action Action, actor, note string, now time.Time) error {
	next, err := Next(e.Status, action)
	if err != nil {
		return err
	}

	note = strings.TrimSpace(note)
	if (action == ActionReject || action == ActionRequestChanges) && note == "" {
		return apperr.Validation("a reason is required to %s", strings.ReplaceAll(string(action), "_", " "))
	}

	from := e.Status
	e.Status = next
	if action == ActionSubmit {
		t := now
		e.SubmittedAt = &t
	}
	if action.IsReview() {
		e.ReviewNote = note
	}
	e.History = append(e.History, HistoryEntry{
		Action:      string(action),
		Description: describe(from, next, note),
		PerformedBy: actor,
		PerformedAt: now,
	})
	e.UpdatedAt = now
	e.Version++
	return nil
}

func describe(from, to Status, note string) string {
	desc := fmt.Sprintf("Status changed from %s to %s", from, to)
	if note != "" {
		desc += ": " + note
	}
	return desc
}

// Overdue reports whether the submission deadline has passed while the
// shopper still owes a submission
func (e *Enrollment) Overdue(now time.Time) bool {
	if e.Status != StatusAwaitingSubmission && e.Status != StatusChangesRequested {
		return false
	}
	return !now.Before(e.SubmissionDeadline)
}
