// Package campaign holds the campaign entity and its lifecycle rules.
package campaign

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/pricing"
)

// Campaign is a product cashback campaign run by an organization
type Campaign struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	ProductID      string    `json:"productId"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`

	// MaxEnrollments is nil for unlimited campaigns
	MaxEnrollments     *int            `json:"maxEnrollments"`
	CurrentEnrollments int             `json:"currentEnrollments"`
	ApprovedCount      int             `json:"approvedCount"`
	PendingCount       int             `json:"pendingCount"`
	RejectedCount      int             `json:"rejectedCount"`
	TotalPayout        decimal.Decimal `json:"totalPayout"`

	Pricing pricing.Pricing `json:"pricing"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Draft holds the editable fields of a campaign
type Draft struct {
	ProductID      string          `json:"productId"`
	Title          string          `json:"title"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	MaxEnrollments *int            `json:"maxEnrollments"`
	Pricing        pricing.Pricing `json:"pricing"`
}

// Validate checks a draft before it is stored
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(d.ProductID) == "" {
		return apperr.Validation("productId is required")
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return apperr.Validation("startDate and endDate are required")
	}
	if !d.EndDate.After(d.StartDate) {
		return apperr.Validation("endDate must be after startDate")
	}
	if d.MaxEnrollments != nil && *d.MaxEnrollments <= 0 {
		return apperr.Validation("maxEnrollments must be positive")
	}
	return d.Pricing.Validate()
}

// New creates a draft campaign owned by orgID
func New(id, orgID string, d Draft, now time.Time) (*Campaign, error) {
	if orgID == "" {
		return nil, apperr.Validation("organizationId is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	c := &Campaign{
		ID:             id,
		OrganizationID: orgID,
		Status:         StatusDraft,
		TotalPayout:    decimal.Zero,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.apply(d)
	return c, nil
}

func (c *Campaign) apply(d Draft) {
	c.ProductID = strings.TrimSpace(d.ProductID)
	c.Title = strings.TrimSpace(d.Title)
	c.StartDate = d.StartDate
	c.EndDate = d.EndDate
	c.MaxEnrollments = d.MaxEnrollments
	c.Pricing = d.Pricing
}

// Edit replaces the editable fields. Only drafts can be edited.
func (c *Campaign) Edit(d Draft, now time.Time) error {
	if c.Status != StatusDraft {
		return apperr.Validation("only draft campaigns can be edited")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c.apply(d)
	c.touch(now)
	return nil
}

// Transition applies action. On failure the campaign is left unchanged.
func (c *Campaign) Transition(action Action, now time.Time) error {
	next, err := Next(c.Status, action)
	if err != nil {
		return err
	}
	c.Status = next
	c.touch(now)
	return nil
}

// CheckDeletable fails unless the campaign is still a draft
func (c *Campaign) CheckDeletable() error {
	if c.Status != StatusDraft {
		return apperr.InvalidTransition(string(c.Status), "deleted")
	}
	return nil
}

func (c *Campaign) touch(now time.Time) {
	c.UpdatedAt = now
	c.Version++
}

// Unlimited reports whether the campaign has no enrollment cap
func (c *Campaign) Unlimited() bool {
	return c.MaxEnrollments == nil
}

// EnrollmentPercentage returns how full the campaign is, 0 when unlimited
func (c *Campaign) EnrollmentPercentage() float64 {
	if c.MaxEnrollments == nil || *c.MaxEnrollments <= 0 {
		return 0
	}
	pct := float64(c.CurrentEnrollments) * 100 / float64(*c.MaxEnrollments)
	if pct > 100 {
		return 100
	}
	return pct
}

// CanAcceptEnrollment checks whether a new shopper may enroll
func (c *Campaign) CanAcceptEnrollment(now time.Time) error {
	if c.Status != StatusActive {
		return apperr.Validation("campaign is %s, not accepting enrollments", c.Status)
	}
	if now.Before(c.StartDate) {
		return apperr.Validation("campaign has not started")
	}
	if !now.Before(c.EndDate) {
		return apperr.Validation("campaign has ended")
	}
	if c.MaxEnrollments != nil && c.CurrentEnrollments >= *c.MaxEnrollments {
		return apperr.Validation("campaign is full")
	}
	return nil
}

// ValidateCounters checks approved+pending+rejected <= current <= max
func (c *Campaign) ValidateCounters() error {
	if c.ApprovedCount < 0 || c.PendingCount < 0 || c.RejectedCount < 0 {
		return apperr.Validation("campaign %s has negative counters", c.ID)
	}
	if c.ApprovedCount+c.PendingCount+c.RejectedCount > c.CurrentEnrollments {
		return apperr.Validation("campaign %s counters exceed current enrollments", c.ID)
	}
	if c.MaxEnrollments != nil && c.CurrentEnrollments > *c.MaxEnrollments {
		return apperr.Validation("campaign %s exceeds max enrollments", c.ID)
	}
	return nil
}

// RecordEnrollment counts a newly created enrollment
func (c *Campaign) RecordEnrollment(now time.Time) {
	c.CurrentEnrollments++
	c.touch(now)
}

// RecordSubmission counts an enrollment entering review
func (c *Campaign) RecordSubmission(now time.Time) {
	c.PendingCount++
	c.touch(now)
}

// RecordApproval moves one enrollment from pending to approved
func (c *Campaign) RecordApproval(payout decimal.Decimal, now time.Time) {
	c.leaveReview()
	c.ApprovedCount++
	c.TotalPayout = c.TotalPayout.Add(payout)
	c.touch(now)
}

// RecordRejection moves one enrollment from pending to rejected
func (c *Campaign) RecordRejection(now time.Time) {
	c.leaveReview()
	c.RejectedCount++
	c.touch(now)
}

// RecordLeftReview counts an enrollment leaving review without a verdict
// (changes requested or withdrawn)
func (c *Campaign) RecordLeftReview(now time.Time) {
	c.leaveReview()
	c.touch(now)
}

func (c *Campaign) leaveReview() {
	if c.PendingCount > 0 {
		c.PendingCount--
	}
}
