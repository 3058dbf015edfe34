package lifecycle

import (
	"context"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/storage"
)

// ExpiryReport counts what one expiry pass changed
type ExpiryReport struct {
	Enrollments int `json:"enrollments"`
	Campaigns   int `json:"campaigns"`
	Failed      int `json:"failed"`
}

// ExpireOverdue expires enrollments past their submission deadline and
// campaigns that ended before they were activated
func (s *Service) ExpireOverdue(ctx context.Context) (*ExpiryReport, error) {
	now := s.now()
	report := &ExpiryReport{}

	enrollments, err := s.store.ListEnrollments(storage.EnrollmentFilter{
		Statuses:       []enrollment.Status{enrollment.StatusAwaitingSubmission, enrollment.StatusChangesRequested},
		DeadlineBefore: now.Add(1),
	})
	if err != nil {
		return nil, err
	}
	for _, e := range enrollments {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !e.Overdue(now) {
			continue
		}
		_, err := s.TransitionEnrollment(ctx, access.System(e.OrganizationID), e.ID, enrollment.ActionExpire, "", nil)
		if err != nil {
			report.Failed++
			s.logger.Warn("failed to expire enrollment", "id", e.ID, "error", err)
			continue
		}
		report.Enrollments++
	}

	campaigns, err := s.store.ListCampaigns(storage.CampaignFilter{
		Statuses:     []campaign.Status{campaign.StatusPendingApproval, campaign.StatusApproved},
		EndingBefore: now.Add(1),
	})
	if err != nil {
		return report, err
	}
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.TransitionCampaign(ctx, access.System(c.OrganizationID), c.ID, campaign.ActionExpire, nil)
		if err != nil {
			report.Failed++
			s.logger.Warn("failed to expire campaign", "id", c.ID, "error", err)
			continue
		}
		report.Campaigns++
	}

	s.recorder.RecordExpired("enrollment", report.Enrollments)
	s.recorder.RecordExpired("campaign", report.Campaigns)
	if report.Enrollments > 0 || report.Campaigns > 0 || report.Failed > 0 {
		s.logger.Info("expiry pass finished",
			"enrollments", report.Enrollments,
			"campaigns", report.Campaigns,
			"failed", report.Failed,
		)
	}
	return report, nil
}
