package lifecycle

import (
	"context"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/stats"
	"github.com/foxzi/hyperdrive/internal/storage"
)

// Dashboard aggregates the actor organization's campaigns, enrollments and
// wallet. endingSoonDays <= 0 uses the configured default.
func (s *Service) Dashboard(ctx context.Context, a access.Actor, endingSoonDays int) (*stats.DashboardStats, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, err
	}
	if endingSoonDays <= 0 {
		endingSoonDays = s.cfg.EndingSoonDays
	}

	now := s.now()
	in := stats.DashboardInput{
		Now:             now,
		EndingSoonDays:  endingSoonDays,
		SpendWindowDays: s.cfg.SpendWindowDays,
	}
	org := a.OrganizationID
	if org == "" && !a.CrossOrg() {
		return nil, apperr.Validation("actor has no organization")
	}

	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		if in.Campaigns, err = tx.Campaigns(storage.CampaignFilter{OrganizationID: org}); err != nil {
			return err
		}
		if in.Enrollments, err = tx.Enrollments(storage.EnrollmentFilter{OrganizationID: org}); err != nil {
			return err
		}
		if org == "" {
			return nil
		}
		if in.Wallet, err = s.loadWallet(tx, org, now); err != nil {
			return err
		}
		in.Ledger, err = tx.Ledger(org, now.AddDate(0, 0, -s.cfg.SpendWindowDays))
		return err
	})
	if err != nil {
		return nil, err
	}

	out := stats.Dashboard(in)
	return &out, nil
}

// Snapshot is a consistency report over the whole store
type Snapshot struct {
	Campaigns   int      `json:"campaigns"`
	Enrollments int      `json:"enrollments"`
	Wallets     int      `json:"wallets"`
	Problems    []string `json:"problems"`
}

// Check verifies campaign counters and wallet holds for every organization
func (s *Service) Check(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Problems: []string{}}
	err := s.store.View(func(tx *storage.Tx) error {
		campaigns, err := tx.Campaigns(storage.CampaignFilter{})
		if err != nil {
			return err
		}
		snap.Campaigns = len(campaigns)
		for _, c := range campaigns {
			if err := c.ValidateCounters(); err != nil {
				snap.Problems = append(snap.Problems, err.Error())
			}
		}

		enrollments, err := tx.Enrollments(storage.EnrollmentFilter{})
		if err != nil {
			return err
		}
		snap.Enrollments = len(enrollments)
		snap.Problems = append(snap.Problems, checkPending(campaigns, enrollments)...)

		wallets, err := tx.Wallets()
		if err != nil {
			return err
		}
		snap.Wallets = len(wallets)
		for _, w := range wallets {
			holds, err := tx.Holds(w.HolderID)
			if err != nil {
				return err
			}
			if err := w.CheckInvariants(holds); err != nil {
				snap.Problems = append(snap.Problems, err.Error())
			}
			s.recorder.SetWalletBalance(w.HolderID, w.AvailableBalance.InexactFloat64(), w.PendingBalance.InexactFloat64())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// checkPending compares each campaign's pendingCount with the enrollments
// actually awaiting review
func checkPending(campaigns []*campaign.Campaign, enrollments []*enrollment.Enrollment) []string {
	inReview := make(map[string]int)
	for _, e := range enrollments {
		if e.Status == enrollment.StatusAwaitingReview {
			inReview[e.CampaignID]++
		}
	}
	var problems []string
	for _, c := range campaigns {
		if c.PendingCount != inReview[c.ID] {
			problems = append(problems, "campaign "+c.ID+" pendingCount does not match enrollments awaiting review")
		}
	}
	return problems
}

// StatusCounts counts every campaign and enrollment by status
func (s *Service) StatusCounts(ctx context.Context) (map[string]int, map[string]int, error) {
	var (
		summary      stats.Summary
		distribution stats.Distribution
	)
	err := s.store.View(func(tx *storage.Tx) error {
		campaigns, err := tx.Campaigns(storage.CampaignFilter{})
		if err != nil {
			return err
		}
		enrollments, err := tx.Enrollments(storage.EnrollmentFilter{})
		if err != nil {
			return err
		}
		summary = stats.CampaignSummary(campaigns)
		distribution = stats.EnrollmentDistribution(enrollments)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	campaignCounts := make(map[string]int, len(summary.ByStatus))
	for st, n := range summary.ByStatus {
		campaignCounts[string(st)] = n
	}
	enrollmentCounts := make(map[string]int, len(distribution.ByStatus))
	for st, n := range distribution.ByStatus {
		enrollmentCounts[string(st)] = n
	}
	return campaignCounts, enrollmentCounts, nil
}
