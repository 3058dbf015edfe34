// Package stats folds campaigns, enrollments and ledger entries into
// dashboard figures. Every function is total and returns zeroed results
// for empty input.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

// ApprovalRate returns approved/total as a percentage with two decimals
func ApprovalRate(approved, total int) float64 {
	if total <= 0 || approved <= 0 {
		return 0
	}
	return math.Round(float64(approved)*10000/float64(total)) / 100
}

// Summary aggregates a set of campaigns
type Summary struct {
	TotalCampaigns   int                     `json:"totalCampaigns"`
	ByStatus         map[campaign.Status]int `json:"byStatus"`
	TotalEnrollments int                     `json:"totalEnrollments"`
	ApprovedCount    int                     `json:"approvedCount"`
	PendingCount     int                     `json:"pendingCount"`
	RejectedCount    int                     `json:"rejectedCount"`
	TotalPayout      decimal.Decimal         `json:"totalPayout"`
	ApprovalRate     float64                 `json:"approvalRate"`
}

// CampaignSummary counts campaigns per status and sums their counters
func CampaignSummary(campaigns []*campaign.Campaign) Summary {
	s := Summary{
		ByStatus:    make(map[campaign.Status]int, len(campaign.Machine.Statuses)),
		TotalPayout: decimal.Zero,
	}
	for _, info := range campaign.Machine.Statuses {
		s.ByStatus[info.Status] = 0
	}

	for _, c := range campaigns {
		if c == nil {
			continue
		}
		s.TotalCampaigns++
		s.ByStatus[c.Status]++
		s.TotalEnrollments += c.CurrentEnrollments
		s.ApprovedCount += c.ApprovedCount
		s.PendingCount += c.PendingCount
		s.RejectedCount += c.RejectedCount
		s.TotalPayout = s.TotalPayout.Add(c.TotalPayout)
	}
	s.ApprovalRate = ApprovalRate(s.ApprovedCount, s.TotalEnrollments)
	return s
}

// Distribution is the number of enrollments per status
type Distribution struct {
	Total    int                       `json:"total"`
	ByStatus map[enrollment.Status]int `json:"byStatus"`
}

// EnrollmentDistribution counts enrollments per status. Every status is
// present in the result.
func EnrollmentDistribution(enrollments []*enrollment.Enrollment) Distribution {
	d := Distribution{ByStatus: make(map[enrollment.Status]int, len(enrollment.Statuses))}
	for _, st := range enrollment.Statuses {
		d.ByStatus[st] = 0
	}
	for _, e := range enrollments {
		if e == nil {
			continue
		}
		d.Total++
		d.ByStatus[e.Status]++
	}
	return d
}

// Runway is how many whole days the available balance lasts at the given
// daily spend. Zero spend yields zero.
func Runway(available, avgDailySpend decimal.Decimal) int {
	if !avgDailySpend.IsPositive() || !available.IsPositive() {
		return 0
	}
	return int(available.Div(avgDailySpend).Floor().IntPart())
}

// AverageDailySpend sums debits made in the last days before now and
// divides by days
func AverageDailySpend(entries []wallet.LedgerEntry, now time.Time, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	since := now.AddDate(0, 0, -days)
	total := decimal.Zero
	for _, e := range entries {
		if e.Type != wallet.EntryDebit {
			continue
		}
		if e.CreatedAt.Before(since) || e.CreatedAt.After(now) {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(days))).Round(2)
}

// EndingSoon returns active campaigns ending within threshold of now,
// soonest first
func EndingSoon(campaigns []*campaign.Campaign, now time.Time, threshold time.Duration) []*campaign.Campaign {
	limit := now.Add(threshold)
	out := make([]*campaign.Campaign, 0)
	for _, c := range campaigns {
		if c == nil || c.Status != campaign.StatusActive {
			continue
		}
		if c.EndDate.Before(now) || c.EndDate.After(limit) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndDate.Before(out[j].EndDate)
	})
	return out
}

// WalletSummary is the wallet part of the dashboard
type WalletSummary struct {
	Balance           decimal.Decimal `json:"balance"`
	AvailableBalance  decimal.Decimal `json:"availableBalance"`
	PendingBalance    decimal.Decimal `json:"pendingBalance"`
	AverageDailySpend decimal.Decimal `json:"averageDailySpend"`
	RunwayDays        int             `json:"runwayDays"`
}

// EndingSoonItem is a compact view of a campaign close to its end date
type EndingSoonItem struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	EndDate              time.Time `json:"endDate"`
	EnrollmentPercentage float64   `json:"enrollmentPercentage"`
}

// DashboardStats is the organization dashboard
type DashboardStats struct {
	Campaigns   Summary          `json:"campaigns"`
	Enrollments Distribution     `json:"enrollments"`
	Wallet      WalletSummary    `json:"wallet"`
	EndingSoon  []EndingSoonItem `json:"endingSoon"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// DashboardInput carries everything the dashboard is computed from
type DashboardInput struct {
	Campaigns       []*campaign.Campaign
	Enrollments     []*enrollment.Enrollment
	Wallet          *wallet.Wallet
	Ledger          []wallet.LedgerEntry
	Now             time.Time
	EndingSoonDays  int
	SpendWindowDays int
}

// Dashboard composes the aggregations above
func Dashboard(in DashboardInput) DashboardStats {
	out := DashboardStats{
		Campaigns:   CampaignSummary(in.Campaigns),
		Enrollments: EnrollmentDistribution(in.Enrollments),
		Wallet: WalletSummary{
			Balance:           decimal.Zero,
			AvailableBalance:  decimal.Zero,
			PendingBalance:    decimal.Zero,
			AverageDailySpend: decimal.Zero,
		},
		EndingSoon:  make([]EndingSoonItem, 0),
		GeneratedAt: in.Now,
	}

	if in.Wallet != nil {
		spend := AverageDailySpend(in.Ledger, in.Now, in.SpendWindowDays)
		out.Wallet = WalletSummary{
			Balance:           in.Wallet.Balance,
			AvailableBalance:  in.Wallet.AvailableBalance,
			PendingBalance:    in.Wallet.PendingBalance,
			AverageDailySpend: spend,
			RunwayDays:        Runway(in.Wallet.AvailableBalance, spend),
		}
	}

	window := time.Duration(in.EndingSoonDays) * 24 * time.Hour
	for _, c := range EndingSoon(in.Campaigns, in.Now, window) {
		out.EndingSoon = append(out.EndingSoon, EndingSoonItem{
			ID:                   c.ID,
			Title:                c.Title,
			EndDate:              c.EndDate,
			EnrollmentPercentage: c.EnrollmentPercentage(),
		})
	}
	return out
}
