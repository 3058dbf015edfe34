package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/campaign"
)

var (
	statsEndingSoonDays int
	statsJSON           bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	RunE:  runStats,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check campaign counters and wallet holds for consistency",
	RunE:  runCheck,
}

func init() {
	statsCmd.Flags().StringVar(&orgID, "org", "", "Organization ID (empty for all organizations)")
	statsCmd.Flags().IntVar(&statsEndingSoonDays, "ending-soon-days", 0, "Window for campaigns ending soon (0 = config default)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(statsCmd, checkCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	dash, err := svc.Dashboard(context.Background(), access.System(orgID), statsEndingSoonDays)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dash)
	}

	fmt.Fprintf(out, "Campaigns:     %d\n", dash.Campaigns.TotalCampaigns)
	statuses := make([]string, 0, len(dash.Campaigns.ByStatus))
	for s := range dash.Campaigns.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(out, "  %-18s %d\n", s+":", dash.Campaigns.ByStatus[campaign.Status(s)])
	}
	fmt.Fprintf(out, "Enrollments:   %d\n", dash.Enrollments.Total)
	fmt.Fprintf(out, "  approved:    %d\n", dash.Campaigns.ApprovedCount)
	fmt.Fprintf(out, "  pending:     %d\n", dash.Campaigns.PendingCount)
	fmt.Fprintf(out, "  rejected:    %d\n", dash.Campaigns.RejectedCount)
	fmt.Fprintf(out, "Approval rate: %.1f%%\n", dash.Campaigns.ApprovalRate)
	fmt.Fprintf(out, "Total payout:  %s\n", dash.Campaigns.TotalPayout.StringFixed(2))

	if orgID != "" {
		fmt.Fprintf(out, "Wallet:        %s available, %s held\n",
			dash.Wallet.AvailableBalance.StringFixed(2),
			dash.Wallet.PendingBalance.StringFixed(2),
		)
		fmt.Fprintf(out, "Runway:        %d days\n", dash.Wallet.RunwayDays)
	}

	if len(dash.EndingSoon) > 0 {
		fmt.Fprintln(out, "\nEnding soon:")
		for _, c := range dash.EndingSoon {
			fmt.Fprintf(out, "  %s  %s  %s  %.0f%% enrolled\n",
				truncateID(c.ID), c.EndDate.Format("2006-01-02"), c.Title, c.EnrollmentPercentage)
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	snap, err := svc.Check(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checked %d campaigns, %d enrollments, %d wallets\n",
		snap.Campaigns, snap.Enrollments, snap.Wallets)
	if len(snap.Problems) == 0 {
		fmt.Fprintln(out, "No problems found")
		return nil
	}
	for _, p := range snap.Problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return fmt.Errorf("%d problems found", len(snap.Problems))
}
