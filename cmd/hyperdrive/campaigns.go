package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
	"github.com/foxzi/hyperdrive/internal/storage"
)

var (
	orgID string

	campaignListStatus string
	campaignListSearch string
	campaignListLimit  int
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "Campaign inspection commands",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE:  runCampaignsList,
}

var campaignsShowCmd = &cobra.Command{
	Use:   "show <campaign_id>",
	Short: "Show campaign details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignsShow,
}

func init() {
	campaignsCmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization ID (empty for all organizations)")
	campaignsListCmd.Flags().StringVar(&campaignListStatus, "status", "", "Filter by status")
	campaignsListCmd.Flags().StringVar(&campaignListSearch, "search", "", "Filter by title or product")
	campaignsListCmd.Flags().IntVar(&campaignListLimit, "limit", 50, "Maximum number of campaigns to show")

	campaignsCmd.AddCommand(campaignsListCmd, campaignsShowCmd)
	rootCmd.AddCommand(campaignsCmd)
}

func runCampaignsList(cmd *cobra.Command, args []string) error {
	status := campaign.Status(campaignListStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown campaign status: %s", campaignListStatus)
	}

	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	campaigns, meta, err := svc.ListCampaigns(context.Background(), access.System(orgID),
		lifecycle.CampaignQuery{Status: status, Search: campaignListSearch},
		storage.Page{Limit: campaignListLimit},
	)
	if err != nil {
		return fmt.Errorf("failed to list campaigns: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(campaigns) == 0 {
		fmt.Fprintln(out, "No campaigns found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORG\tSTATUS\tTITLE\tENROLLED\tPENDING\tAPPROVED\tENDS")
	fmt.Fprintln(w, "--\t---\t------\t-----\t--------\t-------\t--------\t----")

	for _, c := range campaigns {
		title := c.Title
		if len(title) > 32 {
			title = title[:29] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(c.ID),
			c.OrganizationID,
			c.Status,
			title,
			capacity(c),
			c.PendingCount,
			c.ApprovedCount,
			c.EndDate.Format("2006-01-02"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nShowing %d of %d campaigns\n", len(campaigns), meta.Total)
	return nil
}

func runCampaignsShow(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	c, err := svc.GetCampaign(context.Background(), access.System(orgID), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", c.ID)
	fmt.Fprintf(out, "Organization: %s\n", c.OrganizationID)
	fmt.Fprintf(out, "Title:        %s\n", c.Title)
	fmt.Fprintf(out, "Product:      %s\n", c.ProductID)
	fmt.Fprintf(out, "Status:       %s\n", c.Status)
	fmt.Fprintf(out, "Window:       %s - %s\n", c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Enrollments:  %s\n", capacity(c))
	fmt.Fprintf(out, "  pending:    %d\n", c.PendingCount)
	fmt.Fprintf(out, "  approved:   %d\n", c.ApprovedCount)
	fmt.Fprintf(out, "  rejected:   %d\n", c.RejectedCount)
	fmt.Fprintf(out, "Payout:       %s\n", c.TotalPayout.StringFixed(2))
	fmt.Fprintf(out, "Version:      %d\n", c.Version)

	pricing, err := json.MarshalIndent(c.Pricing, "  ", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pricing:\n  %s\n", pricing)

	if actions := campaign.AllowedActions(c.Status); len(actions) > 0 {
		fmt.Fprintf(out, "Next actions: %v\n", actions)
	}
	return nil
}

func capacity(c *campaign.Campaign) string {
	if c.MaxEnrollments == nil {
		return fmt.Sprintf("%d", c.CurrentEnrollments)
	}
	return fmt.Sprintf("%d/%d", c.CurrentEnrollments, *c.MaxEnrollments)
}
