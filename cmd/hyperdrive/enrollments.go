package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
	"github.com/foxzi/hyperdrive/internal/storage"
)

var (
	enrollmentListCampaign string
	enrollmentListStatus   string
	enrollmentListLimit    int
)

var enrollmentsCmd = &cobra.Command{
	Use:   "enrollments",
	Short: "Enrollment commands",
}

var enrollmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrollments",
	RunE:  runEnrollmentsList,
}

var enrollmentsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire overdue enrollments and stale campaigns now",
	Long: `Run one expiry pass: enrollments past their submission deadline move to
expired and release their wallet holds, and campaigns whose end date passed
before activation expire.`,
	RunE: runEnrollmentsExpire,
}

func init() {
	enrollmentsCmd.PersistentFlags().StringVar(&orgID, "org", "", "Organization ID (empty for all organizations)")
	enrollmentsListCmd.Flags().StringVar(&enrollmentListCampaign, "campaign", "", "Filter by campaign ID")
	enrollmentsListCmd.Flags().StringVar(&enrollmentListStatus, "status", "", "Filter by status")
	enrollmentsListCmd.Flags().IntVar(&enrollmentListLimit, "limit", 50, "Maximum number of enrollments to show")

	enrollmentsCmd.AddCommand(enrollmentsListCmd, enrollmentsExpireCmd)
	rootCmd.AddCommand(enrollmentsCmd)
}

func runEnrollmentsList(cmd *cobra.Command, args []string) error {
	status := enrollment.Status(enrollmentListStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown enrollment status: %s", enrollmentListStatus)
	}

	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	items, meta, err := svc.ListEnrollments(context.Background(), access.System(orgID),
		lifecycle.EnrollmentQuery{CampaignID: enrollmentListCampaign, Status: status},
		storage.Page{Limit: enrollmentListLimit},
	)
	if err != nil {
		return fmt.Errorf("failed to list enrollments: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No enrollments found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCAMPAIGN\tSHOPPER\tORDER\tSTATUS\tCOST\tDEADLINE")
	fmt.Fprintln(w, "--\t--------\t-------\t-----\t------\t----\t--------")

	for _, e := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			truncateID(e.CampaignID),
			e.ShopperID,
			e.OrderID,
			e.Status,
			e.TotalCost.StringFixed(2),
			e.SubmissionDeadline.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nShowing %d of %d enrollments\n", len(items), meta.Total)
	return nil
}

func runEnrollmentsExpire(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.ExpireOverdue(context.Background())
	if err != nil {
		return fmt.Errorf("expiry failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Expired %d enrollments and %d campaigns\n", report.Enrollments, report.Campaigns)
	if report.Failed > 0 {
		fmt.Fprintf(out, "Failed: %d\n", report.Failed)
	}
	return nil
}
