package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/storage"
)

var walletLedgerLimit int

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet inspection commands",
}

var walletShowCmd = &cobra.Command{
	Use:   "show <organization_id>",
	Short: "Show wallet balances and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletShow,
}

func init() {
	walletShowCmd.Flags().IntVar(&walletLedgerLimit, "ledger", 10, "Number of ledger entries to show")

	walletCmd.AddCommand(walletShowCmd)
	rootCmd.AddCommand(walletCmd)
}

func runWalletShow(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	actor := access.System(args[0])

	w, err := svc.GetWallet(ctx, actor)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wallet:          %s\n", w.HolderID)
	fmt.Fprintf(out, "Balance:         %s\n", w.Balance.StringFixed(2))
	fmt.Fprintf(out, "Available:       %s\n", w.AvailableBalance.StringFixed(2))
	fmt.Fprintf(out, "Pending (holds): %s\n", w.PendingBalance.StringFixed(2))
	fmt.Fprintf(out, "Credit limit:    %s\n", w.CreditLimit.StringFixed(2))
	fmt.Fprintf(out, "Credit used:     %s\n", w.CreditUtilized.StringFixed(2))

	if walletLedgerLimit <= 0 {
		return nil
	}
	entries, meta, err := svc.Ledger(ctx, actor, storage.Page{Limit: walletLedgerLimit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\nLedger (%d of %d):\n", len(entries), meta.Total)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tBALANCE\tREFERENCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Type,
			e.Amount.StringFixed(2),
			e.BalanceAfter.StringFixed(2),
			e.Reference,
		)
	}
	return tw.Flush()
}
