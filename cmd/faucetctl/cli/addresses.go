package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bchfaucet/internal/repository"
)

func newAddressesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "addresses",
		Aliases: []string{"addrs"},
		Short:   "Inspect paid addresses",
	}

	cmd.AddCommand(newAddressesListCmd())

	return cmd
}

func newAddressesListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List addresses that received a payout",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddressesList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAddressesList(ctx context.Context, jsonOutput bool) error {
	_, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := repository.NewAddressRepository(gormDB).List(ctx)
	if err != nil {
		return fmt.Errorf("list addresses: %w", err)
	}

	if jsonOutput {
		return printJSON(records)
	}

	fmt.Printf("%-54s %-64s %s\n", "ADDRESS", "TXID", "PAID")
	for _, r := range records {
		fmt.Printf("%-54s %-64s %s\n", r.BchAddress, r.TxID, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
