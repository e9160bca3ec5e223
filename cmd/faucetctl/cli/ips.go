package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bchfaucet/internal/repository"
)

func newIPsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ips",
		Short: "Inspect requester IP records",
	}

	cmd.AddCommand(newIPsListCmd())
	cmd.AddCommand(newIPsSweepCmd())

	return cmd
}

func newIPsListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recorded requester IPs",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIPsList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runIPsList(ctx context.Context, jsonOutput bool) error {
	_, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := repository.NewIPRepository(gormDB).List(ctx)
	if err != nil {
		return fmt.Errorf("list ips: %w", err)
	}

	if jsonOutput {
		return printJSON(records)
	}

	fmt.Printf("%-40s %s\n", "IP", "TIMESTAMP")
	for _, r := range records {
		fmt.Printf("%-40s %s\n", r.IPAddress, r.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func newIPsSweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete IP records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIPsSweep(cmd.Context(), olderThan)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default: faucet.ipRetention)")

	return cmd
}

func runIPsSweep(ctx context.Context, olderThan time.Duration) error {
	cfg, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	if olderThan <= 0 {
		olderThan = cfg.Faucet.IPRetention
	}

	n, err := repository.NewIPRepository(gormDB).DeleteOlderThan(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("sweep ips: %w", err)
	}
	fmt.Printf("Deleted %d IP record(s) older than %s.\n", n, olderThan)
	return nil
}
