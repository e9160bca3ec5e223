package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bchfaucet/internal/config"
	"bchfaucet/internal/db"
)

var errWipeNotConfirmed = errors.New("refusing to wipe without --yes")

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	cmd.AddCommand(newDBWipeCmd())

	return cmd
}

func newDBWipeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Drop and recreate every table",
		Long:  "Drop every faucet table and recreate the empty schema. All users, IP records and paid addresses are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBWipe(cmd.Context(), yes)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the wipe")

	return cmd
}

func runDBWipe(ctx context.Context, yes bool) error {
	if !yes {
		return errWipeNotConfirmed
	}

	cfg, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := db.Wipe(ctx, gormDB); err != nil {
		return err
	}
	fmt.Printf("Database wiped (%s profile).\n", cfg.Env)
	if cfg.Env == config.EnvProduction {
		fmt.Println("Warning: this was the production profile.")
	}
	return nil
}
