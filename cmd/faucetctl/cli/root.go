package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute creates the root command tree and runs it.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "faucetctl",
		Short: "Operate the BCH testnet faucet database",
		Long: `faucetctl inspects and maintains the faucet's persisted state: users, requester IP
records and paid addresses. It reads the same configuration profile as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyProfile(v)
		},
	}

	cmd.PersistentFlags().String("env", "", "config profile: development, test or production (env FAUCET_ENV)")
	cmd.PersistentFlags().String("config-dir", "", "directory holding the YAML profiles (env FAUCET_CONFIG_DIR)")
	_ = v.BindPFlag("env", cmd.PersistentFlags().Lookup("env"))
	_ = v.BindPFlag("config_dir", cmd.PersistentFlags().Lookup("config-dir"))

	v.SetEnvPrefix("FAUCET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newIPsCmd())
	cmd.AddCommand(newAddressesCmd())
	cmd.AddCommand(newDBCmd())

	return cmd
}

// applyProfile exports the resolved flags so config.Load picks them up.
func applyProfile(v *viper.Viper) error {
	if env := v.GetString("env"); env != "" {
		if err := os.Setenv("FAUCET_ENV", env); err != nil {
			return err
		}
	}
	if dir := v.GetString("config_dir"); dir != "" {
		if err := os.Setenv("FAUCET_CONFIG_DIR", dir); err != nil {
			return err
		}
	}
	return nil
}
