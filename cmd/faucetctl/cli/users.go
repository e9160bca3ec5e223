package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bchfaucet/internal/auth"
	"bchfaucet/internal/repository"
	"bchfaucet/internal/service"
)

const defaultTestPattern = "%@test.com"

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage user accounts",
	}

	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersCreateCmd())
	cmd.AddCommand(newUsersPurgeTestCmd())

	return cmd
}

// ---------- users list ----------

func newUsersListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List all users",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUsersList(ctx context.Context, jsonOutput bool) error {
	_, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	users, err := repository.NewUserRepository(gormDB).List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		return printJSON(users)
	}
	if len(users) == 0 {
		fmt.Println("No users.")
		return nil
	}

	fmt.Printf("%-36s %-6s %-16s %s\n", "ID", "TYPE", "USERNAME", "EMAIL")
	for _, u := range users {
		fmt.Printf("%-36s %-6s %-16s %s\n", u.ID, u.Type, u.Username, u.Email)
	}
	return nil
}

// ---------- users create ----------

func newUsersCreateCmd() *cobra.Command {
	var email, password, username string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a regular user",
		Example: `  faucetctl users create --email test@test.com --password pass`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersCreate(cmd.Context(), email, password, username)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&password, "password", "", "User password (required)")
	cmd.Flags().StringVar(&username, "username", "", "Optional username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runUsersCreate(ctx context.Context, email, password, username string) error {
	cfg, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	in := service.SignupInput{Email: &email, Password: &password}
	if username != "" {
		in.Username = &username
	}

	svc := service.NewAuthService(repository.NewUserRepository(gormDB), auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL))
	user, _, err := svc.Signup(ctx, in)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Printf("User %s created (%s).\n", user.Email, user.ID)
	return nil
}

// ---------- users purge-test ----------

func newUsersPurgeTestCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "purge-test",
		Short: "Delete users created by test runs",
		Long:  "Delete every user whose email matches a SQL LIKE pattern.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersPurgeTest(cmd.Context(), pattern)
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", defaultTestPattern, "SQL LIKE pattern matched against email")

	return cmd
}

func runUsersPurgeTest(ctx context.Context, pattern string) error {
	if pattern == "" || pattern == "%" {
		return fmt.Errorf("refusing to purge with pattern %q", pattern)
	}

	_, gormDB, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := repository.NewUserRepository(gormDB).DeleteByEmailLike(ctx, pattern)
	if err != nil {
		return fmt.Errorf("purge users: %w", err)
	}
	fmt.Printf("Deleted %d user(s) matching %q.\n", n, pattern)
	return nil
}
