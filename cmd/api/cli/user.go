package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage panel users",
	}

	cmd.AddCommand(newUserCreateCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a panel user",
		Example: `  sentinel-panel user create --email root@example.com --password 'change me now' --role superadmin
  sentinel-panel user create --email ops@example.com --password 'another secret'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runUserCreate(cmd, a.creds, email, password, domain.Role(role))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Login email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Initial password, at least 8 characters (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "Role: admin or superadmin")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func runUserCreate(cmd *cobra.Command, creds *usecase.CredentialStore, email, password string, role domain.Role) error {
	user, err := creds.CreateUser(cmd.Context(), email, password, role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	printUser(cmd.OutOrStdout(), user)
	return nil
}

func printUser(w io.Writer, u *domain.User) {
	fmt.Fprintln(w, "User created:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  ID:    %s\n", u.ID)
	fmt.Fprintf(w, "  Email: %s\n", u.Email)
	fmt.Fprintf(w, "  Role:  %s\n", u.Role)
}
