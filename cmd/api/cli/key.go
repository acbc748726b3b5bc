package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/FilipeAphrody/sentinel-panel/internal/domain"
	"github.com/FilipeAphrody/sentinel-panel/internal/usecase"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Issue, list, and revoke API keys used by programmatic clients.",
	}

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var req usecase.IssueRequest

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key",
		Long:  "Generate a new API key for a user. The raw key is shown once and cannot be retrieved again.",
		Example: `  sentinel-panel key issue --user 6f1c... --name "CI pipeline" --scope reports:read --rate-limit 120
  sentinel-panel key issue --user 6f1c... --name nightly --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runKeyIssue(cmd, a.keys, req)
		},
	}

	cmd.Flags().StringVar(&req.UserID, "user", "", "Owner user ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Human-readable name for the key (required)")
	cmd.Flags().StringSliceVar(&req.Scopes, "scope", nil, "Scope granted to the key (repeatable)")
	cmd.Flags().IntVar(&req.RateLimit, "rate-limit", 0, "Requests per minute (0 uses the default)")
	cmd.Flags().DurationVar(&req.TTL, "ttl", 0, "Lifetime of the key, e.g. 720h (0 never expires)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyIssue(cmd *cobra.Command, keys *usecase.APIKeyRegistry, req usecase.IssueRequest) error {
	key, raw, err := keys.Issue(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("issue api key: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "API Key issued:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Key:        %s\n", raw)
	fmt.Fprintf(w, "  ID:         %s\n", key.ID)
	fmt.Fprintf(w, "  Name:       %s\n", key.Name)
	fmt.Fprintf(w, "  Rate limit: %d/min\n", key.RateLimitPerMinute)
	if len(key.Scopes) > 0 {
		fmt.Fprintf(w, "  Scopes:     %s\n", strings.Join(key.Scopes, ", "))
	}
	if key.ExpiresAt != nil {
		fmt.Fprintf(w, "  Expires:    %s\n", key.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		userID     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runKeyList(cmd, a.keys, userID, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Owner user ID (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyList(cmd *cobra.Command, keys *usecase.APIKeyRegistry, userID string, jsonOutput bool) error {
	list, err := keys.List(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		if list == nil {
			list = []domain.APIKey{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(w, "No API keys. Use 'sentinel-panel key issue' to create one.")
		return nil
	}

	now := time.Now()
	fmt.Fprintf(w, "%-36s %-14s %-24s %-8s\n", "ID", "PREFIX", "NAME", "STATUS")
	fmt.Fprintf(w, "%-36s %-14s %-24s %-8s\n", "--", "------", "----", "------")
	for _, k := range list {
		fmt.Fprintf(w, "%-36s %-14s %-24s %-8s\n", k.ID, k.KeyPrefix, k.Name, keyStatus(&k, now))
	}
	return nil
}

func keyStatus(k *domain.APIKey, now time.Time) string {
	switch {
	case !k.IsActive:
		return "revoked"
	case k.Expired(now):
		return "expired"
	case k.Blocked(now):
		return "blocked"
	default:
		return "active"
	}
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.keys.Revoke(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoke api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s revoked.\n", args[0])
			return nil
		},
	}
}
