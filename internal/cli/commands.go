package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/sqlite"
)

func newMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				if err := sqliteadapter.RunMigrations(env.DB.Writer.DB); err != nil {
					return err
				}
				version, dirty, err := sqliteadapter.SchemaVersion(env.DB.Writer.DB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied, schema at version %d.\n", version)
				if dirty {
					return fmt.Errorf("schema version %d is dirty", version)
				}
				return nil
			})
		},
	}
}

func newReconcileCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one webhook reconciliation pass",
		Long: `Reconcile retries webhook creation for repositories whose webhook is still
PENDING after the grace period. The run takes the shared reconciliation lease,
so it never overlaps with a running server's loop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				svc, err := env.reconcileService()
				if err != nil {
					return err
				}
				report, err := svc.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "candidates: %d\nrecreated:  %d\nfailed:     %d\nerrors:     %d\n",
					report.Candidates, report.Recreated, report.Failed, report.Errors)
				return nil
			})
		},
	}
}

func newSweepBuildsCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-builds",
		Short: "Fail builds that never received a completion callback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				svc, err := env.buildService()
				if err != nil {
					return err
				}
				swept, err := svc.SweepStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Swept %d stale build(s).\n", swept)
				return nil
			})
		},
	}
}

func newCredentialCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage encrypted user credentials",
	}

	set := &cobra.Command{
		Use:   "set <user-id> <service>",
		Short: "Store a credential read from stdin",
		Long: `Set encrypts the secret read from standard input with TRACKLINK_SECRET_KEY
and stores it for the user. Surrounding whitespace is trimmed.

Example:
  echo "$GITHUB_TOKEN" | tracklinkctl credential set 7 github`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			service := strings.TrimSpace(args[1])
			if service == "" {
				return errors.New("service must not be empty")
			}

			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withEnv(cmd, open, func(env *Env) error {
				creds := sqliteadapter.NewCredentialRepo(env.DB, env.Config.SecretKey)
				if err := creds.Set(cmd.Context(), userID, service, secret); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Credential %q stored for user %d.\n", service, userID)
				return nil
			})
		},
	}

	cmd.AddCommand(set)
	return cmd
}

func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", errors.New("no secret on stdin")
	}
	return secret, nil
}
