// Package cli implements the tracklinkctl operator commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	githubadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/github"
	jenkinsadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/jenkins"
	sqliteadapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/config"
)

// Env is what a command needs once configuration and the database are open.
type Env struct {
	Config *config.Config
	DB     *sqliteadapter.DB
}

// Opener loads configuration and opens the database for one command run.
type Opener func(ctx context.Context) (*Env, error)

// DefaultOpener reads TRACKLINK_* configuration and opens the configured
// database without running migrations.
func DefaultOpener(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, DB: db}, nil
}

// Close releases the database.
func (e *Env) Close() error {
	return e.DB.Close()
}

func (e *Env) reconcileService() (*application.ReconcileService, error) {
	ghClient, err := githubadapter.NewClient(e.Config.GitHubAPIURL, e.Config.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	return application.NewReconcileService(
		sqliteadapter.NewRepoRepo(e.DB),
		sqliteadapter.NewCredentialRepo(e.DB, e.Config.SecretKey),
		ghClient,
		sqliteadapter.NewLeaseRepo(e.DB),
		application.ReconcileConfig{
			Interval:    e.Config.ReconcileInterval,
			Grace:       e.Config.ReconcileGrace,
			MaxRetries:  e.Config.WebhookMaxRetries,
			CallbackURL: e.Config.WebhookCallbackURL,
			LeaseTTL:    e.Config.ReconcileInterval,
		},
		e.Config.NewLogger(os.Stderr),
	), nil
}

func (e *Env) buildService() (*application.BuildService, error) {
	catalog, err := jenkinsadapter.LoadCatalog(e.Config.PipelineTemplates)
	if err != nil {
		return nil, err
	}
	runner := jenkinsadapter.NewClient(e.Config.CIBaseURL, e.Config.CIUsername, e.Config.CIAPIToken, e.Config.HTTPTimeout, catalog)
	return application.NewBuildService(
		sqliteadapter.NewTransactor(e.DB),
		sqliteadapter.NewBuildRepo(e.DB),
		sqliteadapter.NewCredentialRepo(e.DB, e.Config.SecretKey),
		runner,
		e.Config.CICallbackURL,
		e.Config.BuildStaleAfter,
		e.Config.NewLogger(os.Stderr),
	), nil
}

// NewRootCommand creates the tracklinkctl root command.
func NewRootCommand(open Opener, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "tracklinkctl",
		Short:         "Operate a tracklink installation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCommand(open),
		newReconcileCommand(open),
		newSweepBuildsCommand(open),
		newCredentialCommand(open),
	)

	return root
}

// withEnv opens an Env, runs fn and closes it.
func withEnv(cmd *cobra.Command, open Opener, fn func(env *Env) error) error {
	env, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.Close(); closeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close database: %v\n", closeErr)
		}
	}()
	return fn(env)
}
