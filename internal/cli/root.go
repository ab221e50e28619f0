// Package cli implements sphincsctl, the operator command line for the
// alert pipeline. Commands compose the same application the server runs, so
// they act on the configured store directly.
//
// Import Path: sphincs.io/sphincs/internal/cli
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sphincs.io/sphincs/internal/app"
	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// ConfigLoader produces the configuration a command runs with.
type ConfigLoader func() (*config.Config, error)

type rootOptions struct {
	userID  int64
	jsonOut bool
}

// env is shared by every subcommand.
type env struct {
	load ConfigLoader
	opts *rootOptions
}

func newRootCmd(load ConfigLoader) *cobra.Command {
	opts := &rootOptions{}
	e := &env{load: load, opts: opts}

	cmd := &cobra.Command{
		Use:           "sphincsctl",
		Short:         "Operate the Sphincs alert pipeline",
		Long:          "sphincsctl lists and acknowledges alerts, manages notification preferences, runs the condition scanner, opens the desk alert panel and shows the audit trail.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Int64Var(&opts.userID, "user", 1, "Staff user id the command acts for")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Output as JSON")

	cmd.AddCommand(newAlertsCmd(e))
	cmd.AddCommand(newPrefsCmd(e))
	cmd.AddCommand(newSnoozeCmd(e))
	cmd.AddCommand(newUnsnoozeCmd(e))
	cmd.AddCommand(newScanCmd(e))
	cmd.AddCommand(newDeskCmd(e))
	cmd.AddCommand(newTokenCmd(e))
	cmd.AddCommand(newAuditCmd(e))
	return cmd
}

// Execute runs sphincsctl with configuration from config.yaml, .env and the
// environment.
func Execute() error {
	return newRootCmd(loadConfig).Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// withApp composes the application for the duration of fn.
func (e *env) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := e.load()
	if err != nil {
		return err
	}
	a, err := app.Compose(ctx, cfg)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	defer a.Shutdown()
	return fn(a)
}

func (e *env) user() (int64, error) {
	if e.opts.userID <= 0 {
		return 0, fmt.Errorf("--user must be a positive staff id, got %d", e.opts.userID)
	}
	return e.opts.userID, nil
}
