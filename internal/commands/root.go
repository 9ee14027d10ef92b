// Package commands implements the spendwise-admin command tree.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/buildinfo"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	applog "spendwise/internal/log"
)

// rootOptions are the persistent flags every subcommand sees.
type rootOptions struct {
	logLevel string
	json     bool
	timeout  time.Duration
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "spendwise-admin",
		Short:   "Operate a spendwise installation from the command line",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")
	flags.BoolVar(&opts.json, "json", false, "print results as JSON")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall time limit for the command")

	rootCmd.AddCommand(
		newImportCommand(opts),
		newRecategorizeCommand(opts),
		newInsightsCommand(opts),
		newSuggestCommand(opts),
		newNudgesCommand(opts),
		newMigrateCommand(opts),
	)

	return rootCmd
}

// loadConfig reads the environment and sets up logging on stderr.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, *applog.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger := cli.SetupLogger(level, cmd.ErrOrStderr()).WithComponent(applog.ComponentAdmin)
	return cfg, logger, nil
}

// withApp runs fn against a freshly wired App and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, appOpts cli.AppOptions, fn func(ctx context.Context, app *cli.App) error) error {
	cfg, logger, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, logger, appOpts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("Failed to close application", applog.FieldError, cerr)
		}
	}()

	return fn(ctx, app)
}
