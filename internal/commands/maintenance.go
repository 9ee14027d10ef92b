package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"spendwise/internal/backend"
	"spendwise/internal/cli"
	applog "spendwise/internal/log"
	"spendwise/internal/storage"
)

func newRecategorizeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recategorize",
		Short: "Re-run the categorization rules over every stored transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				changed, err := app.Ingest.Recategorize(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts.json, map[string]int{"updated": changed},
					fmt.Sprintf("updated %d transactions\n", changed))
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			backendCfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			dialect, dsn, err := backendCfg.MigrationTarget()
			if err != nil {
				return err
			}

			if !statusOnly {
				logger.Info("Applying migrations", "dialect", dialect, applog.FieldOperation, applog.OpMigrate)
				if err := storage.RunMigrations(dialect, dsn); err != nil {
					return err
				}
			}

			version, dirty, err := storage.MigrationVersion(dialect, dsn)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			status := map[string]any{"dialect": dialect, "version": version, "dirty": dirty}
			text := fmt.Sprintf("%s schema at version %d", dialect, version)
			if dirty {
				text += " (dirty)"
			}
			return printResult(cmd.OutOrStdout(), opts.json, status, text+"\n")
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the current version")
	return cmd
}
