package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spendwise/internal/cli"
	"spendwise/internal/core"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var mode, month string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Ingest a transaction CSV into the store",
		Long: "Ingest a transaction CSV. In replace mode the rows of the affected months, " +
			"or of --month when given, are deleted first. A transactions.ingested event " +
			"is published when AMQP_URL is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMode(mode)
			if err != nil {
				return fmt.Errorf("--mode %q: %w", mode, err)
			}
			var hint core.Month
			if month != "" {
				if hint, err = core.ParseMonth(month); err != nil {
					return fmt.Errorf("--month %q: %w", month, err)
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			return opts.withApp(cmd, cli.AppOptions{Publish: true}, func(ctx context.Context, app *cli.App) error {
				res, err := app.Ingest.Upload(ctx, f, m, hint)
				if err != nil {
					return err
				}
				return printUpload(cmd.OutOrStdout(), opts.json, res)
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "append", "replace or append")
	cmd.Flags().StringVar(&month, "month", "", "restrict replace deletion to this month (YYYY-MM)")

	return cmd
}
