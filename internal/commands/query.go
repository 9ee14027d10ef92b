package commands

import (
	"context"

	"github.com/spf13/cobra"

	"spendwise/internal/cli"
	"spendwise/internal/core"
)

// periodFlag resolves --period against the aggregator clock.
func periodFlag(raw string, app *cli.App) (core.Period, error) {
	if raw == "" {
		return core.CurrentMonthPeriod(app.Insights.Now()), nil
	}
	return core.ParsePeriod(raw)
}

func newInsightsCommand(opts *rootOptions) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print spending insights for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				p, err := periodFlag(period, app)
				if err != nil {
					return err
				}
				ins, err := app.Insights.Insights(ctx, p)
				if err != nil {
					return err
				}
				return printInsights(cmd.OutOrStdout(), opts.json, ins)
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "YYYY-MM or YYYY-MM-DD..YYYY-MM-DD (default current month)")
	return cmd
}

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Recompute nudges for a period and replace the stored list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				p, err := periodFlag(period, app)
				if err != nil {
					return err
				}
				nudges, err := app.Nudges.Suggest(ctx, p)
				if err != nil {
					return err
				}
				return printNudges(cmd.OutOrStdout(), opts.json, nudges)
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "YYYY-MM or YYYY-MM-DD..YYYY-MM-DD (default current month)")
	return cmd
}

func newNudgesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "nudges",
		Short: "Print the stored nudge list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, cli.AppOptions{}, func(ctx context.Context, app *cli.App) error {
				nudges, err := app.Nudges.List(ctx)
				if err != nil {
					return err
				}
				return printNudges(cmd.OutOrStdout(), opts.json, nudges)
			})
		},
	}
}
