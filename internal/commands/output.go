package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"spendwise/internal/core"
	"spendwise/internal/services"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes v as JSON, or text otherwise.
func printResult(w io.Writer, asJSON bool, v any, text string) error {
	if asJSON {
		return printJSON(w, v)
	}
	_, err := io.WriteString(w, text)
	return err
}

func printUpload(w io.Writer, asJSON bool, res services.UploadResult) error {
	months := make([]string, len(res.Months))
	for i, m := range res.Months {
		months[i] = m.String()
	}
	if asJSON {
		rowErrors := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			rowErrors[i] = e.Error()
		}
		return printJSON(w, map[string]any{
			"created":    res.Created,
			"deleted":    res.Deleted,
			"rejected":   res.Rejected,
			"mode":       res.Mode,
			"months":     months,
			"row_errors": rowErrors,
		})
	}

	fmt.Fprintf(w, "%s: created %d, deleted %d, rejected %d (months: %s)\n",
		res.Mode, res.Created, res.Deleted, res.Rejected, strings.Join(months, ", "))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return nil
}

func printInsights(w io.Writer, asJSON bool, ins core.Insights) error {
	if asJSON {
		return printJSON(w, ins)
	}

	fmt.Fprintf(w, "Period %s (%d of %d days elapsed, %d transactions)\n",
		ins.Period, ins.ElapsedDays, ins.PeriodDays, ins.TransactionCount)
	fmt.Fprintf(w, "Total %s, daily average %s, month forecast %s\n\n",
		core.FormatCents(ins.TotalCents), core.FormatCents(ins.DailyAvgCents), core.FormatCents(ins.MonthForecastCents))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tSHARE\t")
	categories := make([]string, 0, len(ins.ByCategory))
	for cat := range ins.ByCategory {
		categories = append(categories, cat)
	}
	slices.SortFunc(categories, func(a, b string) int {
		if d := ins.ByCategory[b] - ins.ByCategory[a]; d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
		return strings.Compare(a, b)
	})
	for _, cat := range categories {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t\n", cat, core.FormatCents(ins.ByCategory[cat]), ins.ByCategoryPct[cat])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(ins.TopMerchants) > 0 {
		fmt.Fprintln(w, "\nTop merchants:")
		for i, m := range ins.TopMerchants {
			fmt.Fprintf(w, "  %d. %s %s\n", i+1, m.Merchant, core.FormatCents(m.Cents))
		}
	}
	return nil
}

func printNudges(w io.Writer, asJSON bool, nudges []core.Nudge) error {
	if asJSON {
		if nudges == nil {
			nudges = []core.Nudge{}
		}
		return printJSON(w, nudges)
	}
	if len(nudges) == 0 {
		_, err := fmt.Fprintln(w, "No nudges.")
		return err
	}
	for _, n := range nudges {
		fmt.Fprintf(w, "[%s] %s\n", n.Type, n.Message)
		if n.Suggestion != "" {
			fmt.Fprintf(w, "    %s\n", n.Suggestion)
		}
	}
	return nil
}
