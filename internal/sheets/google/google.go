package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
	ports "spendwise/internal/sheets"
)

// DefaultNudgesSheet is the tab the exporter writes when none is configured.
const DefaultNudgesSheet = "Nudges"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	nudgesSheet   string
}

var _ ports.NudgeExporter = (*Client)(nil)

// Options configures a Sheets client. One of CredentialsJSON or
// CredentialsFile is required unless extra client options supply auth.
type Options struct {
	SpreadsheetID   string
	NudgesSheet     string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
// Extra options are appended after the credentials and win on conflict.
func New(ctx context.Context, o Options, extra ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(o.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(o.NudgesSheet)
	if sheet == "" {
		sheet = DefaultNudgesSheet
	}

	opts, err := credentialOptions(ctx, o)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: o.SpreadsheetID, nudgesSheet: sheet}, nil
}

func credentialOptions(ctx context.Context, o Options) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(o.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(o.CredentialsJSON)
	case strings.TrimSpace(o.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", o.CredentialsFile)
		b, err := os.ReadFile(o.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, nil
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// ExportNudges clears the nudges tab and writes a header row followed by
// one row per nudge.
func (c *Client) ExportNudges(ctx context.Context, nudges []core.Nudge) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:G", c.nudgesSheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: nudgeRows(nudges)}
	target := fmt.Sprintf("%s!A1", c.nudgesSheet)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	slog.InfoContext(ctx, "Exported nudges to Google Sheets",
		"sheet", c.nudgesSheet,
		"count", len(nudges))
	return nil
}
