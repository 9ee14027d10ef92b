// Package parser turns uploaded transaction CSV files into validated rows.
//
// Rows are parsed independently: a row that cannot be parsed is counted as
// rejected and skipped, while a file whose header lacks a required column is
// refused as a whole.
package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"spendwise/internal/core"
)

const (
	colDate     = "date"
	colMerchant = "merchant"
	colAmount   = "amount"
	colCity     = "city"
	colChannel  = "channel"
	colMemo     = "memo"

	// maxReportedErrors bounds how many row errors a Batch keeps for reporting.
	maxReportedErrors = 20
	maxMerchantLen    = 200
)

var headerAliases = map[string]string{
	"date":             colDate,
	"posted_at":        colDate,
	"posted_on":        colDate,
	"transaction_date": colDate,
	"merchant":         colMerchant,
	"description":      colMerchant,
	"payee":            colMerchant,
	"amount":           colAmount,
	"city":             colCity,
	"channel":          colChannel,
	"memo":             colMemo,
}

var requiredColumns = []string{colDate, colMerchant, colAmount}

// Row is one successfully parsed CSV record.
type Row struct {
	Line        int
	Date        core.Date
	Merchant    string
	AmountCents int64
	City        string
	Channel     string
	Memo        string
}

// RowError describes why a record was rejected.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Batch is the outcome of parsing one upload.
type Batch struct {
	Rows     []Row
	Rejected int
	Errors   []RowError // first rejections only, see maxReportedErrors
}

func (b *Batch) reject(line int, err error) {
	b.Rejected++
	if len(b.Errors) < maxReportedErrors {
		b.Errors = append(b.Errors, RowError{Line: line, Err: err})
	}
}

// Months returns the distinct months of the parsed rows in ascending order.
func (b Batch) Months() []core.Month {
	seen := map[core.Month]bool{}
	var out []core.Month
	for _, r := range b.Rows {
		m := core.MonthOf(r.Date)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return core.SortMonths(out)
}

// Parse reads a transaction CSV with a header row. Column order is free and
// header names are case-insensitive. A missing required column yields a
// *core.ValidationError; read failures of r are returned wrapped.
func Parse(r io.Reader) (Batch, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Batch{}, &core.ValidationError{Msg: "empty upload: header row required"}
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Batch{}, &core.ValidationError{Msg: fmt.Sprintf("unreadable header: %v", pe.Err)}
		}
		return Batch{}, fmt.Errorf("reading csv header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return Batch{}, err
	}

	var batch Batch
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				batch.reject(pe.Line, pe.Err)
				continue
			}
			return Batch{}, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		row, err := parseRow(rec, cols)
		if err != nil {
			batch.reject(line, err)
			continue
		}
		row.Line = line
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if canonical, ok := headerAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &core.ValidationError{Msg: "missing required column(s): " + strings.Join(missing, ", ")}
	}
	return cols, nil
}

func parseRow(rec []string, cols map[string]int) (Row, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rawDate := get(colDate)
	if rawDate == "" {
		return Row{}, errors.New("missing date")
	}
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rawDate, err)
	}

	merchant := cleanText(get(colMerchant))
	if merchant == "" {
		return Row{}, errors.New("missing merchant")
	}
	if r := []rune(merchant); len(r) > maxMerchantLen {
		merchant = string(r[:maxMerchantLen])
	}

	rawAmount := get(colAmount)
	if rawAmount == "" {
		return Row{}, errors.New("missing amount")
	}
	cents, err := core.ParseAmountToCents(rawAmount)
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rawAmount, err)
	}

	return Row{
		Date:        date,
		Merchant:    merchant,
		AmountCents: cents,
		City:        cleanText(get(colCity)),
		Channel:     cleanText(get(colChannel)),
		Memo:        cleanText(get(colMemo)),
	}, nil
}

// cleanText drops control characters and surrounding whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}
