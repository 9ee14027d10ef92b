package parser

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
)

func TestParse_Statement(t *testing.T) {
	f, err := os.Open("testdata/statement.csv")
	require.NoError(t, err)
	defer f.Close()

	batch, err := Parse(f)
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 7)
	assert.Equal(t, 3, batch.Rejected)
	require.Len(t, batch.Errors, 3)

	first := batch.Rows[0]
	assert.Equal(t, "TRADER JOE'S #552", first.Merchant)
	assert.Equal(t, int64(4500), first.AmountCents)
	assert.Equal(t, "2025-10-01", first.Date.String())
	assert.Equal(t, "Vancouver", first.City)
	assert.Equal(t, "card", first.Channel)
	assert.Equal(t, 2, first.Line)

	assert.Equal(t, int64(102450), batch.Rows[3].AmountCents)
	assert.Equal(t, int64(-1299), batch.Rows[4].AmountCents)
	assert.Equal(t, "refund", batch.Rows[4].Memo)
	assert.Equal(t, int64(6000), batch.Rows[5].AmountCents)

	// US-style date, missing merchant and non-numeric amount are rejected.
	assert.Equal(t, 8, batch.Errors[0].Line)
	assert.ErrorIs(t, batch.Errors[0].Err, core.ErrInvalidDate)
	assert.Equal(t, 9, batch.Errors[1].Line)
	assert.Equal(t, 10, batch.Errors[2].Line)
	assert.ErrorIs(t, batch.Errors[2].Err, core.ErrInvalidAmount)

	months := batch.Months()
	require.Len(t, months, 2)
	assert.Equal(t, "2025-09", months[0].String())
	assert.Equal(t, "2025-10", months[1].String())
}

func TestParse_HeaderIsCaseInsensitiveAndOrderFree(t *testing.T) {
	in := "\xef\xbb\xbfAmount, MERCHANT ,Date\n4.50,Blue Bottle,2025-10-03\n"
	batch, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "Blue Bottle", batch.Rows[0].Merchant)
	assert.Equal(t, int64(450), batch.Rows[0].AmountCents)
	assert.Equal(t, time.October, batch.Rows[0].Date.Month())
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("date,description\n2025-10-01,Coffee\n"))
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Contains(t, ve.Msg, "amount")
}

func TestParse_EmptyUpload(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	var ve *core.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestParse_HeaderOnlyYieldsNoRows(t *testing.T) {
	batch, err := Parse(strings.NewReader("date,merchant,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, batch.Rows)
	assert.Zero(t, batch.Rejected)
}

func TestParse_ShortRecordsAreRejectedNotFatal(t *testing.T) {
	in := "date,merchant,amount\n2025-10-01,Safeway\n2025-10-02,Safeway,10.00\n"
	batch, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 1)
	assert.Equal(t, 1, batch.Rejected)
}

func TestParse_DuplicateRowsAreKept(t *testing.T) {
	in := "date,merchant,amount\n2025-10-01,Starbucks,5.00\n2025-10-01,Starbucks,5.00\n"
	batch, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 2)
}

func TestParse_RejectionsAreCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("date,merchant,amount\n")
	for i := 0; i < maxReportedErrors+5; i++ {
		b.WriteString("nope,Shop,1.00\n")
	}
	batch, err := Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, maxReportedErrors+5, batch.Rejected)
	assert.Len(t, batch.Errors, maxReportedErrors)
}

func TestParse_ReadFailureIsReturned(t *testing.T) {
	r := &failingReader{data: "date,merchant,amount\n2025-10-01,Shop,1.00\n"}
	_, err := Parse(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

var errBoom = errors.New("boom")

type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errBoom
	}
	r.done = true
	return copy(p, r.data), nil
}
