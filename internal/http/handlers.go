package http

import (
	"context"
	"net/http"
	"time"

	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

// maxReportedRowErrors bounds the row errors echoed back on upload.
const maxReportedRowErrors = 20

type uploadResponse struct {
	Created   int          `json:"created"`
	Deleted   int          `json:"deleted"`
	Rejected  int          `json:"rejected"`
	Mode      core.Mode    `json:"mode"`
	Month     *core.Month  `json:"month"`
	Months    []core.Month `json:"months"`
	RowErrors []string     `json:"row_errors,omitempty"`
}

type transactionsResponse struct {
	Period       core.Period        `json:"period"`
	Count        int                `json:"count"`
	Truncated    bool               `json:"truncated"`
	Transactions []core.Transaction `json:"transactions"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	params, err := ParseUploadParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpUpload, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	body, err := UploadBody(r)
	if err != nil {
		writeError(w, r, applog.OpUpload, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.ingest.Upload(ctx, body, params.Mode, params.Hint)
	if err != nil {
		writeError(w, r, applog.OpUpload, err)
		return
	}

	months := make([]string, len(res.Months))
	for i, m := range res.Months {
		months[i] = m.String()
	}
	applog.FromContext(ctx).InfoContext(ctx, "Upload completed",
		applog.NewFields().
			WithOperation(applog.OpUpload).
			WithUpload(res.Created, res.Rejected, string(res.Mode), months).
			ToSlice()...)

	resp := uploadResponse{
		Created:  res.Created,
		Deleted:  res.Deleted,
		Rejected: res.Rejected,
		Mode:     res.Mode,
		Months:   res.Months,
	}
	if !res.Month.IsZero() {
		month := res.Month
		resp.Month = &month
	}
	for i, rowErr := range res.Errors {
		if i == maxReportedRowErrors {
			break
		}
		resp.RowErrors = append(resp.RowErrors, rowErr.Error())
	}
	NewJSONResponse().Status(http.StatusCreated).Body(resp).Write(w)
}

func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	changed, err := s.ingest.Recategorize(ctx)
	if err != nil {
		writeError(w, r, applog.OpRecategorize, err)
		return
	}
	NewJSONResponse().Body(map[string]int{"updated": changed}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r.URL.Query(), s.insights.Now())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	txns, truncated, err := s.insights.Transactions(ctx, period)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	NewJSONResponse().Body(transactionsResponse{
		Period:       period,
		Count:        len(txns),
		Truncated:    truncated,
		Transactions: txns,
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	txn, err := s.insights.Transaction(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(txn).Write(w)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r.URL.Query(), s.insights.Now())
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	ins, err := s.insights.Insights(ctx, period)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(ins).Write(w)
}

func (s *Server) handleListNudges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	nudges, err := s.nudges.List(ctx)
	if err != nil {
		writeError(w, r, applog.OpQuery, err)
		return
	}
	NewJSONResponse().Body(nudges).Write(w)
}

func (s *Server) handleSuggestNudges(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriodParam(r.URL.Query(), s.insights.Now())
	if err != nil {
		writeError(w, r, applog.OpSuggest, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	nudges, err := s.nudges.Suggest(ctx, period)
	if err != nil {
		writeError(w, r, applog.OpSuggest, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Nudges suggested",
		applog.FieldPeriod, period.String(),
		applog.FieldCount, len(nudges))
	NewJSONResponse().Status(http.StatusCreated).Body(nudges).Write(w)
}
