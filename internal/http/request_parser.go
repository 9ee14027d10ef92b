// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing query parameters and upload
// bodies shared by the handlers.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spendwise/internal/core"
)

// uploadField is the multipart form field carrying the CSV.
const uploadField = "file"

// ParsePeriodParam reads `period`, or its `month` alias, from the query.
// Both absent means the calendar month containing now.
func ParsePeriodParam(query url.Values, now time.Time) (core.Period, error) {
	raw := strings.TrimSpace(query.Get("period"))
	if raw == "" {
		raw = strings.TrimSpace(query.Get("month"))
	}
	if raw == "" {
		return core.CurrentMonthPeriod(now), nil
	}
	p, err := core.ParsePeriod(raw)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %q", err, raw)
	}
	return p, nil
}

// UploadParams are the query parameters of an upload.
type UploadParams struct {
	Mode core.Mode
	Hint core.Month // zero when `month` is absent
}

// ParseUploadParams reads `mode` (default append) and the optional `month` hint.
func ParseUploadParams(query url.Values) (UploadParams, error) {
	mode, err := core.ParseMode(query.Get("mode"))
	if err != nil {
		return UploadParams{}, fmt.Errorf("%w: %q", err, query.Get("mode"))
	}
	params := UploadParams{Mode: mode}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			return UploadParams{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, v)
		}
		params.Hint = m
	}
	return params, nil
}

// UploadBody returns the CSV stream of an upload request: the `file` part of
// a multipart form, or the raw body for any other content type. The stream
// is read lazily so the caller's size limit applies while parsing.
func UploadBody(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &core.ValidationError{Msg: "malformed multipart body"}
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, &core.ValidationError{Msg: "missing multipart field \"" + uploadField + "\""}
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, &core.ValidationError{Msg: "malformed multipart body"}
		}
		if part.FormName() == uploadField {
			return part, nil
		}
	}
}
