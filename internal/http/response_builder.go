// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the single
// place where service errors are mapped to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendwise/internal/core"
	applog "spendwise/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error    string `json:"error"`
	Rejected *int   `json:"rejected,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// writeError maps service errors onto status codes. Internal failures are
// logged with the request logger and answered without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		validation *core.ValidationError
		notFound   *core.NotFoundError
		storageErr *core.StorageError
		tooLarge   *http.MaxBytesError
	)
	logger := applog.FromContext(r.Context())

	switch {
	case errors.As(err, &validation):
		body := errorBody{Error: validation.Msg}
		if validation.Rejected > 0 {
			rejected := validation.Rejected
			body.Rejected = &rejected
		}
		NewJSONResponse().Status(http.StatusBadRequest).Body(body).Write(w)
	case errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidMode):
		BadRequestError(err.Error()).Write(w)
	case errors.As(err, &notFound):
		NotFoundError(notFound.Error()).Write(w)
	case errors.As(err, &tooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "upload exceeds size limit").Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "Request timed out",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeTimeout)
		ErrorResponse(http.StatusGatewayTimeout, "request timed out").Write(w)
	case errors.As(err, &storageErr):
		logger.ErrorContext(r.Context(), "Storage failure",
			applog.FieldOperation, op,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeStorage)
		InternalServerError("storage failure").Write(w)
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeInternal)
		InternalServerError("internal error").Write(w)
	}
}
