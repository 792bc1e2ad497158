// Package http serves the JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/dashboard"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/receipts"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// errorBody is the payload of every error response.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers[key] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body sends headers only.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse builds an error response with a user-facing message.
func ErrorResponse(status int, message string) *ResponseBuilder {
	return NewResponse().Status(status).JSON(errorBody{Error: message})
}

func NotFoundError() *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "Not found")
}

func InternalError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// badRequest marks malformed input that never reached validation.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// statusFor maps an error to its status code and the message shown to
// the client. Anything unrecognised is a server failure and its details
// stay in the log.
func statusFor(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrReceiptsDisabled):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, receipts.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "Receipt too large"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, receipts.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, dashboard.ErrClosed):
		return http.StatusServiceUnavailable, "Service shutting down"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeError logs err and sends the matching error response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op, nil)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", "operation", op, "status_code", status, "error", err)
	}
	body := errorBody{Error: msg, RequestID: w.Header().Get("X-Request-ID")}
	NewResponse().Status(status).JSON(body).Write(w)
}
