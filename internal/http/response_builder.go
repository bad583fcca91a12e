// Package http exposes the report and ledger services as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from service errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/backup"
	"fintrack/internal/services"
	"fintrack/internal/sources"
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

// Write sends the built response to the http.ResponseWriter. The body is
// encoded before the header goes out; an unencodable body becomes a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	var payload []byte
	if b.body != nil {
		var err error
		payload, err = json.Marshal(b.body)
		if err != nil {
			InternalServerError("failed to encode response").Write(w)
			return
		}
		payload = append(payload, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
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

// clientErrors are caused by the request and are reported back verbatim.
var clientErrors = []error{
	ErrInvalidParameter,
	analytics.ErrInvalidHorizon,
	analytics.ErrInvalidThreshold,
	analytics.ErrInvalidDays,
	analytics.ErrInvalidMonthKey,
	analytics.ErrInvalidGranularity,
	analytics.ErrInvalidMode,
	backup.ErrInvalidJSON,
	backup.ErrUnrecognizedFormat,
	services.ErrEmptyCategory,
	services.ErrInvalidLimit,
	services.ErrEmptyID,
	services.ErrEmptyBackup,
	services.ErrInvalidEntry,
	services.ErrInvalidRecurrence,
}

// statusFor maps a service error to an HTTP status. Only client errors keep
// their message; everything else is reported as a generic failure.
func statusFor(err error) (int, string) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	switch {
	case errors.Is(err, sources.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, sources.ErrReadOnly):
		return http.StatusNotImplemented, "the configured data source is read-only"
	case errors.Is(err, services.ErrAlertsUnavailable):
		return http.StatusNotImplemented, "the configured data source does not store alerts"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// FromError builds the error response for err.
func FromError(err error) *JSONResponseBuilder {
	code, msg := statusFor(err)
	return ErrorResponse(code, msg)
}
