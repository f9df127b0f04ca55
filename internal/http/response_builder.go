// Package http serves the duka JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"duka/internal/core"
	applog "duka/internal/log"
)

// Error codes carried in the error body.
const (
	CodeValidation           = "validation"
	CodeNotFound             = "not_found"
	CodeConfirmationRequired = "confirmation_required"
	CodeInFlight             = "in_flight"
	CodeAlreadyPaid          = "already_paid"
	CodeUnavailable          = "unavailable"
	CodeRateLimited          = "rate_limited"
	CodeBadRequest           = "bad_request"
	CodeInternal             = "internal"
)

// ErrorBody is the machine readable part of an error response.
type ErrorBody struct {
	Code     string         `json:"code"`
	Field    string         `json:"field,omitempty"`
	Reason   core.Reason    `json:"reason,omitempty"`
	Warnings []core.Warning `json:"warnings,omitempty"`
}

// envelope is shared by success and error responses so clients can read
// "data" or "message" without checking the status first.
type envelope struct {
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       envelope
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the payload placed under "data".
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.body.Data = v
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.body.Message = msg
	return b
}

func (b *JSONResponseBuilder) Error(e ErrorBody) *JSONResponseBuilder {
	b.body.Error = &e
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"failed to encode response","error":{"code":"internal"}}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// OK wraps v in a 200 response.
func OK(v any) *JSONResponseBuilder {
	return NewJSONResponse().Data(v)
}

// Created wraps v in a 201 response.
func Created(v any) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Data(v)
}

// ErrorResponse creates an error response with the given code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Message(message).
		Error(ErrorBody{Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// FromError maps a domain error onto a response. Unknown errors become a
// 500 with a generic message so internals do not leak.
func FromError(err error) *JSONResponseBuilder {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
		cr *core.ConfirmationRequiredError
	)
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Message(ve.Message).
			Error(ErrorBody{Code: CodeValidation, Field: ve.Field, Reason: ve.Reason})
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidQuantity):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Message(err.Error()).
			Error(ErrorBody{Code: CodeValidation})
	case errors.As(err, &nf):
		return ErrorResponse(http.StatusNotFound, CodeNotFound, nf.Error())
	case errors.As(err, &cr):
		return NewJSONResponse().
			Status(http.StatusConflict).
			Message("please confirm to continue").
			Error(ErrorBody{Code: CodeConfirmationRequired, Warnings: cr.Warnings})
	case errors.Is(err, core.ErrInFlight):
		return ErrorResponse(http.StatusConflict, CodeInFlight, "the same operation is already in progress")
	case errors.Is(err, core.ErrDebtAlreadyPaid):
		return ErrorResponse(http.StatusConflict, CodeAlreadyPaid, "debt is already paid")
	case errors.Is(err, core.ErrIO), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "storage is unavailable, please try again")
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs err with its classification and writes the mapped
// response. Client errors are logged at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
	} else {
		s.logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorType(err),
			applog.FieldError, err.Error())
	}
	resp.Write(w)
}
