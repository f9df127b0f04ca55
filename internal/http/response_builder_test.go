package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"duka/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Data(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	if got := w.Body.String(); got != "{\"data\":{\"count\":2}}\n" {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_Unencodable(t *testing.T) {
	w := httptest.NewRecorder()
	OK(make(chan int)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", core.NewValidationError("amount", core.ReasonInvalidAmount, "bad"), http.StatusUnprocessableEntity, CodeValidation},
		{"wrapped validation", fmt.Errorf("record: %w", core.NewValidationError("quantity", core.ReasonInsufficientStock, "only 2")), http.StatusUnprocessableEntity, CodeValidation},
		{"bare invalid amount", core.ErrInvalidAmount, http.StatusUnprocessableEntity, CodeValidation},
		{"not found", &core.NotFoundError{Kind: core.EntityProduct, ID: "9"}, http.StatusNotFound, CodeNotFound},
		{"confirmation", &core.ConfirmationRequiredError{Warnings: []core.Warning{{Code: "large", Message: "sure?"}}}, http.StatusConflict, CodeConfirmationRequired},
		{"in flight", core.ErrInFlight, http.StatusConflict, CodeInFlight},
		{"already paid", core.ErrDebtAlreadyPaid, http.StatusConflict, CodeAlreadyPaid},
		{"io", &core.IOError{Op: "list products", Err: errors.New("disk")}, http.StatusServiceUnavailable, CodeUnavailable},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, CodeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(tt.err).Write(w)
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d", w.Code, tt.status)
			}
			var body struct {
				Message string    `json:"message"`
				Error   ErrorBody `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("code %q, want %q", body.Error.Code, tt.code)
			}
			if tt.code == CodeInternal && body.Message != "internal error" {
				t.Fatalf("internal details leaked: %q", body.Message)
			}
		})
	}
}

func TestFromErrorCarriesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(core.NewValidationError("rate", core.ReasonInvalidAmount, "please enter a valid exchange rate")).Write(w)
	var body struct {
		Message string    `json:"message"`
		Error   ErrorBody `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error.Field != "rate" || body.Error.Reason != core.ReasonInvalidAmount || body.Message != "please enter a valid exchange rate" {
		t.Fatalf("unexpected body %+v", body)
	}

	w = httptest.NewRecorder()
	FromError(&core.ConfirmationRequiredError{Warnings: []core.Warning{{Code: "small_exchange", Message: "continue?"}}}).Write(w)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Error.Warnings) != 1 || body.Error.Warnings[0].Code != "small_exchange" {
		t.Fatalf("warnings lost: %+v", body.Error)
	}
}
