package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{core.NewValidationError("amount", core.ReasonInvalidAmount, "bad"), ErrorTypeValidation},
		{fmt.Errorf("get: %w", &core.NotFoundError{Kind: core.EntityDebt, ID: "1"}), ErrorTypeNotFound},
		{core.ErrInFlight, ErrorTypeConflict},
		{&core.ConfirmationRequiredError{}, ErrorTypeConflict},
		{context.DeadlineExceeded, ErrorTypeTimeout},
		{&core.IOError{Op: "list", Err: errors.New("locked")}, ErrorTypeDatabase},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestComponentIsTaggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf}).WithComponent(ComponentLedger)

	logger.Info("hello", "k", "v")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=ledger") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLogTransactionRecorded(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))

	sl.LogTransactionRecorded(context.Background(), core.Transaction{
		ID:          "t1",
		Kind:        core.KindStock,
		Type:        core.MovementOut,
		ProductID:   "p1",
		Amount:      decimal.NewFromInt(-3),
		Description: "Sold",
	})

	out := buf.String()
	for _, want := range []string{"entity_id=t1", "movement=OUT", "product_id=p1", "amount=-3", "component=ledger"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "payment_type") {
		t.Errorf("stock movement must not log a payment type: %q", out)
	}
}
