package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"validation", NewValidationError("amount", ReasonInvalidAmount, "bad"), ErrValidation, true},
		{"validation is invalid amount", NewValidationError("amount", ReasonInvalidAmount, "bad"), ErrInvalidAmount, true},
		{"insufficient stock", NewValidationError("quantity", ReasonInsufficientStock, "only 3 left"), ErrInsufficientStock, true},
		{"insufficient stock is not not-found", NewValidationError("quantity", ReasonInsufficientStock, "x"), ErrNotFound, false},
		{"not found", &NotFoundError{Kind: EntityProduct, ID: "7"}, ErrNotFound, true},
		{"wrapped not found", fmt.Errorf("get product: %w", &NotFoundError{Kind: EntityProduct, ID: "7"}), ErrNotFound, true},
		{"io", &IOError{Op: "list products", Err: cause}, ErrIO, true},
		{"io unwraps cause", &IOError{Op: "list products", Err: cause}, cause, true},
		{"confirmation", &ConfirmationRequiredError{Warnings: []Warning{{Code: "x", Message: "y"}}}, ErrConfirmationRequired, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestWrapIO(t *testing.T) {
	if WrapIO("op", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
	nf := &NotFoundError{Kind: EntityDebt, ID: "1"}
	if got := WrapIO("op", nf); got != nf {
		t.Fatalf("typed domain errors must pass through, got %v", got)
	}
	err := WrapIO("create debt", errors.New("connection reset"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "create debt" {
		t.Fatalf("expected IOError, got %#v", err)
	}
	if err.Error() != "create debt: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
