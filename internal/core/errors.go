package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrIO                   = errors.New("storage unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDebtAlreadyPaid      = errors.New("debt already paid")
	ErrInFlight             = errors.New("operation already in progress")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidQuantity      = errors.New("invalid quantity")
)

// Reason enumerates why a validation rule rejected its input.
type Reason string

const (
	ReasonRequired          Reason = "required"
	ReasonInvalidAmount     Reason = "invalid_amount"
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonInvalidValue      Reason = "invalid_value"
	ReasonBelowMinimum      Reason = "below_minimum"
	ReasonInsufficientStock Reason = "insufficient_stock"
)

// EntityKind names a collection held by the persistence layer.
type EntityKind string

const (
	EntityProduct     EntityKind = "product"
	EntityTransaction EntityKind = "transaction"
	EntityExchange    EntityKind = "exchange"
	EntityDebt        EntityKind = "debt"
)

type ValidationError struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func NewValidationError(field string, reason Reason, msg string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrInsufficientStock:
		return e.Reason == ReasonInsufficientStock
	case ErrInvalidAmount:
		return e.Reason == ReasonInvalidAmount
	case ErrInvalidQuantity:
		return e.Reason == ReasonInvalidQuantity
	}
	return false
}

type NotFoundError struct {
	Kind EntityKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IOError reports a failed persistence or network call. The user may retry.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// WrapIO returns nil for a nil err and passes typed domain errors through.
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrIO) {
		return err
	}
	return &IOError{Op: op, Err: err}
}

// Warning is a "valid but confirm first" signal raised by a rule.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConfirmationRequiredError struct {
	Warnings []Warning
}

func (e *ConfirmationRequiredError) Error() string {
	if len(e.Warnings) == 0 {
		return ErrConfirmationRequired.Error()
	}
	return ErrConfirmationRequired.Error() + ": " + e.Warnings[0].Message
}

func (e *ConfirmationRequiredError) Is(target error) bool { return target == ErrConfirmationRequired }
