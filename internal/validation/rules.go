// Package validation holds the synchronous checks that gate every write.
//
// A rule either rejects its input with a *core.ValidationError or accepts it,
// possibly with warnings. Warnings do not block the write by themselves; the
// caller must get an explicit confirmation before committing.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

var (
	// MinExchangeUSD is the smallest accepted exchange, inclusive.
	MinExchangeUSD = decimal.NewFromInt(100)
	// LowExchangeKSH triggers a confirmation prompt below this amount.
	LowExchangeKSH = decimal.NewFromInt(1000)
	// LargeStockOutShare triggers a confirmation prompt above this share of
	// the current stock.
	LargeStockOutShare = decimal.NewFromFloat(0.5)
)

const (
	WarnLowExchange   = "low_exchange_amount"
	WarnLargeStockOut = "large_stock_out"
)

// Outcome is the result of a rule that accepted its input.
type Outcome struct {
	Warnings []core.Warning `json:"warnings,omitempty"`
}

func (o Outcome) NeedsConfirmation() bool { return len(o.Warnings) > 0 }

// Gate turns warnings into a ConfirmationRequiredError unless the caller
// already confirmed.
func (o Outcome) Gate(confirmed bool) error {
	if o.NeedsConfirmation() && !confirmed {
		return &core.ConfirmationRequiredError{Warnings: o.Warnings}
	}
	return nil
}

func (o *Outcome) warn(code, format string, args ...any) {
	o.Warnings = append(o.Warnings, core.Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

type CashInput struct {
	Amount      decimal.Decimal
	PaymentType core.PaymentType
}

// CashEntry checks a cash in/out form. Description is optional.
func CashEntry(amountText, paymentType string) (CashInput, Outcome, error) {
	amount, err := core.ParseAmount(amountText)
	if err != nil {
		return CashInput{}, Outcome{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "please enter a valid amount")
	}
	if strings.TrimSpace(paymentType) == "" {
		return CashInput{}, Outcome{}, core.NewValidationError("paymentType", core.ReasonRequired, "payment type is required")
	}
	pt, ok := core.ParsePaymentType(paymentType)
	if !ok {
		return CashInput{}, Outcome{}, core.NewValidationError("paymentType", core.ReasonInvalidValue, "payment type must be Cash, M-Pesa or Card")
	}
	return CashInput{Amount: amount, PaymentType: pt}, Outcome{}, nil
}

// ExchangeQuote carries the unrounded converted amounts used for the
// threshold checks next to the stored, rounded exchange.
type ExchangeQuote struct {
	Exchange core.Exchange
	RawKSH   decimal.Decimal
	RawUSD   decimal.Decimal
}

// Exchange derives the other side of a conversion and applies the minimum
// and low-amount rules. Thresholds compare unrounded values so 99.999 USD
// is still below the minimum.
func Exchange(amountText, rateText string, dir core.ExchangeDirection, now time.Time) (ExchangeQuote, Outcome, error) {
	amount, err := core.ParseExactAmount(amountText)
	if err != nil {
		return ExchangeQuote{}, Outcome{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "please enter a valid amount")
	}
	rate, err := core.ParseRate(rateText)
	if err != nil {
		return ExchangeQuote{}, Outcome{}, core.NewValidationError("rate", core.ReasonInvalidAmount, "please enter a valid exchange rate")
	}
	return ExchangeAmounts(amount, rate, dir, now)
}

// ExchangeAmounts is Exchange for already parsed numbers.
func ExchangeAmounts(amount, rate decimal.Decimal, dir core.ExchangeDirection, now time.Time) (ExchangeQuote, Outcome, error) {
	ex, err := core.NewExchange(amount, rate, dir, now)
	if err != nil {
		return ExchangeQuote{}, Outcome{}, err
	}
	q := ExchangeQuote{Exchange: ex}
	switch dir {
	case core.KSHToUSD:
		q.RawKSH = amount
		q.RawUSD = amount.DivRound(rate, 16)
	default:
		q.RawUSD = amount
		q.RawKSH = amount.Mul(rate)
	}

	var out Outcome
	if q.RawUSD.LessThan(MinExchangeUSD) {
		return q, out, core.NewValidationError("usd", core.ReasonBelowMinimum,
			fmt.Sprintf("USD amount must be at least $%s (got $%s)", MinExchangeUSD, q.RawUSD.StringFixed(2)))
	}
	if q.RawKSH.LessThan(LowExchangeKSH) {
		out.warn(WarnLowExchange, "amount is less than 1,000 KSH ($%s); continue anyway?", ex.USD.StringFixed(2))
	}
	return q, out, nil
}

// StockOut checks a removal of quantity units from a product holding
// currentStock units. Removing everything is allowed.
func StockOut(quantity, currentStock int, description string) (Outcome, error) {
	var out Outcome
	if quantity <= 0 {
		return out, core.NewValidationError("quantity", core.ReasonInvalidQuantity, "please enter a valid quantity greater than 0")
	}
	if quantity > currentStock {
		return out, core.NewValidationError("quantity", core.ReasonInsufficientStock,
			fmt.Sprintf("cannot remove %d units, only %d available", quantity, currentStock))
	}
	if strings.TrimSpace(description) == "" {
		return out, core.NewValidationError("description", core.ReasonRequired, "please provide a reason for removing stock")
	}
	if decimal.NewFromInt(int64(quantity)).GreaterThan(LargeStockOutShare.Mul(decimal.NewFromInt(int64(currentStock)))) {
		out.warn(WarnLargeStockOut, "removing %d of %d units (more than half of the stock); continue?", quantity, currentStock)
	}
	return out, nil
}

func StockIn(quantity int, description string) (Outcome, error) {
	if quantity <= 0 {
		return Outcome{}, core.NewValidationError("quantity", core.ReasonInvalidQuantity, "please enter a valid quantity greater than 0")
	}
	if strings.TrimSpace(description) == "" {
		return Outcome{}, core.NewValidationError("description", core.ReasonRequired, "please provide a description for this stock entry")
	}
	return Outcome{}, nil
}

func NewProduct(name, unit string, initialQuantity int) (core.Product, error) {
	p := core.Product{Name: strings.TrimSpace(name), Unit: strings.TrimSpace(unit), Quantity: initialQuantity}
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	return p, nil
}

func Debt(name, amountText string) (decimal.Decimal, error) {
	if strings.TrimSpace(name) == "" {
		return decimal.Zero, core.NewValidationError("name", core.ReasonRequired, "please enter a valid name and amount")
	}
	amount, err := core.ParseAmount(amountText)
	if err != nil {
		return decimal.Zero, core.NewValidationError("amount", core.ReasonInvalidAmount, "please enter a valid name and amount")
	}
	return amount, nil
}
