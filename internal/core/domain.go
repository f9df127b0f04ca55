package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	KindCash  TransactionKind = "cash"
	KindStock TransactionKind = "stock"
)

const (
	PaymentCash  PaymentType = "Cash"
	PaymentMPesa PaymentType = "M-Pesa"
	PaymentCard  PaymentType = "Card"
)

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

const (
	DebtPending DebtStatus = "pending"
	DebtPaid    DebtStatus = "paid"
)

const (
	KSHToUSD ExchangeDirection = "KSH_TO_USD"
	USDToKSH ExchangeDirection = "USD_TO_KSH"
)

type (
	TransactionKind   string
	PaymentType       string
	MovementType      string
	DebtStatus        string
	ExchangeDirection string

	// Transaction is a cash entry or a stock movement. Amount is signed:
	// positive for income and stock-in, negative for expense and stock-out.
	Transaction struct {
		ID          string          `json:"id"`
		Kind        TransactionKind `json:"kind"`
		Amount      decimal.Decimal `json:"amount"`
		PaymentType PaymentType     `json:"paymentType,omitempty"`
		Type        MovementType    `json:"type,omitempty"`
		ProductID   string          `json:"productId,omitempty"`
		Description string          `json:"description"`
		Notes       string          `json:"notes,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Product struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Unit      string    `json:"unit"`
		Quantity  int       `json:"quantity"`
		CreatedAt time.Time `json:"createdAt"`
	}

	ProductPatch struct {
		Name *string `json:"name,omitempty"`
		Unit *string `json:"unit,omitempty"`
	}

	Debt struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Phone       string          `json:"phone,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		Status      DebtStatus      `json:"status"`
		PaidAt      *time.Time      `json:"paidAt,omitempty"`
	}

	DebtPatch struct {
		Name        *string          `json:"name,omitempty"`
		Phone       *string          `json:"phone,omitempty"`
		Description *string          `json:"description,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Status      *DebtStatus      `json:"status,omitempty"`
	}

	// Exchange is an immutable KSH/USD conversion record. Rate is KSH per USD.
	Exchange struct {
		ID        string            `json:"id"`
		KSH       decimal.Decimal   `json:"ksh"`
		Rate      decimal.Decimal   `json:"rate"`
		USD       decimal.Decimal   `json:"usd"`
		Direction ExchangeDirection `json:"direction"`
		Date      time.Time         `json:"date"`
	}
)

// PaymentTypes lists the accepted payment types in display order.
func PaymentTypes() []PaymentType {
	return []PaymentType{PaymentCash, PaymentMPesa, PaymentCard}
}

// NormalizePaymentType folds case and drops separators so that
// "M-Pesa", "mpesa" and "M PESA" compare equal.
func NormalizePaymentType(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// ParsePaymentType maps free text onto one of the known payment types.
func ParsePaymentType(s string) (PaymentType, bool) {
	n := NormalizePaymentType(s)
	for _, pt := range PaymentTypes() {
		if NormalizePaymentType(string(pt)) == n {
			return pt, true
		}
	}
	return "", false
}

func (pt PaymentType) Valid() bool {
	_, ok := ParsePaymentType(string(pt))
	return ok
}

func ParseMovementType(s string) (MovementType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(MovementIn):
		return MovementIn, true
	case string(MovementOut):
		return MovementOut, true
	}
	return "", false
}

func ParseExchangeDirection(s string) (ExchangeDirection, bool) {
	switch strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", ">", "").Replace(strings.TrimSpace(s))) {
	case "KSH_TO_USD", "KSH_USD":
		return KSHToUSD, true
	case "USD_TO_KSH", "USD_KSH":
		return USDToKSH, true
	}
	return "", false
}

func (t Transaction) IsIncome() bool  { return t.Amount.IsPositive() }
func (t Transaction) IsExpense() bool { return t.Amount.IsNegative() }

// Channel is the payment type for cash entries and the movement type for
// stock movements.
func (t Transaction) Channel() string {
	if t.Kind == KindStock {
		return string(t.Type)
	}
	return string(t.PaymentType)
}

// WithDefaults fills the fields a caller may leave empty. Adapters call it
// before storing so consumers never see a half-populated record.
func (t Transaction) WithDefaults(now time.Time) Transaction {
	if t.Kind == "" {
		if t.Type != "" {
			t.Kind = KindStock
		} else {
			t.Kind = KindCash
		}
	}
	if t.Kind == KindStock && t.Type == "" {
		if t.Amount.IsNegative() {
			t.Type = MovementOut
		} else {
			t.Type = MovementIn
		}
	}
	if t.Kind == KindCash && t.PaymentType == "" {
		t.PaymentType = PaymentCash
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		t.Description = t.DefaultLabel()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return t
}

// DefaultLabel is the description used when none was entered.
func (t Transaction) DefaultLabel() string {
	if t.Kind == KindStock {
		if t.Type == MovementOut {
			return "Stock out"
		}
		return "Stock in"
	}
	dir := "Cash in"
	if t.Amount.IsNegative() {
		dir = "Cash out"
	}
	if t.PaymentType == "" {
		return dir
	}
	return dir + " via " + string(t.PaymentType)
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", ReasonRequired, "product name is required")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return NewValidationError("unit", ReasonRequired, "product unit is required")
	}
	if p.Quantity < 0 {
		return NewValidationError("quantity", ReasonInvalidQuantity, "quantity cannot be negative")
	}
	return nil
}

// Apply returns a copy of p with the patch applied.
func (pp ProductPatch) Apply(p Product) (Product, error) {
	if pp.Name != nil {
		p.Name = strings.TrimSpace(*pp.Name)
	}
	if pp.Unit != nil {
		p.Unit = strings.TrimSpace(*pp.Unit)
	}
	return p, p.Validate()
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return NewValidationError("name", ReasonRequired, "debtor name is required")
	}
	if !d.Amount.IsPositive() {
		return NewValidationError("amount", ReasonInvalidAmount, "amount must be greater than zero")
	}
	switch d.Status {
	case DebtPending, DebtPaid:
	default:
		return NewValidationError("status", ReasonInvalidValue, "status must be pending or paid")
	}
	return nil
}

// MarkPaid moves a pending debt to paid. A debt is paid at most once.
func (d Debt) MarkPaid(now time.Time) (Debt, error) {
	if d.Status == DebtPaid {
		return d, ErrDebtAlreadyPaid
	}
	d.Status = DebtPaid
	paidAt := now
	d.PaidAt = &paidAt
	return d, nil
}

// Apply returns a copy of d with the patch applied. Status may only move
// from pending to paid.
func (dp DebtPatch) Apply(d Debt, now time.Time) (Debt, error) {
	if dp.Name != nil {
		d.Name = strings.TrimSpace(*dp.Name)
	}
	if dp.Phone != nil {
		d.Phone = strings.TrimSpace(*dp.Phone)
	}
	if dp.Description != nil {
		d.Description = strings.TrimSpace(*dp.Description)
	}
	if dp.Amount != nil {
		d.Amount = *dp.Amount
	}
	if dp.Status != nil && *dp.Status != d.Status {
		if *dp.Status != DebtPaid {
			return d, NewValidationError("status", ReasonInvalidValue, "a paid debt cannot be reopened")
		}
		var err error
		if d, err = d.MarkPaid(now); err != nil {
			return d, err
		}
	} else if dp.Status != nil && *dp.Status == DebtPaid {
		return d, ErrDebtAlreadyPaid
	}
	return d, d.Validate()
}

// NewExchange derives the missing side of a conversion from the entered
// amount and rate. Both stored sides are rounded to two decimals.
func NewExchange(amount, rate decimal.Decimal, dir ExchangeDirection, now time.Time) (Exchange, error) {
	if !amount.IsPositive() {
		return Exchange{}, NewValidationError("amount", ReasonInvalidAmount, "please enter a valid amount")
	}
	if !rate.IsPositive() {
		return Exchange{}, NewValidationError("rate", ReasonInvalidAmount, "please enter a valid exchange rate")
	}
	ex := Exchange{Rate: rate, Direction: dir, Date: now}
	switch dir {
	case KSHToUSD:
		ex.KSH = amount.Round(2)
		ex.USD = amount.Div(rate).Round(2)
	case USDToKSH:
		ex.USD = amount.Round(2)
		ex.KSH = amount.Mul(rate).Round(2)
	default:
		return Exchange{}, NewValidationError("direction", ReasonInvalidValue, "direction must be KSH_TO_USD or USD_TO_KSH")
	}
	return ex, nil
}
