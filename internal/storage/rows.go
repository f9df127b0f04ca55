package storage

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

// Fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

type productRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Unit      string `db:"unit"`
	Quantity  int    `db:"quantity"`
	CreatedAt string `db:"created_at"`
}

func (r productRow) toCore() core.Product {
	return core.Product{ID: r.ID, Name: r.Name, Unit: r.Unit, Quantity: r.Quantity, CreatedAt: parseTime(r.CreatedAt)}
}

type transactionRow struct {
	ID          string          `db:"id"`
	Kind        string          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	PaymentType string          `db:"payment_type"`
	Type        string          `db:"type"`
	ProductID   string          `db:"product_id"`
	Description string          `db:"description"`
	Notes       string          `db:"notes"`
	CreatedAt   string          `db:"created_at"`
}

func newTransactionRow(tx core.Transaction) transactionRow {
	return transactionRow{
		ID:          tx.ID,
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		PaymentType: string(tx.PaymentType),
		Type:        string(tx.Type),
		ProductID:   tx.ProductID,
		Description: tx.Description,
		Notes:       tx.Notes,
		CreatedAt:   formatTime(tx.CreatedAt),
	}
}

func (r transactionRow) toCore() core.Transaction {
	return core.Transaction{
		ID:          r.ID,
		Kind:        core.TransactionKind(r.Kind),
		Amount:      r.Amount,
		PaymentType: core.PaymentType(r.PaymentType),
		Type:        core.MovementType(r.Type),
		ProductID:   r.ProductID,
		Description: r.Description,
		Notes:       r.Notes,
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

type exchangeRow struct {
	ID        string          `db:"id"`
	KSH       decimal.Decimal `db:"ksh"`
	Rate      decimal.Decimal `db:"rate"`
	USD       decimal.Decimal `db:"usd"`
	Direction string          `db:"direction"`
	Date      string          `db:"date"`
}

func (r exchangeRow) toCore() core.Exchange {
	return core.Exchange{
		ID:        r.ID,
		KSH:       r.KSH,
		Rate:      r.Rate,
		USD:       r.USD,
		Direction: core.ExchangeDirection(r.Direction),
		Date:      parseTime(r.Date),
	}
}

type debtRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Phone       string          `db:"phone"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Date        string          `db:"date"`
	Status      string          `db:"status"`
	PaidAt      sql.NullString  `db:"paid_at"`
}

func newDebtRow(d core.Debt) debtRow {
	return debtRow{
		ID:          d.ID,
		Name:        d.Name,
		Phone:       d.Phone,
		Amount:      d.Amount,
		Description: d.Description,
		Date:        formatTime(d.Date),
		Status:      string(d.Status),
		PaidAt:      nullTime(d.PaidAt),
	}
}

func (r debtRow) toCore() core.Debt {
	d := core.Debt{
		ID:          r.ID,
		Name:        r.Name,
		Phone:       r.Phone,
		Amount:      r.Amount,
		Description: r.Description,
		Date:        parseTime(r.Date),
		Status:      core.DebtStatus(r.Status),
	}
	if r.PaidAt.Valid {
		t := parseTime(r.PaidAt.String)
		d.PaidAt = &t
	}
	return d
}
