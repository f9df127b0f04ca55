// Package stats derives dashboard figures from transaction, product and
// debt collections. Every function is pure: inputs are never modified and
// empty inputs yield zero values.
package stats

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

// Stock level thresholds.
const (
	LowStockBelow    = 10
	HighStockAtLeast = 50
)

// NoPaymentType is reported as the most used channel when nothing matched.
const NoPaymentType = "None"

type StockLevel string

const (
	OutOfStock StockLevel = "OutOfStock"
	LowStock   StockLevel = "LowStock"
	InStock    StockLevel = "InStock"
	HighStock  StockLevel = "HighStock"
)

type Today struct {
	Count               int             `json:"count"`
	Total               decimal.Decimal `json:"total"`
	MostUsedPaymentType string          `json:"mostUsedPaymentType"`
}

type Split struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// Net is TotalIncome minus TotalExpense.
func (s Split) Net() decimal.Decimal {
	return NetChange(s.TotalIncome, s.TotalExpense)
}

type Movement struct {
	TotalIn  int `json:"totalIn"`
	TotalOut int `json:"totalOut"`
	Net      int `json:"net"`
	Count    int `json:"count"`
}

// TodayStats summarises the records created on now's calendar date.
// Records are scanned in creation order so that ties for the most used
// channel go to the one that reached the count first.
func TodayStats(txs []core.Transaction, now time.Time) Today {
	day := now.Format(time.DateOnly)
	todays := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.CreatedAt.IsZero() {
			continue
		}
		if t.CreatedAt.In(now.Location()).Format(time.DateOnly) == day {
			todays = append(todays, t)
		}
	}
	slices.SortStableFunc(todays, func(a, b core.Transaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	out := Today{Total: decimal.Zero, MostUsedPaymentType: NoPaymentType}
	counts := make(map[string]int)
	best := 0
	for _, t := range todays {
		out.Count++
		out.Total = out.Total.Add(t.Amount)
		key := t.Channel()
		counts[key]++
		if counts[key] > best {
			best = counts[key]
			out.MostUsedPaymentType = key
		}
	}
	return out
}

// IncomeExpenseSplit partitions by sign. TotalExpense is a magnitude.
func IncomeExpenseSplit(txs []core.Transaction) Split {
	s := Split{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, t := range txs {
		switch {
		case t.Amount.IsPositive():
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case t.Amount.IsNegative():
			s.TotalExpense = s.TotalExpense.Add(t.Amount.Abs())
		}
	}
	return s
}

func StockStatus(quantity int) StockLevel {
	switch {
	case quantity <= 0:
		return OutOfStock
	case quantity < LowStockBelow:
		return LowStock
	case quantity >= HighStockAtLeast:
		return HighStock
	default:
		return InStock
	}
}

// NetChange keeps the sign; no clamping.
func NetChange(totalIn, totalOut decimal.Decimal) decimal.Decimal {
	return totalIn.Sub(totalOut)
}

// Balance sums the signed amounts of cash entries.
func Balance(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Kind == core.KindCash {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// MovementTotals adds up the stock movements recorded for one product.
func MovementTotals(txs []core.Transaction, productID string) Movement {
	var m Movement
	for _, t := range txs {
		if t.Kind != core.KindStock || t.ProductID != productID {
			continue
		}
		units := int(t.Amount.Abs().IntPart())
		if t.Type == core.MovementOut || t.Amount.IsNegative() {
			m.TotalOut += units
		} else {
			m.TotalIn += units
		}
		m.Count++
	}
	m.Net = m.TotalIn - m.TotalOut
	return m
}

func PendingDebtTotal(debts []core.Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		if d.Status == core.DebtPending {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// LowStockProducts keeps products that are out of stock or running low,
// in input order.
func LowStockProducts(products []core.Product) []core.Product {
	out := make([]core.Product, 0)
	for _, p := range products {
		switch StockStatus(p.Quantity) {
		case OutOfStock, LowStock:
			out = append(out, p)
		}
	}
	return out
}
