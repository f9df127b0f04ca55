package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

// Dashboard is the home screen summary.
type Dashboard struct {
	Today        Today           `json:"today"`
	Cash         Split           `json:"cash"`
	NetChange    decimal.Decimal `json:"netChange"`
	Balance      decimal.Decimal `json:"balance"`
	ProductCount int             `json:"productCount"`
	LowStock     []core.Product  `json:"lowStock"`
	PendingDebts decimal.Decimal `json:"pendingDebts"`
}

func BuildDashboard(products []core.Product, txs []core.Transaction, debts []core.Debt, now time.Time) Dashboard {
	cash := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Kind == core.KindCash {
			cash = append(cash, t)
		}
	}
	split := IncomeExpenseSplit(cash)
	return Dashboard{
		Today:        TodayStats(cash, now),
		Cash:         split,
		NetChange:    split.Net(),
		Balance:      Balance(cash),
		ProductCount: len(products),
		LowStock:     LowStockProducts(products),
		PendingDebts: PendingDebtTotal(debts),
	}
}
