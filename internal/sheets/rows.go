package sheets

import (
	"strings"
	"time"

	"duka/internal/core"
)

// Header is the first row of every ledger sheet.
var Header = []any{"Date", "Time", "Kind", "Channel", "Description", "Product", "Amount", "Notes", "ID"}

// Row renders a transaction in the column order of Header. Times are
// written in loc; nil means UTC. The amount is sent as text and parsed by
// Sheets, which keeps it exact.
func Row(tx core.Transaction, loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	t := tx.CreatedAt.In(loc)
	return []any{
		t.Format("2006-01-02"),
		t.Format("15:04:05"),
		string(tx.Kind),
		tx.Channel(),
		tx.Description,
		tx.ProductID,
		tx.Amount.StringFixed(2),
		strings.TrimSpace(tx.Notes),
		tx.ID,
	}
}

// GroupByYear splits txs by the year of CreatedAt in loc, keeping order
// within each year. Each ledger sheet holds one year.
func GroupByYear(txs []core.Transaction, loc *time.Location) (years []int, byYear map[int][]core.Transaction) {
	if loc == nil {
		loc = time.UTC
	}
	byYear = map[int][]core.Transaction{}
	for _, tx := range txs {
		y := tx.CreatedAt.In(loc).Year()
		if _, ok := byYear[y]; !ok {
			years = append(years, y)
		}
		byYear[y] = append(byYear[y], tx)
	}
	return years, byYear
}
