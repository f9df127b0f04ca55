// Package sheets defines the Google Sheets ledger port and the row layout
// shared by its adapters.
package sheets

import (
	"context"

	"duka/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends transactions to the spreadsheet ledger. The
	// returned reference names the range written.
	LedgerWriter interface {
		AppendTransactions(ctx context.Context, txs []core.Transaction) (rowRef string, err error)
	}
)
