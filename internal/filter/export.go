package filter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"duka/internal/core"
)

var csvHeader = []string{"id", "created_at", "kind", "channel", "description", "notes", "amount"}

// WriteCSV writes a transaction view, one row per record, in view order.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txs {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Format(time.RFC3339)
		}
		row := []string{t.ID, created, string(t.Kind), t.Channel(), t.Description, t.Notes, t.Amount.StringFixed(2)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
