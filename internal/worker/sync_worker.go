package worker

import (
	"context"
	"fmt"
	"log/slog"

	"duka/internal/amqp"
)

// Syncer is implemented by *services.SyncProcessor.
type Syncer interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// SyncWorker reacts to ledger events by copying new transactions to
// Google Sheets.
type SyncWorker struct {
	sync Syncer
	// startup drains at most this many batches
	maxStartupBatches int
}

func NewSyncWorker(sync Syncer, maxStartupBatches int) *SyncWorker {
	if maxStartupBatches <= 0 {
		maxStartupBatches = 50
	}
	return &SyncWorker{sync: sync, maxStartupBatches: maxStartupBatches}
}

// HandleEvent processes a single ledger event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"entity_id", ev.EntityID,
		"kind", ev.Kind)

	switch ev.Type {
	case amqp.EventTransactionRecorded:
		n, err := w.sync.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("sync transaction %s: %w", ev.EntityID, err)
		}
		slog.InfoContext(ctx, "Ledger event synced", "entity_id", ev.EntityID, "synced", n)
	default:
		// Debts, exchanges and product deletions are not part of the
		// Sheets ledger.
		slog.DebugContext(ctx, "Ledger event needs no sync", "type", ev.Type)
	}
	return nil
}

// StartupSyncCheck syncs transactions left over from worker downtime or
// lost messages.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	total := 0
	for i := 0; i < w.maxStartupBatches; i++ {
		n, err := w.sync.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("startup sync after %d transactions: %w", total, err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", total)
	return nil
}
