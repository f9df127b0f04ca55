package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"duka/internal/core"
	"duka/internal/sheets"
)

// SyncProcessorConfig holds configuration for the ledger sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often to look for unsynced transactions (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of transactions appended per cycle (default: 10)
	BatchSize int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// UnsyncedSource is implemented by *storage.SQLiteRepository.
type UnsyncedSource interface {
	ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, ids ...string) error
}

// SyncProcessor copies transactions that are missing from the Sheets ledger.
type SyncProcessor struct {
	source UnsyncedSource
	sheets sheets.LedgerWriter
	config SyncProcessorConfig

	// serializes batches so a wake-up never races the ticker
	batchMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}
}

func NewSyncProcessor(source UnsyncedSource, writer sheets.LedgerWriter, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		source: source,
		sheets: writer,
		config: config,
		wakeCh: make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wake asks the loop to run a batch now instead of waiting for the ticker.
func (p *SyncProcessor) Wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.drain(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		case <-p.wakeCh:
			p.drain(ctx)
		}
	}
}

// drain processes batches until nothing is left or a batch fails.
func (p *SyncProcessor) drain(ctx context.Context) {
	for {
		n, err := p.ProcessBatch(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Ledger sync batch failed", "error", err)
			return
		}
		if n < p.config.BatchSize {
			return
		}
	}
}

// ProcessBatch appends one batch of unsynced transactions to the ledger and
// marks them synced. It returns how many were synced.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	if p.source == nil || p.sheets == nil {
		return 0, errors.New("sync processor is not configured")
	}
	txs, err := p.source.ListUnsynced(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	ref, err := p.sheets.AppendTransactions(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("append to sheets: %w", err)
	}

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	if err := p.source.MarkSynced(ctx, ids...); err != nil {
		// The rows are in the sheet; the next cycle would append them again.
		return 0, fmt.Errorf("mark synced after append to %s: %w", ref, err)
	}

	slog.InfoContext(ctx, "Synced transactions to Google Sheets",
		"count", len(txs),
		"sheets_ref", ref)
	return len(txs), nil
}
