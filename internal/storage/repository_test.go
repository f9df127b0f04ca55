package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/ports"
	"duka/internal/ports/porttest"
)

var _ ports.Store = (*SQLiteRepository)(nil)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "duka.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	porttest.Run(t, func(t *testing.T) ports.Store { return openTestRepo(t) })
}

func TestMigrationsShareConnectionAndAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duka.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if repo.SchemaVersion() != 1 {
			t.Fatalf("schema version = %d, want 1", repo.SchemaVersion())
		}
		// The migration must leave the connection usable.
		if _, err := repo.ListProducts(context.Background()); err != nil {
			t.Fatalf("ListProducts after migration: %v", err)
		}
		repo.Close()
	}
}

func TestSeedIfEmpty(t *testing.T) {
	repo := openTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	if err := repo.SeedIfEmpty(ctx, ports.DefaultSeed()); err != nil {
		t.Fatalf("SeedIfEmpty: %v", err)
	}
	if err := repo.SeedIfEmpty(ctx, ports.DefaultSeed()); err != nil {
		t.Fatalf("second SeedIfEmpty: %v", err)
	}
	ps, err := repo.ListProducts(ctx)
	if err != nil || len(ps) != 5 {
		t.Fatalf("expected 5 seeded products once, got %d (err=%v)", len(ps), err)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duka.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	created := time.Date(2026, 5, 1, 10, 30, 0, 123, time.UTC)
	if _, err := repo.CreateTransaction(ctx, core.Transaction{
		Amount: decimal.RequireFromString("-99.95"), PaymentType: core.PaymentCard, Notes: "fuel", CreatedAt: created,
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	txs, err := repo.ListTransactions(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("ListTransactions = %v, %v", txs, err)
	}
	got := txs[0]
	if !got.Amount.Equal(decimal.RequireFromString("-99.95")) || !got.CreatedAt.Equal(created) || got.Notes != "fuel" {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.Description != "Cash out via Card" {
		t.Fatalf("unexpected description %q", got.Description)
	}
}

func TestListTransactionsOrderedByCreatedAt(t *testing.T) {
	repo := openTestRepo(t)
	defer repo.Close()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	// Sub-second timestamps must not sort before whole seconds.
	for _, offset := range []time.Duration{2 * time.Second, 500 * time.Millisecond, time.Second} {
		if _, err := repo.CreateTransaction(ctx, core.Transaction{Amount: decimal.NewFromInt(1), CreatedAt: base.Add(offset)}); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	txs, _ := repo.ListTransactions(ctx)
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.Before(txs[i-1].CreatedAt) {
			t.Fatalf("transactions out of order: %v then %v", txs[i-1].CreatedAt, txs[i].CreatedAt)
		}
	}
}

func TestUnsyncedAndMarkSynced(t *testing.T) {
	repo := openTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		tx, err := repo.CreateTransaction(ctx, core.Transaction{Amount: decimal.NewFromInt(int64(i * 100))})
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		ids = append(ids, tx.ID)
	}

	pending, err := repo.ListUnsynced(ctx, 2)
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListUnsynced(2) = %d, %v", len(pending), err)
	}
	if err := repo.MarkSynced(ctx, ids[0], ids[1]); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	pending, _ = repo.ListUnsynced(ctx, 10)
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only the third transaction pending, got %+v", pending)
	}
	if err := repo.MarkSynced(ctx); err != nil {
		t.Fatalf("MarkSynced with no ids: %v", err)
	}
}

func TestDebtPaidAtRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	defer repo.Close()
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	d, err := repo.CreateDebt(ctx, core.Debt{Name: "Kamau", Amount: decimal.RequireFromString("1200.5")})
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	paid := core.DebtPaid
	if _, err := repo.UpdateDebt(ctx, d.ID, core.DebtPatch{Status: &paid}); err != nil {
		t.Fatalf("UpdateDebt: %v", err)
	}
	ds, _ := repo.ListDebts(ctx)
	if len(ds) != 1 || ds[0].PaidAt == nil || !ds[0].PaidAt.Equal(now) || !ds[0].Amount.Equal(decimal.RequireFromString("1200.5")) {
		t.Fatalf("unexpected debt after reload %+v", ds)
	}
}
