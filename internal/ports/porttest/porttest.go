// Package porttest is a behavioural test suite every ports.Store backend
// must pass.
package porttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/ports"
)

// Run exercises open() against the persistence contract. open must return an
// empty store.
func Run(t *testing.T, open func(t *testing.T) ports.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s ports.Store)
	}{
		{"EmptyListsAreNotNil", testEmptyLists},
		{"ProductLifecycle", testProductLifecycle},
		{"AdjustStock", testAdjustStock},
		{"AdjustStockConcurrent", testAdjustStockConcurrent},
		{"RecordMovement", testRecordMovement},
		{"TransactionDefaults", testTransactionDefaults},
		{"ExchangeCreateList", testExchanges},
		{"DebtLifecycle", testDebtLifecycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testEmptyLists(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ps, err := s.ListProducts(ctx)
	if err != nil || ps == nil {
		t.Fatalf("ListProducts = %v, %v; want empty non-nil", ps, err)
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil || txs == nil {
		t.Fatalf("ListTransactions = %v, %v; want empty non-nil", txs, err)
	}
	exs, err := s.ListExchanges(ctx)
	if err != nil || exs == nil {
		t.Fatalf("ListExchanges = %v, %v; want empty non-nil", exs, err)
	}
	ds, err := s.ListDebts(ctx)
	if err != nil || ds == nil {
		t.Fatalf("ListDebts = %v, %v; want empty non-nil", ds, err)
	}
}

func testProductLifecycle(t *testing.T, s ports.Store) {
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, core.Product{Name: "Sugar", Unit: "kg", Quantity: 100})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("adapter must assign id and timestamp: %+v", p)
	}
	if _, err := s.CreateProduct(ctx, core.Product{Name: "", Unit: "kg"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("blank name: expected validation error, got %v", err)
	}

	name := "Brown Sugar"
	up, err := s.UpdateProduct(ctx, p.ID, core.ProductPatch{Name: &name})
	if err != nil || up.Name != name || up.Quantity != 100 {
		t.Fatalf("UpdateProduct = %+v, %v", up, err)
	}
	if _, err := s.UpdateProduct(ctx, "missing", core.ProductPatch{Name: &name}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update missing: expected not found, got %v", err)
	}

	ps, _ := s.ListProducts(ctx)
	if len(ps) != 1 || ps[0].Name != name {
		t.Fatalf("ListProducts = %+v", ps)
	}

	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if err := s.DeleteProduct(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func testAdjustStock(t *testing.T, s ports.Store) {
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, core.Product{Name: "Rice", Unit: "kg", Quantity: 10})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	got, err := s.AdjustStock(ctx, p.ID, -10)
	if err != nil || got.Quantity != 0 {
		t.Fatalf("removing all stock = %+v, %v", got, err)
	}
	if _, err := s.AdjustStock(ctx, p.ID, -1); !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	got, err = s.AdjustStock(ctx, p.ID, 25)
	if err != nil || got.Quantity != 25 {
		t.Fatalf("stock in = %+v, %v", got, err)
	}
	if _, err := s.AdjustStock(ctx, "missing", 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing product: expected not found, got %v", err)
	}
	ps, _ := s.ListProducts(ctx)
	if len(ps) != 1 || ps[0].Quantity != 25 {
		t.Fatalf("rejected adjustment must leave product unchanged: %+v", ps)
	}
}

func testAdjustStockConcurrent(t *testing.T, s ports.Store) {
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, core.Product{Name: "Flour", Unit: "kg", Quantity: 10})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustStock(ctx, p.ID, -1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 10 {
		t.Fatalf("expected exactly 10 successful removals, got %d", ok)
	}
	ps, _ := s.ListProducts(ctx)
	if ps[0].Quantity != 0 {
		t.Fatalf("quantity went to %d", ps[0].Quantity)
	}
}

func testRecordMovement(t *testing.T, s ports.Store) {
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, core.Product{Name: "Salt", Unit: "kg", Quantity: 5})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	tx, got, err := s.RecordMovement(ctx, core.Transaction{
		ProductID: p.ID, Amount: decimal.NewFromInt(-3), Description: "sold",
	})
	if err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	if got.Quantity != 2 || tx.Kind != core.KindStock || tx.Type != core.MovementOut || tx.ID == "" {
		t.Fatalf("unexpected movement result tx=%+v product=%+v", tx, got)
	}

	_, _, err = s.RecordMovement(ctx, core.Transaction{
		ProductID: p.ID, Amount: decimal.NewFromInt(-3), Description: "sold",
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("failed movement must not store a transaction, got %d", len(txs))
	}
	ps, _ := s.ListProducts(ctx)
	if ps[0].Quantity != 2 {
		t.Fatalf("failed movement changed quantity to %d", ps[0].Quantity)
	}

	if _, _, err := s.RecordMovement(ctx, core.Transaction{ProductID: "missing", Amount: decimal.NewFromInt(1)}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing product: expected not found, got %v", err)
	}
}

func testTransactionDefaults(t *testing.T, s ports.Store) {
	ctx := context.Background()
	tx, err := s.CreateTransaction(ctx, core.Transaction{Amount: decimal.RequireFromString("250.50"), PaymentType: core.PaymentMPesa})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == "" || tx.Kind != core.KindCash || tx.Description != "Cash in via M-Pesa" || tx.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", tx)
	}
	if _, err := s.CreateTransaction(ctx, core.Transaction{Amount: decimal.Zero}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}

	txs, err := s.ListTransactions(ctx)
	if err != nil || len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("ListTransactions = %+v, %v", txs, err)
	}
	if txs[0].PaymentType != core.PaymentMPesa {
		t.Fatalf("payment type lost: %+v", txs[0])
	}

	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}

func testExchanges(t *testing.T, s ports.Store) {
	ctx := context.Background()
	ex, err := core.NewExchange(decimal.NewFromInt(15000), decimal.NewFromInt(150), core.KSHToUSD, time.Time{})
	if err != nil {
		t.Fatalf("NewExchange: %v", err)
	}
	stored, err := s.CreateExchange(ctx, ex)
	if err != nil {
		t.Fatalf("CreateExchange: %v", err)
	}
	if stored.ID == "" || stored.Date.IsZero() {
		t.Fatalf("adapter must assign id and date: %+v", stored)
	}
	exs, _ := s.ListExchanges(ctx)
	if len(exs) != 1 || !exs[0].USD.Equal(decimal.NewFromInt(100)) || exs[0].Direction != core.KSHToUSD {
		t.Fatalf("ListExchanges = %+v", exs)
	}
}

func testDebtLifecycle(t *testing.T, s ports.Store) {
	ctx := context.Background()
	d, err := s.CreateDebt(ctx, core.Debt{Name: "Wanjiru", Phone: "0712", Amount: decimal.NewFromInt(500), Description: "flour"})
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	if d.Status != core.DebtPending || d.ID == "" || d.Date.IsZero() {
		t.Fatalf("unexpected new debt %+v", d)
	}

	paid := core.DebtPaid
	got, err := s.UpdateDebt(ctx, d.ID, core.DebtPatch{Status: &paid})
	if err != nil || got.Status != core.DebtPaid || got.PaidAt == nil {
		t.Fatalf("mark paid = %+v, %v", got, err)
	}
	if _, err := s.UpdateDebt(ctx, d.ID, core.DebtPatch{Status: &paid}); !errors.Is(err, core.ErrDebtAlreadyPaid) {
		t.Fatalf("second mark paid: expected ErrDebtAlreadyPaid, got %v", err)
	}
	if _, err := s.UpdateDebt(ctx, "missing", core.DebtPatch{Status: &paid}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing debt: expected not found, got %v", err)
	}

	ds, _ := s.ListDebts(ctx)
	if len(ds) != 1 || ds[0].Status != core.DebtPaid || ds[0].PaidAt == nil {
		t.Fatalf("ListDebts = %+v", ds)
	}
	if err := s.DeleteDebt(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDebt: %v", err)
	}
	if err := s.DeleteDebt(ctx, d.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}
