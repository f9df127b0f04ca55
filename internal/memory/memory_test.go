package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"duka/internal/ports"
	"duka/internal/ports/porttest"
)

func TestStoreContract(t *testing.T) {
	porttest.Run(t, func(t *testing.T) ports.Store { return New() })
}

func TestNewFromFileDefaults(t *testing.T) {
	s, err := NewFromFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ps, _ := s.ListProducts(context.Background())
	if len(ps) != 5 {
		t.Fatalf("expected default catalogue, got %d products", len(ps))
	}
	names := map[string]int{}
	for _, p := range ps {
		names[p.Name] = p.Quantity
	}
	if names["Rice"] != 150 || names["Cooking Oil"] != 50 {
		t.Fatalf("unexpected catalogue %v", names)
	}
}

func TestNewFromFileSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{
		"products": [{"id": "p1", "name": "Tea", "unit": "packets", "quantity": 4}],
		"transactions": [{"amount": 120.5, "paymentType": "Card"}],
		"debts": [{"name": "Achieng", "amount": 300}]
	}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	fixed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s, err := NewFromFile(path, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ctx := context.Background()
	ps, _ := s.ListProducts(ctx)
	if len(ps) != 1 || ps[0].ID != "p1" || !ps[0].CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected products %+v", ps)
	}
	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 1 || txs[0].Description != "Cash in via Card" {
		t.Fatalf("unexpected transactions %+v", txs)
	}
	ds, _ := s.ListDebts(ctx)
	if len(ds) != 1 || ds[0].Status != "pending" {
		t.Fatalf("unexpected debts %+v", ds)
	}
}

func TestNewFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestListOrderIsStable(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	if err := s.Load(ports.DefaultSeed()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := 0; i < 5; i++ {
		ps, _ := s.ListProducts(context.Background())
		if ps[0].Name != "Sugar" || ps[4].Name != "Salt" {
			t.Fatalf("listing order changed: %v", ps)
		}
	}
}
