package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

func TestMemoryLedgerAppend(t *testing.T) {
	s := New()
	txs := []core.Transaction{
		{ID: "1", Kind: core.KindCash, Amount: decimal.NewFromInt(10), PaymentType: core.PaymentCash, CreatedAt: time.Now()},
		{ID: "2", Kind: core.KindCash, Amount: decimal.NewFromInt(-5), PaymentType: core.PaymentCard, CreatedAt: time.Now()},
	}

	ref, err := s.AppendTransactions(context.Background(), txs)
	if err != nil || ref != "mem:1-2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, _ = s.AppendTransactions(context.Background(), txs[:1])
	if ref != "mem:3-3" {
		t.Errorf("unexpected second ref %q", ref)
	}
	if got := len(s.Rows()); got != 3 {
		t.Errorf("rows = %d, want 3", got)
	}
}

func TestMemoryLedgerFailure(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.FailWith(boom)
	if _, err := s.AppendTransactions(context.Background(), []core.Transaction{{ID: "1"}}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(s.Rows()) != 0 {
		t.Errorf("failed append must not store rows")
	}
	s.FailWith(nil)
	if _, err := s.AppendTransactions(context.Background(), []core.Transaction{{ID: "1"}}); err != nil {
		t.Fatalf("cleared failure: %v", err)
	}
}
