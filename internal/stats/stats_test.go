package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cashTx(id, amount string, pt core.PaymentType, at time.Time) core.Transaction {
	return core.Transaction{ID: id, Kind: core.KindCash, Amount: d(amount), PaymentType: pt, CreatedAt: at}
}

func TestTodayStats(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 5, 9, 23, 59, 0, 0, time.UTC)

	t.Run("no records", func(t *testing.T) {
		got := TodayStats(nil, now)
		if got.Count != 0 || !got.Total.IsZero() || got.MostUsedPaymentType != "None" {
			t.Fatalf("unexpected empty stats %+v", got)
		}
	})

	t.Run("only today counts", func(t *testing.T) {
		txs := []core.Transaction{
			cashTx("1", "500", core.PaymentCash, morning),
			cashTx("2", "-200", core.PaymentCard, morning.Add(time.Hour)),
			cashTx("3", "1000", core.PaymentMPesa, yesterday),
			{ID: "4", Kind: core.KindCash, Amount: d("50"), PaymentType: core.PaymentCash},
		}
		got := TodayStats(txs, now)
		if got.Count != 2 || !got.Total.Equal(d("300")) {
			t.Fatalf("unexpected stats %+v", got)
		}
	})

	t.Run("tie goes to first reached in creation order", func(t *testing.T) {
		// Input order lists Card first, but Cash was created first.
		txs := []core.Transaction{
			cashTx("2", "10", core.PaymentCard, morning.Add(2*time.Minute)),
			cashTx("1", "10", core.PaymentCash, morning),
		}
		if got := TodayStats(txs, now); got.MostUsedPaymentType != "Cash" {
			t.Fatalf("expected Cash, got %q", got.MostUsedPaymentType)
		}
	})

	t.Run("most used wins over earlier single", func(t *testing.T) {
		txs := []core.Transaction{
			cashTx("1", "10", core.PaymentCash, morning),
			cashTx("2", "10", core.PaymentMPesa, morning.Add(time.Minute)),
			cashTx("3", "10", core.PaymentMPesa, morning.Add(2*time.Minute)),
		}
		if got := TodayStats(txs, now); got.MostUsedPaymentType != "M-Pesa" {
			t.Fatalf("expected M-Pesa, got %q", got.MostUsedPaymentType)
		}
	})

	t.Run("calendar date in now's location", func(t *testing.T) {
		nairobi := time.FixedZone("EAT", 3*60*60)
		localNow := time.Date(2026, 5, 10, 1, 0, 0, 0, nairobi)
		// 22:30 UTC on the 9th is 01:30 on the 10th in Nairobi.
		txs := []core.Transaction{cashTx("1", "10", core.PaymentCash, time.Date(2026, 5, 9, 22, 30, 0, 0, time.UTC))}
		if got := TodayStats(txs, localNow); got.Count != 1 {
			t.Fatalf("expected record to fall on local today, got %+v", got)
		}
	})
}

func TestIncomeExpenseSplit(t *testing.T) {
	t0 := time.Now()
	txs := []core.Transaction{
		cashTx("1", "500", core.PaymentCash, t0),
		cashTx("2", "-200", core.PaymentCard, t0),
	}
	got := IncomeExpenseSplit(txs)
	if !got.TotalIncome.Equal(d("500")) || !got.TotalExpense.Equal(d("200")) {
		t.Fatalf("unexpected split %+v", got)
	}
	if !got.TotalIncome.Sub(got.TotalExpense).Equal(NetChange(got.TotalIncome, got.TotalExpense)) {
		t.Fatalf("split and net change disagree")
	}
	if !got.Net().Equal(d("300")) {
		t.Fatalf("expected net 300, got %s", got.Net())
	}

	empty := IncomeExpenseSplit(nil)
	if !empty.TotalIncome.IsZero() || !empty.TotalExpense.IsZero() {
		t.Fatalf("expected zero split, got %+v", empty)
	}
}

func TestStockStatus(t *testing.T) {
	cases := []struct {
		q    int
		want StockLevel
	}{
		{0, OutOfStock},
		{1, LowStock},
		{9, LowStock},
		{10, InStock},
		{49, InStock},
		{50, HighStock},
		{500, HighStock},
	}
	for _, tc := range cases {
		if got := StockStatus(tc.q); got != tc.want {
			t.Errorf("StockStatus(%d) = %s, want %s", tc.q, got, tc.want)
		}
	}
}

func TestNetChangeKeepsSign(t *testing.T) {
	if got := NetChange(d("100"), d("250")); !got.Equal(d("-150")) {
		t.Fatalf("expected -150, got %s", got)
	}
}

func TestMovementTotals(t *testing.T) {
	txs := []core.Transaction{
		{Kind: core.KindStock, ProductID: "p1", Type: core.MovementIn, Amount: d("20")},
		{Kind: core.KindStock, ProductID: "p1", Type: core.MovementOut, Amount: d("-5")},
		{Kind: core.KindStock, ProductID: "p2", Type: core.MovementIn, Amount: d("7")},
		{Kind: core.KindCash, Amount: d("100"), PaymentType: core.PaymentCash},
	}
	got := MovementTotals(txs, "p1")
	if got != (Movement{TotalIn: 20, TotalOut: 5, Net: 15, Count: 2}) {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestPendingDebtTotalAndLowStock(t *testing.T) {
	debts := []core.Debt{
		{Amount: d("100"), Status: core.DebtPending},
		{Amount: d("250.50"), Status: core.DebtPending},
		{Amount: d("999"), Status: core.DebtPaid},
	}
	if got := PendingDebtTotal(debts); !got.Equal(d("350.50")) {
		t.Fatalf("expected 350.50, got %s", got)
	}

	products := []core.Product{
		{ID: "1", Quantity: 0},
		{ID: "2", Quantity: 60},
		{ID: "3", Quantity: 4},
	}
	low := LowStockProducts(products)
	if len(low) != 2 || low[0].ID != "1" || low[1].ID != "3" {
		t.Fatalf("unexpected low stock list %+v", low)
	}
}

func TestBuildDashboardIgnoresStockForCash(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		cashTx("1", "500", core.PaymentCash, now),
		{ID: "2", Kind: core.KindStock, Type: core.MovementIn, Amount: d("40"), CreatedAt: now},
	}
	got := BuildDashboard([]core.Product{{ID: "p", Quantity: 3}}, txs, nil, now)
	if !got.Balance.Equal(d("500")) || got.Today.Count != 1 || len(got.LowStock) != 1 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
}
