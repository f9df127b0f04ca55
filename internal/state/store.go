// Package state is the application-state store shared by the service and
// HTTP layers. It holds the last loaded copy of every collection and
// answers read queries from it.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"duka/internal/cache"
	"duka/internal/core"
	"duka/internal/filter"
	"duka/internal/ports"
	"duka/internal/stats"
)

// Snapshot is an immutable copy of the loaded collections. Callers must not
// modify the slices.
type Snapshot struct {
	Products     []core.Product
	Transactions []core.Transaction
	Exchanges    []core.Exchange
	Debts        []core.Debt
	// Generation orders loads; Version changes only when the data does.
	Generation uint64
	Version    uint64
	LoadedAt   time.Time
}

// Reader is the read half of ports.Store.
type Reader interface {
	ListProducts(ctx context.Context) ([]core.Product, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListExchanges(ctx context.Context) ([]core.Exchange, error)
	ListDebts(ctx context.Context) ([]core.Debt, error)
}

var _ Reader = (ports.Store)(nil)

type Store struct {
	src    Reader
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	gen   atomic.Uint64
	group singleflight.Group
	views cache.Cache[[]core.Transaction]
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithViewCache sets the cache used for filtered transaction views.
func WithViewCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *Store) { s.views = c }
}

func New(src Reader, opts ...Option) *Store {
	s := &Store{
		src:    src,
		logger: slog.Default(),
		now:    time.Now,
		snap: Snapshot{
			Products:     []core.Product{},
			Transactions: []core.Transaction{},
			Exchanges:    []core.Exchange{},
			Debts:        []core.Debt{},
		},
	}
	for _, o := range opts {
		o(s)
	}
	if s.views == nil {
		s.views = cache.NewLRUCache[[]core.Transaction](64, time.Minute)
	}
	return s
}

// Refresh reloads every collection. Concurrent callers share one load.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, shared := s.group.Do("refresh", func() (any, error) {
		return nil, s.Reload(ctx)
	})
	if shared {
		s.logger.DebugContext(ctx, "Refresh coalesced with an in-flight load")
	}
	return err
}

// Reload starts a fresh load without joining one already in flight. Writers
// call it so the reload observes their change.
func (s *Store) Reload(ctx context.Context) error {
	gen := s.gen.Add(1)

	var (
		products  []core.Product
		txs       []core.Transaction
		exchanges []core.Exchange
		debts     []core.Debt
		errs      [4]error
	)
	var g errgroup.Group
	g.Go(func() error { products, errs[0] = s.src.ListProducts(ctx); return nil })
	g.Go(func() error { txs, errs[1] = s.src.ListTransactions(ctx); return nil })
	g.Go(func() error { exchanges, errs[2] = s.src.ListExchanges(ctx); return nil })
	g.Go(func() error { debts, errs[3] = s.src.ListDebts(ctx); return nil })
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.snap.Generation {
		s.logger.DebugContext(ctx, "Discarding stale refresh", "generation", gen, "current", s.snap.Generation)
		return nil
	}

	next := s.snap
	next.Generation = gen
	next.LoadedAt = s.now()
	if errs[0] == nil {
		next.Products = nonNil(products)
	}
	if errs[1] == nil {
		next.Transactions = nonNil(txs)
	}
	if errs[2] == nil {
		next.Exchanges = nonNil(exchanges)
	}
	if errs[3] == nil {
		next.Debts = nonNil(debts)
	}
	if !sameData(s.snap, next) {
		next.Version++
		s.views.Purge()
	}
	s.snap = next

	names := [4]core.EntityKind{core.EntityProduct, core.EntityTransaction, core.EntityExchange, core.EntityDebt}
	var failed []error
	for i, err := range errs {
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to load collection, keeping previous data",
				"collection", names[i], "error", err)
			failed = append(failed, fmt.Errorf("load %ss: %w", names[i], err))
		}
	}
	return errors.Join(failed...)
}

func sameData(a, b Snapshot) bool {
	return reflect.DeepEqual(a.Products, b.Products) &&
		reflect.DeepEqual(a.Transactions, b.Transactions) &&
		reflect.DeepEqual(a.Exchanges, b.Exchanges) &&
		reflect.DeepEqual(a.Debts, b.Debts)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Products() []core.Product { return s.Snapshot().Products }

func (s *Store) Transactions() []core.Transaction { return s.Snapshot().Transactions }

func (s *Store) Exchanges() []core.Exchange { return s.Snapshot().Exchanges }

func (s *Store) Debts() []core.Debt { return s.Snapshot().Debts }

// CashTransactions excludes stock movements.
func (s *Store) CashTransactions() []core.Transaction {
	return cashOnly(s.Transactions())
}

func cashOnly(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Kind == core.KindCash {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Balance() stats.Split {
	return stats.IncomeExpenseSplit(s.CashTransactions())
}

func (s *Store) Product(id string) (core.Product, error) {
	for _, p := range s.Products() {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Product{}, &core.NotFoundError{Kind: core.EntityProduct, ID: id}
}

func (s *Store) Debt(id string) (core.Debt, error) {
	for _, d := range s.Debts() {
		if d.ID == id {
			return d, nil
		}
	}
	return core.Debt{}, &core.NotFoundError{Kind: core.EntityDebt, ID: id}
}

// ProductMovements returns the stock movements of one product, oldest first.
func (s *Store) ProductMovements(id string) []core.Transaction {
	out := []core.Transaction{}
	for _, t := range s.Transactions() {
		if t.Kind == core.KindStock && t.ProductID == id {
			out = append(out, t)
		}
	}
	return out
}

// View returns the cash transaction history filtered and sorted by c. Results
// are cached per data version and date-range start.
func (s *Store) View(c filter.Criteria, now time.Time) []core.Transaction {
	snap := s.Snapshot()
	since := "-"
	if t, ok := c.Since(now); ok {
		since = t.Format(time.RFC3339Nano)
	}
	key := fmt.Sprintf("%d|%s|%s", snap.Version, since, c.Key())
	if v, ok := s.views.Get(key); ok {
		return v
	}
	v := filter.Apply(cashOnly(snap.Transactions), c, now)
	s.views.Set(key, v)
	return v
}

func (s *Store) Dashboard(now time.Time) stats.Dashboard {
	snap := s.Snapshot()
	return stats.BuildDashboard(snap.Products, snap.Transactions, snap.Debts, now)
}
