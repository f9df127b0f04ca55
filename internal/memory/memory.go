// Package memory is an in-process ports.Store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"duka/internal/core"
	"duka/internal/ports"
)

type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	products  map[string]core.Product
	txs       map[string]core.Transaction
	exchanges map[string]core.Exchange
	debts     map[string]core.Debt

	// seq records insertion order so listings are stable on equal timestamps.
	seq  map[string]int
	next int
}

type Option func(*Store)

// WithClock overrides time.Now for timestamps the store assigns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		products:  map[string]core.Product{},
		txs:       map[string]core.Transaction{},
		exchanges: map[string]core.Exchange{},
		debts:     map[string]core.Debt{},
		seq:       map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromFile seeds a store from a JSON file, or from DefaultSeed when path
// is empty or missing.
func NewFromFile(path string, opts ...Option) (*Store, error) {
	seed, err := ports.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	s := New(opts...)
	if err := s.Load(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Load inserts every record of seed, assigning ids where missing.
func (s *Store) Load(seed ports.Seed) error {
	ctx := context.Background()
	for _, p := range seed.Products {
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	for _, tx := range seed.Transactions {
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction: %w", err)
		}
	}
	for _, ex := range seed.Exchanges {
		if _, err := s.CreateExchange(ctx, ex); err != nil {
			return fmt.Errorf("seed exchange: %w", err)
		}
	}
	for _, d := range seed.Debts {
		if _, err := s.CreateDebt(ctx, d); err != nil {
			return fmt.Errorf("seed debt %q: %w", d.Name, err)
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) ListProducts(context.Context) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.products, s.seq, func(a, b core.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }), nil
}

func (s *Store) CreateProduct(_ context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.assignID(p.ID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, id string, patch core.ProductPatch) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return core.Product{}, &core.NotFoundError{Kind: core.EntityProduct, ID: id}
	}
	p, err := patch.Apply(p)
	if err != nil {
		return core.Product{}, err
	}
	s.products[id] = p
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return &core.NotFoundError{Kind: core.EntityProduct, ID: id}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(id, delta)
}

func (s *Store) adjustLocked(id string, delta int) (core.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return core.Product{}, &core.NotFoundError{Kind: core.EntityProduct, ID: id}
	}
	if p.Quantity+delta < 0 {
		return p, core.NewValidationError("quantity", core.ReasonInsufficientStock,
			fmt.Sprintf("cannot remove %d units, only %d available", -delta, p.Quantity))
	}
	p.Quantity += delta
	s.products[id] = p
	return p, nil
}

func (s *Store) ListTransactions(context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.txs, s.seq, func(a, b core.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) }), nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTxLocked(tx)
}

func (s *Store) insertTxLocked(tx core.Transaction) (core.Transaction, error) {
	tx = tx.WithDefaults(s.now())
	if tx.Amount.IsZero() {
		return core.Transaction{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "amount cannot be zero")
	}
	tx.ID = s.assignID(tx.ID)
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return &core.NotFoundError{Kind: core.EntityTransaction, ID: id}
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) RecordMovement(_ context.Context, tx core.Transaction) (core.Transaction, core.Product, error) {
	tx.Kind = core.KindStock
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.adjustLocked(tx.ProductID, int(tx.Amount.IntPart()))
	if err != nil {
		return core.Transaction{}, core.Product{}, err
	}
	stored, err := s.insertTxLocked(tx)
	if err != nil {
		// undo the adjustment; the lock is still held
		p.Quantity -= int(tx.Amount.IntPart())
		s.products[p.ID] = p
		return core.Transaction{}, core.Product{}, err
	}
	return stored, p, nil
}

func (s *Store) ListExchanges(context.Context) ([]core.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.exchanges, s.seq, func(a, b core.Exchange) int { return a.Date.Compare(b.Date) }), nil
}

func (s *Store) CreateExchange(_ context.Context, ex core.Exchange) (core.Exchange, error) {
	if !ex.KSH.IsPositive() || !ex.USD.IsPositive() || !ex.Rate.IsPositive() {
		return core.Exchange{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "exchange amounts must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ex.ID = s.assignID(ex.ID)
	if ex.Date.IsZero() {
		ex.Date = s.now()
	}
	s.exchanges[ex.ID] = ex
	return ex, nil
}

func (s *Store) ListDebts(context.Context) ([]core.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.debts, s.seq, func(a, b core.Debt) int { return a.Date.Compare(b.Date) }), nil
}

func (s *Store) CreateDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	if d.Status == "" {
		d.Status = core.DebtPending
	}
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.assignID(d.ID)
	if d.Date.IsZero() {
		d.Date = s.now()
	}
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDebt(_ context.Context, id string, patch core.DebtPatch) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok {
		return core.Debt{}, &core.NotFoundError{Kind: core.EntityDebt, ID: id}
	}
	d, err := patch.Apply(d, s.now())
	if err != nil {
		return core.Debt{}, err
	}
	s.debts[id] = d
	return d, nil
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[id]; !ok {
		return &core.NotFoundError{Kind: core.EntityDebt, ID: id}
	}
	delete(s.debts, id)
	return nil
}

// assignID must be called with the write lock held.
func (s *Store) assignID(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := s.seq[id]; !ok {
		s.next++
		s.seq[id] = s.next
	}
	return id
}

// sorted returns the values of m ordered by cmp, then by insertion.
func sorted[T any](m map[string]T, seq map[string]int, cmp func(a, b T) int) []T {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int { return seq[a] - seq[b] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	slices.SortStableFunc(out, cmp)
	return out
}

var _ ports.Store = (*Store)(nil)
