// Package memory is an in-process ledger writer used when Google Sheets is
// not configured, and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"duka/internal/core"
	ports "duka/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
	err  error
	loc  *time.Location
}

var _ ports.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{loc: time.UTC}
}

// FailWith makes every following append return err. nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// AppendTransactions stores the rows and returns a synthetic row reference.
func (s *Store) AppendTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	first := len(s.rows) + 1
	for _, tx := range txs {
		s.rows = append(s.rows, ports.Row(tx, s.loc))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of every appended row.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
