// Package memory is an in-process sheets.Mirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"zetafin/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
	pos  map[core.ID]int
}

func New() *Store {
	return &Store{pos: make(map[core.ID]int)}
}

// Upsert stores tx and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	id := tx.ID.Normalize()
	if id == "" {
		return "", fmt.Errorf("upsert: %w", core.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.pos[id]; ok {
		s.rows[i] = tx
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, tx)
	s.pos[id] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Remove blanks the row so later references stay stable.
func (s *Store) Remove(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.pos[id.Normalize()]; ok {
		s.rows[i] = core.Transaction{}
		delete(s.pos, id.Normalize())
	}
	return nil
}

// Rows returns the live rows in insertion order.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.pos))
	for _, tx := range s.rows {
		if !tx.ID.IsZero() {
			out = append(out, tx)
		}
	}
	return out
}
