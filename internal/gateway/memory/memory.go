// Package memory is an in-process stand-in for the expense REST API.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/gateway"
)

// Store keeps expenses in insertion order and assigns increasing numeric IDs.
// IDs are never reused after a delete.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

// Ensure interface conformance
var _ gateway.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// NewFromFile seeds a store from a JSON array of expense records. Record IDs in the
// file are ignored. An empty path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.Expense
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for i, e := range seed {
		if _, err := s.Create(context.Background(), e); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, id core.ID) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, gateway.ErrNotFound)
	}
	return s.items[i], nil
}

func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = core.ID(strconv.FormatInt(s.nextID, 10))
	s.nextID++
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) Update(_ context.Context, id core.ID, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, gateway.ErrNotFound)
	}
	e.ID = id
	s.items[i] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete expense %s: %w", id, gateway.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	return s.filter(func(core.Expense) bool { return true }), nil
}

func (s *Store) ListByCategory(_ context.Context, category core.Category) ([]core.Expense, error) {
	return s.filter(func(e core.Expense) bool { return e.Category == category }), nil
}

// ListByDateRange includes both bounds.
func (s *Store) ListByDateRange(_ context.Context, start, end core.Date) ([]core.Expense, error) {
	return s.filter(func(e core.Expense) bool { return inRange(e.Date, start, end) }), nil
}

func (s *Store) ListByCategoryAndDateRange(_ context.Context, category core.Category, start, end core.Date) ([]core.Expense, error) {
	return s.filter(func(e core.Expense) bool {
		return e.Category == category && inRange(e.Date, start, end)
	}), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) filter(keep func(core.Expense) bool) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) indexOf(id core.ID) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func inRange(d, start, end core.Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}
