// Package memory provides an in-memory store.Client used by tests and local
// experiments. It mirrors the remote store's semantics: no transactions, no
// ordering across writers, reads of missing tables return empty.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/store"
)

// Store is a mutex-guarded map of (book, table) to rows.
type Store struct {
	mu     sync.Mutex
	tables map[string][]store.Row

	// FailNext, when set, makes the next n mutating calls fail with a
	// store-unavailable error. Used to exercise partial-failure paths.
	failNext int
}

var _ store.Client = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][]store.Row)}
}

func key(book, table string) string { return book + "\x00" + table }

// FailNextWrites arms failure injection for the next n mutating operations.
func (s *Store) FailNextWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Store) writeAllowed(op, book, table string) error {
	if s.failNext > 0 {
		s.failNext--
		return store.Unavailable(op, book, table, errors.New("injected failure"))
	}
	return nil
}

func (s *Store) Read(ctx context.Context, book, table string) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Unavailable("read", book, table, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.tables[key(book, table)]
	out := make([]store.Row, len(src))
	for i, r := range src {
		out[i] = append(store.Row(nil), r...)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, book, table string, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAllowed("append", book, table); err != nil {
		return err
	}
	k := key(book, table)
	s.tables[k] = append(s.tables[k], append(store.Row(nil), row...))
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, book, table string, rows []store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAllowed("replaceAll", book, table); err != nil {
		return err
	}
	cp := make([]store.Row, len(rows))
	for i, r := range rows {
		cp[i] = append(store.Row(nil), r...)
	}
	s.tables[key(book, table)] = cp
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, book, table string, rowIndex, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAllowed("updateCell", book, table); err != nil {
		return err
	}
	rows := s.tables[key(book, table)]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return store.NewError("updateCell", book, table,
			fmt.Errorf("%w: row %d", common.ErrNotFound, rowIndex))
	}
	row := rows[rowIndex]
	for len(row) < col {
		row = append(row, "")
	}
	row[col-1] = value
	rows[rowIndex] = row
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, book, table string, rowIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAllowed("deleteRow", book, table); err != nil {
		return err
	}
	k := key(book, table)
	rows := s.tables[k]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return store.NewError("deleteRow", book, table,
			fmt.Errorf("%w: row %d", common.ErrNotFound, rowIndex))
	}
	s.tables[k] = append(rows[:rowIndex:rowIndex], rows[rowIndex+1:]...)
	return nil
}
