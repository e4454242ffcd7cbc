// Package cache provides a read-through, TTL-bounded cache over a
// store.Client. The backing store sends no change notifications, so
// staleness is bounded only by the TTLs plus the explicit per-book
// invalidation that every successful write performs.
//
// The cache holds no authority over correctness: it is always safe to bypass
// it and read the store directly.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ycchuang/sheetbook/internal/store"
)

// TTLs assigns a lifetime per table class: a short one for transactional
// tables and a long one for slowly-changing reference data.
type TTLs struct {
	Short time.Duration
	Long  time.Duration
}

// DefaultTTLs mirrors the 5-minute data cache the system has always used,
// with an hour for reference tables.
func DefaultTTLs() TTLs {
	return TTLs{Short: 5 * time.Minute, Long: time.Hour}
}

// longLived tables change rarely; everything else gets the short TTL.
var longLived = map[string]bool{
	store.TableSettings: true,
	store.TableUsers:    true,
	store.TableBindings: true,
}

type entry struct {
	rows    []store.Row
	expires time.Time
}

// Store wraps a store.Client. Reads are served from cache while fresh;
// every successful mutating call invalidates the whole book before
// returning, so a caller never observes its own write as stale.
//
// Concurrent readers may both miss and both hit the backing store; no
// single-flight collapsing is attempted.
type Store struct {
	client store.Client
	ttls   TTLs
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

var _ store.Client = (*Store)(nil)

func New(client store.Client, ttls TTLs) *Store {
	return &Store{
		client:  client,
		ttls:    ttls,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func key(book, table string) string { return book + "\x00" + table }

func (s *Store) ttlFor(table string) time.Duration {
	if longLived[table] {
		return s.ttls.Long
	}
	return s.ttls.Short
}

// Read serves from cache when an entry exists and is younger than its TTL,
// otherwise reads through and populates the cache.
func (s *Store) Read(ctx context.Context, book, table string) ([]store.Row, error) {
	k := key(book, table)

	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	if ok && s.now().Before(e.expires) {
		return e.rows, nil
	}

	rows, err := s.client.Read(ctx, book, table)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries[k] = entry{rows: rows, expires: s.now().Add(s.ttlFor(table))}
	s.mu.Unlock()
	return rows, nil
}

// Invalidate drops every cached entry for the given book reference.
func (s *Store) Invalidate(book string) {
	prefix := book + "\x00"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.entries, k)
		}
	}
}

func (s *Store) Append(ctx context.Context, book, table string, row store.Row) error {
	if err := s.client.Append(ctx, book, table, row); err != nil {
		return err
	}
	s.Invalidate(book)
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, book, table string, rows []store.Row) error {
	if err := s.client.ReplaceAll(ctx, book, table, rows); err != nil {
		return err
	}
	s.Invalidate(book)
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, book, table string, rowIndex, col int, value string) error {
	if err := s.client.UpdateCell(ctx, book, table, rowIndex, col, value); err != nil {
		return err
	}
	s.Invalidate(book)
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, book, table string, rowIndex int) error {
	if err := s.client.DeleteRow(ctx, book, table, rowIndex); err != nil {
		return err
	}
	s.Invalidate(book)
	return nil
}
