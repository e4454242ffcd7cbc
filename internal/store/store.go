// Package store defines the client contract for the remote tabular backing
// store. A "book" is a spreadsheet-like document addressed by an opaque
// reference; tables inside it are addressed by logical name.
//
// The store offers no transactions, no locking and no change notifications.
// Every failure is reported as a typed *Error; callers must treat a write
// whose outcome could not be confirmed as a write that did not happen.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ycchuang/sheetbook/internal/common"
)

// Logical table names inside a ledger book.
const (
	TableTransactions = "Transactions"
	TableRecurring    = "Recurring"
	TableSettings     = "Settings"
)

// Logical table names inside the directory book.
const (
	TableUsers    = "Users"
	TableBindings = "Book_Bindings"
)

// Row is a single loosely-typed sheet row: a slice of cell values in column
// order. Typed records are decoded from rows at the package boundaries above
// this one, with absent trailing columns filled with defaults.
type Row []string

// Cell returns the value at column i, or "" when the row is shorter. Sheets
// drop trailing empty cells, so short rows are normal.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Client executes read and write operations against named tables.
//
// Read returns an empty slice when the table does not exist, so downstream
// code can treat "no data yet" uniformly. rowIndex is zero-based over data
// rows; implementations account for the header row themselves. col is
// one-based, matching sheet column numbering.
type Client interface {
	Read(ctx context.Context, book, table string) ([]Row, error)
	Append(ctx context.Context, book, table string, row Row) error
	ReplaceAll(ctx context.Context, book, table string, rows []Row) error
	UpdateCell(ctx context.Context, book, table string, rowIndex, col int, value string) error
	DeleteRow(ctx context.Context, book, table string, rowIndex int) error
}

// Error is the typed failure returned by every Client method. It wraps one of
// the common taxonomy kinds (usually common.ErrStoreUnavailable) so that
// errors.Is works against both the taxonomy and this type.
type Error struct {
	Op    string
	Book  string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Book, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err in a store Error. A nil err is promoted to
// common.ErrStoreUnavailable so a store Error always matches the taxonomy.
func NewError(op, book, table string, err error) *Error {
	if err == nil {
		err = common.ErrStoreUnavailable
	}
	return &Error{Op: op, Book: book, Table: table, Err: err}
}

// Unavailable wraps cause as a store-unavailable Error, keeping the cause in
// the message chain.
func Unavailable(op, book, table string, cause error) *Error {
	return NewError(op, book, table, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, cause))
}

// IsUnavailable reports whether err is a store-unavailable failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, common.ErrStoreUnavailable)
}
