package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "sheetbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadMissingTableIsEmpty(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Read(context.Background(), "book1", store.TableTransactions)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendAndReadPreserveOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "book1", store.TableTransactions, store.Row{"2024-02-01", "Expense"}))
	require.NoError(t, s.Append(ctx, "book1", store.TableTransactions, store.Row{"2024-02-02", "Income"}))

	rows, err := s.Read(ctx, "book1", store.TableTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-02-01", rows[0].Cell(0))
	assert.Equal(t, "2024-02-02", rows[1].Cell(0))
}

func TestUpdateCellExtendsShortRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "book1", store.TableRecurring, store.Row{"5", "Expense"}))
	require.NoError(t, s.UpdateCell(ctx, "book1", store.TableRecurring, 0, 9, "2024-02"))

	rows, err := s.Read(ctx, "book1", store.TableRecurring)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", rows[0].Cell(8))
}

func TestUpdateCellOutOfRange(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateCell(context.Background(), "book1", store.TableRecurring, 3, 9, "x")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteRowShiftsIndexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, "book1", store.TableRecurring, store.Row{v}))
	}
	require.NoError(t, s.DeleteRow(ctx, "book1", store.TableRecurring, 1))

	rows, err := s.Read(ctx, "book1", store.TableRecurring)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Cell(0))
	assert.Equal(t, "c", rows[1].Cell(0))

	// Appending after a delete must not collide with remaining positions.
	require.NoError(t, s.Append(ctx, "book1", store.TableRecurring, store.Row{"d"}))
	rows, err = s.Read(ctx, "book1", store.TableRecurring)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReplaceAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "book1", store.TableSettings, store.Row{"old"}))
	require.NoError(t, s.ReplaceAll(ctx, "book1", store.TableSettings, []store.Row{{"x"}, {"y"}}))

	rows, err := s.Read(ctx, "book1", store.TableSettings)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "x", rows[0].Cell(0))

	// Books are isolated from each other.
	other, err := s.Read(ctx, "book2", store.TableSettings)
	require.NoError(t, err)
	assert.Empty(t, other)
}
