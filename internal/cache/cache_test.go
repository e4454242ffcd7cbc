package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycchuang/sheetbook/internal/store"
	"github.com/ycchuang/sheetbook/internal/store/memory"
)

// countingClient wraps the in-memory store and counts backing reads.
type countingClient struct {
	store.Client
	mu    sync.Mutex
	reads int
}

func (c *countingClient) Read(ctx context.Context, book, table string) ([]store.Row, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Client.Read(ctx, book, table)
}

func newTestCache(t *testing.T) (*Store, *countingClient, *memory.Store) {
	t.Helper()
	mem := memory.New()
	cc := &countingClient{Client: mem}
	return New(cc, TTLs{Short: time.Minute, Long: time.Hour}), cc, mem
}

func TestReadThroughCachesUntilTTL(t *testing.T) {
	c, cc, mem := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, "b1", store.TableTransactions, store.Row{"r1"}))

	for i := 0; i < 3; i++ {
		rows, err := c.Read(ctx, "b1", store.TableTransactions)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	}
	assert.Equal(t, 1, cc.reads)
}

func TestExpiredEntryIsRefetched(t *testing.T) {
	c, cc, mem := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, "b1", store.TableTransactions, store.Row{"r1"}))

	now := time.Now()
	c.now = func() time.Time { return now }
	_, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	assert.Equal(t, 2, cc.reads)
}

func TestWriteInvalidatesBook(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	rows, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// The write goes through the cache, so the next read must see it.
	require.NoError(t, c.Append(ctx, "b1", store.TableTransactions, store.Row{"new"}))

	rows, err = c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].Cell(0))
}

func TestExplicitInvalidateDropsStaleRead(t *testing.T) {
	c, _, mem := newTestCache(t)
	ctx := context.Background()

	_, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)

	// Out-of-band write to the backing store, then explicit invalidation.
	require.NoError(t, mem.Append(ctx, "b1", store.TableTransactions, store.Row{"oob"}))
	c.Invalidate("b1")

	rows, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "oob", rows[0].Cell(0))
}

func TestInvalidateIsScopedToBook(t *testing.T) {
	c, cc, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	_, err = c.Read(ctx, "b2", store.TableTransactions)
	require.NoError(t, err)

	c.Invalidate("b1")

	_, err = c.Read(ctx, "b2", store.TableTransactions)
	require.NoError(t, err)
	assert.Equal(t, 2, cc.reads, "b2 should still be served from cache")
}

func TestFailedWriteDoesNotInvalidate(t *testing.T) {
	c, cc, mem := newTestCache(t)
	ctx := context.Background()

	_, err := c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)

	mem.FailNextWrites(1)
	err = c.Append(ctx, "b1", store.TableTransactions, store.Row{"x"})
	require.Error(t, err)

	_, err = c.Read(ctx, "b1", store.TableTransactions)
	require.NoError(t, err)
	assert.Equal(t, 1, cc.reads, "cache entry should survive a failed write")
}

func TestConcurrentReadersAndInvalidate(t *testing.T) {
	c, _, mem := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, "b1", store.TableTransactions, store.Row{"r"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = c.Read(ctx, "b1", store.TableTransactions)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			c.Invalidate("b1")
		}
	}()
	wg.Wait()
}
