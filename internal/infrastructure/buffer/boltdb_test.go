package buffer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openChannel(t *testing.T, opts Options, name string) (*Store, *Channel) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "channels.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ch, err := store.Channel(name)
	require.NoError(t, err)
	return store, ch
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestChannelIsFIFO(t *testing.T) {
	_, ch := openChannel(t, Options{}, "banking.persistence.inbound.channel")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, ch.Enqueue(Item{ID: id, Key: "k"}))
	}

	items, err := ch.GetBatch(10, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(items))

	require.NoError(t, ch.Remove(items[0]))
	size, err := ch.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestDeferredItemBlocksItsKey(t *testing.T) {
	_, ch := openChannel(t, Options{}, "inbound")
	now := time.Now()
	require.NoError(t, ch.Enqueue(Item{ID: "k1-first", Key: "k1"}))
	require.NoError(t, ch.Enqueue(Item{ID: "k2-first", Key: "k2"}))
	require.NoError(t, ch.Enqueue(Item{ID: "k1-second", Key: "k1"}))

	items, err := ch.GetBatch(10, now)
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	first.Retries++
	first.NotBefore = now.Add(time.Minute)
	require.NoError(t, ch.Requeue(first))

	items, err = ch.GetBatch(10, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"k2-first"}, ids(items))

	items, err = ch.GetBatch(10, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1-first", "k2-first", "k1-second"}, ids(items))
	assert.Equal(t, 1, items[0].Retries)
}

func TestMoveToDeadletter(t *testing.T) {
	store, inbound := openChannel(t, Options{}, "inbound")
	dead, err := store.Channel("deadletter")
	require.NoError(t, err)

	require.NoError(t, inbound.Enqueue(Item{ID: "x", Key: "k", Name: "bank-account.account.created"}))
	items, err := inbound.GetBatch(1, time.Now())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	item.LastError = "boom"
	require.NoError(t, inbound.MoveTo(item, dead))

	size, err := inbound.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	moved, err := dead.GetBatch(10, time.Now())
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "boom", moved[0].LastError)
	assert.Equal(t, "bank-account.account.created", moved[0].Name)
}

func TestEnqueueRespectsMaxSize(t *testing.T) {
	_, ch := openChannel(t, Options{MaxSize: 1}, "outbound")
	require.NoError(t, ch.Enqueue(Item{Key: "k"}))
	assert.ErrorIs(t, ch.Enqueue(Item{Key: "k"}), ErrChannelFull)
}

func TestCleanup(t *testing.T) {
	_, ch := openChannel(t, Options{}, "deadletter")
	now := time.Now()
	require.NoError(t, ch.Enqueue(Item{ID: "old-1", Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, ch.Enqueue(Item{ID: "fresh", Timestamp: now}))
	require.NoError(t, ch.Enqueue(Item{ID: "old-2", Timestamp: now.Add(-25 * time.Hour)}))

	removed, err := ch.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	items, err := ch.GetBatch(10, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids(items))
}

func TestRequeueNeedsStoredItem(t *testing.T) {
	_, ch := openChannel(t, Options{}, "inbound")
	assert.Error(t, ch.Requeue(Item{ID: "never-read"}))
}
