package storage

import (
	"context"
	"testing"

	"github.com/smartystreets/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(64)
	ctx := context.Background()

	require.NoError(t, store.WriteStorage(ctx, 10, []byte("hello"), nil))

	buf := make([]byte, 5)
	require.NoError(t, store.ReadStorage(ctx, 10, buf, nil))
	assert.Equal(t, "hello", string(buf))
}

func TestMemoryStoreOutOfRange(t *testing.T) {
	store := NewMemoryStore(4)
	err := store.WriteStorage(context.Background(), 2, []byte("too long"), nil)
	assert.Error(t, err)
}

func TestMemoryStoreSnapshotMatchesWrite(t *testing.T) {
	store := NewMemoryStore(8)
	require.NoError(t, store.WriteStorage(context.Background(), 0, []byte("abcd"), nil))

	if msg := assertions.ShouldEqual(store.Snapshot()[:4], []byte("abcd")); msg != "" {
		t.Errorf("snapshot mismatch: %s", msg)
	}
}
