package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTripPerCodec(t *testing.T) {
	for _, name := range []string{"none", "snappy", "lz4"} {
		name := name
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "pages.bin")
			store, err := NewFileStore(path, 16, codec)
			require.NoError(t, err)
			defer store.Close()

			ctx := context.Background()
			page0 := make([]byte, 16)
			copy(page0, []byte("0123456789abcdef"))
			require.NoError(t, store.WriteStorage(ctx, 0, page0, nil))

			out := make([]byte, 16)
			require.NoError(t, store.ReadStorage(ctx, 0, out, nil))
			assert.Equal(t, page0, out)

			// Partial, in-page write/read.
			require.NoError(t, store.WriteStorage(ctx, 2, []byte("XY"), nil))
			partial := make([]byte, 2)
			require.NoError(t, store.ReadStorage(ctx, 2, partial, nil))
			assert.Equal(t, "XY", string(partial))
		})
	}
}

func TestFileStoreRejectsCrossPageSpan(t *testing.T) {
	codec, err := NewCodec("none")
	require.NoError(t, err)
	store, err := NewFileStore(filepath.Join(t.TempDir(), "p.bin"), 8, codec)
	require.NoError(t, err)
	defer store.Close()

	err = store.WriteStorage(context.Background(), 6, make([]byte, 4), nil)
	assert.Error(t, err)
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewCodec("zstd")
	assert.Error(t, err)
}
