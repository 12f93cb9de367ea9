package pagecache

import "context"

// BackingStore is the only client-implemented interface the controller
// requires (spec.md §6). Implementations live outside the core package —
// see the storage package for MemoryStore, FileStore and SQLStore.
type BackingStore interface {
	// ReadStorage fills buf (len(buf) bytes) with the page(s) covering
	// [address, address+len(buf)). metadata is an opaque handle the caller
	// passed to Read/Write, forwarded unchanged.
	ReadStorage(ctx context.Context, address DataAddress, buf []byte, metadata any) error

	// WriteStorage persists buf to [address, address+len(buf)).
	WriteStorage(ctx context.Context, address DataAddress, buf []byte, metadata any) error
}
