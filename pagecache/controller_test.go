package pagecache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a flat byte-addressed in-memory backing store used only by
// this package's own tests; the real pluggable stores live in the storage
// package.
type fakeStore struct {
	mu       sync.Mutex
	data     map[DataAddress]byte
	failRead bool
	failWrite bool
	hold     chan struct{} // if non-nil, writes/reads block until closed

	readCalls    int
	lastReadAddr DataAddress
	lastReadSize int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[DataAddress]byte)}
}

func (f *fakeStore) ReadStorage(ctx context.Context, address DataAddress, buf []byte, metadata any) error {
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	f.lastReadAddr = address
	f.lastReadSize = len(buf)
	if f.failRead {
		return assert.AnError
	}
	for i := range buf {
		buf[i] = f.data[address+DataAddress(i)]
	}
	return nil
}

func (f *fakeStore) WriteStorage(ctx context.Context, address DataAddress, buf []byte, metadata any) error {
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return assert.AnError
	}
	for i, b := range buf {
		f.data[address+DataAddress(i)] = b
	}
	return nil
}

func newTestController(t *testing.T, store BackingStore, pageCount PageCount, pageSize PageSize) *PageCacheController {
	t.Helper()
	c := NewPageCacheController(store)
	require.NoError(t, c.SetupPages(pageCount, pageSize))
	t.Cleanup(c.Close)
	return c
}

func TestControllerWriteReadRoundTrip(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 4, 8)

	payload := []byte("roundtrip!!")
	require.NoError(t, c.Write(context.Background(), 0, payload, nil))
	require.NoError(t, c.Flush())

	out := make([]byte, len(payload))
	require.NoError(t, store.ReadStorage(context.Background(), 0, out, nil))
	assert.Equal(t, payload, out)
}

func TestControllerHitAfterLoad(t *testing.T) {
	store := newFakeStore()
	store.data[0] = 42
	c := newTestController(t, store, 2, 8)

	buf := make([]byte, 1)
	require.NoError(t, c.Read(context.Background(), 0, buf, nil))
	assert.Equal(t, byte(42), buf[0])

	stats := c.GetStatistic()
	assert.Equal(t, uint64(1), stats.MissCount)

	require.NoError(t, c.Read(context.Background(), 0, buf, nil))
	stats = c.GetStatistic()
	assert.Equal(t, uint64(1), stats.HitCount)
}

func TestControllerWriteMissAroundBypassesCache(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 8)
	c.SetWriteMissPolicy(WriteAround)

	require.NoError(t, c.Write(context.Background(), 0, []byte("x"), nil))
	stats := c.GetStatistic()
	assert.Equal(t, uint64(0), stats.HitCount)
	assert.Equal(t, uint64(1), stats.MissCount)
	assert.Equal(t, byte('x'), store.data[0])

	info := c.GetDebugInfo(DebugDescriptorState)
	assert.Equal(t, uint64(StateFree), info[0].Value)
}

func TestControllerDisabledBypassesCache(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 8)
	c.Enable(false)

	require.NoError(t, c.Write(context.Background(), 0, []byte("y"), nil))
	assert.Equal(t, byte('y'), store.data[0])
}

func TestControllerBufferNotAllocated(t *testing.T) {
	store := newFakeStore()
	c := NewPageCacheController(store)
	defer c.Close()

	err := c.Read(context.Background(), 0, make([]byte, 1), nil)
	assert.ErrorIs(t, err, ErrBufferNotAllocated)
}

func TestControllerClearDropsStateWithoutWriteback(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 4)

	require.NoError(t, c.Write(context.Background(), 0, []byte("zzzz"), nil))
	require.NoError(t, c.Clear())

	assert.Equal(t, byte(0), store.data[0])

	info := c.GetDebugInfo(DebugDescriptorState)
	assert.Equal(t, uint64(StateFree), info[0].Value)
}

func TestControllerReplaceEvictsDirtyPage(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 4)

	require.NoError(t, c.Write(context.Background(), 0, []byte("AAAA"), nil))
	require.NoError(t, c.Write(context.Background(), 4, []byte("BBBB"), nil))
	require.NoError(t, c.Flush())

	assert.Equal(t, []byte("AAAA"), []byte{store.data[0], store.data[1], store.data[2], store.data[3]})
	assert.Equal(t, []byte("BBBB"), []byte{store.data[4], store.data[5], store.data[6], store.data[7]})
}

func TestControllerLoadFailureResetsSlot(t *testing.T) {
	store := newFakeStore()
	store.failRead = true
	c := newTestController(t, store, 1, 4)

	err := c.Read(context.Background(), 0, make([]byte, 4), nil)
	assert.Error(t, err)

	info := c.GetDebugInfo(DebugDescriptorState)
	assert.Equal(t, uint64(StateFree), info[0].Value)
	assert.Equal(t, InvalidSlot, c.locator.get(0))
}

func TestControllerConcurrentReplaceAcrossSlots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}
	store := newFakeStore()
	c := newTestController(t, store, 2, 4)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(page DataAddress) {
			defer wg.Done()
			_ = c.Write(context.Background(), page*4, []byte("WXYZ"), nil)
		}(DataAddress(i % 5))
		go func(page DataAddress) {
			defer wg.Done()
			_ = c.Read(context.Background(), page*4, make([]byte, 4), nil)
		}(DataAddress((i + 1) % 5))
	}
	wg.Wait()

	for _, ps := range c.slots {
		assert.Equal(t, uint32(0), ps.captureCount())
		assert.Equal(t, uint32(0), ps.waitingCount())
	}
}

// TestControllerObservesLoadStateWhileReadHeld drives a single-slot
// replacement with the backing-store read held inside a trace hook: the
// slot must be observable in LOAD with the incoming page before release,
// and exactly one full-page read must occur at the new page's address.
func TestControllerObservesLoadStateWhileReadHeld(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 10)

	require.NoError(t, c.Read(context.Background(), 0, make([]byte, 9), nil))

	store.mu.Lock()
	store.readCalls = 0
	store.mu.Unlock()

	store.hold = make(chan struct{})
	loadEntered := make(chan struct{}, 1)
	c.SetDebugTracePoint(func(tp DebugTracePoint) {
		if tp == TraceLoad {
			loadEntered <- struct{}{}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Write(context.Background(), 10, []byte("hello"), nil)
	}()

	<-loadEntered
	state := c.GetDebugInfo(DebugDescriptorState)
	page := c.GetDebugInfo(DebugDescriptorPage)
	assert.Equal(t, uint64(StateLoad), state[0].Value)
	assert.Equal(t, uint64(1), page[0].Value)

	close(store.hold)
	require.NoError(t, <-done)

	state = c.GetDebugInfo(DebugDescriptorState)
	page = c.GetDebugInfo(DebugDescriptorPage)
	assert.Equal(t, uint64(StateReady), state[0].Value)
	assert.Equal(t, uint64(1), page[0].Value)

	store.mu.Lock()
	assert.Equal(t, 1, store.readCalls)
	assert.Equal(t, DataAddress(10), store.lastReadAddr)
	assert.Equal(t, 10, store.lastReadSize)
	store.mu.Unlock()
}

// TestControllerConcurrentReplaceParksOnWaitLoad replaces both slots of a
// two-slot cache with their write-back held, then issues a read and a
// write for the two incoming pages while the slots are still in UNLOAD:
// both collisions must park on wait_load (not wait_unload,
// which is reserved for a request on the page actually being unloaded)
// and both must complete once the held write-backs are released.
func TestControllerConcurrentReplaceParksOnWaitLoad(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 2, 10)

	require.NoError(t, c.Write(context.Background(), 0, []byte("0000000000"), nil))
	require.NoError(t, c.Write(context.Background(), 10, []byte("1111111111"), nil))

	store.hold = make(chan struct{})
	unloadEntered := make(chan struct{}, 2)
	waitLoadEntered := make(chan struct{}, 2)
	c.SetDebugTracePoint(func(tp DebugTracePoint) {
		switch tp {
		case TraceUnload:
			unloadEntered <- struct{}{}
		case TraceWaitLoad:
			waitLoadEntered <- struct{}{}
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.Write(context.Background(), 20, []byte("2222222222"), nil)
	}()
	go func() {
		defer wg.Done()
		_ = c.Read(context.Background(), 30, make([]byte, 10), nil)
	}()

	<-unloadEntered
	<-unloadEntered
	// Both slots are now UNLOAD, blocked inside the held write-back;
	// requests for the incoming pages must collide and park on wait_load.

	var wg2 sync.WaitGroup
	wg2.Add(2)
	go func() {
		defer wg2.Done()
		_ = c.Read(context.Background(), 20, make([]byte, 10), nil)
	}()
	go func() {
		defer wg2.Done()
		_ = c.Write(context.Background(), 30, []byte("3333333333"), nil)
	}()

	<-waitLoadEntered
	<-waitLoadEntered
	waiting := c.GetDebugInfo(DebugDescriptorWaitingCount)
	total := uint64(0)
	for _, e := range waiting {
		total += e.Value
	}
	assert.Equal(t, uint64(2), total)

	close(store.hold)
	wg.Wait()
	wg2.Wait()

	pages := c.GetDebugInfo(DebugDescriptorPage)
	states := c.GetDebugInfo(DebugDescriptorState)
	got := map[uint64]uint64{}
	for i := range pages {
		got[pages[i].Value] = states[i].Value
	}
	assert.Equal(t, map[uint64]uint64{2: uint64(StateReady), 3: uint64(StateReady)}, got)
}

// TestControllerUnloadFailureWakesWaiterWithError holds a write-back that
// is configured to fail, issues a colliding write on the page being
// unloaded (which must wait on the UNLOAD, not wait_load), then releases
// the hold. Both the active writer and the parked waiter must observe
// the failure, and the slot must revert to its pre-replace page in READY
// state with is_dirty preserved.
func TestControllerUnloadFailureWakesWaiterWithError(t *testing.T) {
	store := newFakeStore()
	c := newTestController(t, store, 1, 4)

	require.NoError(t, c.Write(context.Background(), 0, []byte("AAAA"), nil))

	store.hold = make(chan struct{})
	store.failWrite = true
	unloadEntered := make(chan struct{}, 1)
	waitUnloadEntered := make(chan struct{}, 1)
	c.SetDebugTracePoint(func(tp DebugTracePoint) {
		switch tp {
		case TraceUnload:
			unloadEntered <- struct{}{}
		case TraceWaitUnload:
			waitUnloadEntered <- struct{}{}
		}
	})

	activeErr := make(chan error, 1)
	go func() {
		activeErr <- c.Write(context.Background(), 4, []byte("BBBB"), nil)
	}()
	<-unloadEntered

	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- c.Write(context.Background(), 0, []byte("CCCC"), nil)
	}()
	<-waitUnloadEntered
	waiting := c.GetDebugInfo(DebugDescriptorWaitingCount)
	assert.Equal(t, uint64(1), waiting[0].Value)

	close(store.hold)

	assert.ErrorIs(t, <-activeErr, assert.AnError)
	assert.ErrorIs(t, <-waiterErr, assert.AnError)

	state := c.GetDebugInfo(DebugDescriptorState)
	page := c.GetDebugInfo(DebugDescriptorPage)
	dirty := c.GetDebugInfo(DebugDescriptorChange)
	assert.Equal(t, uint64(StateReady), state[0].Value)
	assert.Equal(t, uint64(0), page[0].Value)
	assert.Equal(t, uint64(1), dirty[0].Value)
}
