package pagecache

import (
	"context"
	"sync"
)

type statCounters struct {
	OperationCount uint64
	HitCount       uint64
	MissCount      uint64
	DirectCount    uint64
}

// PageCacheController is the concurrent orchestrator: it owns the shared
// cache buffer, the slot table, the locator and the replacement policy,
// and drives every hit/miss/replace/load/unload transition under a single
// mutex shared with each PageSlot's condition variables.
type PageCacheController struct {
	mu sync.Mutex

	settings        CacheSettings
	startPageOffset DataAddress

	buffer []byte
	slots  []*PageSlot

	locator *PageLocator
	policy  ReplacementPolicy

	store BackingStore
	stats statCounters

	traceFn func(DebugTracePoint)
	logFn   func(string)
}

// NewPageCacheController creates a controller bound to store. Until
// SetupPages is called, Read/Write fail with ErrBufferNotAllocated unless
// the cache is disabled, in which case they bypass to storage.
func NewPageCacheController(store BackingStore) *PageCacheController {
	c := &PageCacheController{
		store: store,
		settings: CacheSettings{
			IsEnabled:        true,
			ReplaceAlgorithm: AlgLRU,
			LocatorType:      LocatorDirect,
		},
	}
	c.locator = newPageLocator(LocatorDirect)
	c.policy = newReplacementPolicy(AlgLRU)
	return c
}

// SetupPages allocates the cache buffer and slot table for n pages of
// pageSize bytes each. Both must be greater than zero.
func (c *PageCacheController) SetupPages(pageCount PageCount, pageSize PageSize) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pageCount == 0 || pageSize == 0 {
		return wrapErr(ErrPageCountSize)
	}

	slots := make([]*PageSlot, pageCount)
	for i := range slots {
		slots[i] = newPageSlot(&c.mu)
	}

	c.buffer = make([]byte, uint64(pageCount)*uint64(pageSize))
	c.slots = slots
	c.settings.PageCount = pageCount
	c.settings.PageSize = pageSize
	c.locator.clear()
	c.policy.SetPageCount(pageCount)
	return nil
}

func (c *PageCacheController) SetStartPageOffset(offset DataAddress) {
	c.mu.Lock()
	c.startPageOffset = offset
	c.mu.Unlock()
}

func (c *PageCacheController) Enable(enabled bool) {
	c.mu.Lock()
	c.settings.IsEnabled = enabled
	c.mu.Unlock()
}

func (c *PageCacheController) SetCleanBeforeLoad(clean bool) {
	c.mu.Lock()
	c.settings.IsCleanBeforeLoad = clean
	c.mu.Unlock()
}

func (c *PageCacheController) SetWritePolicy(wp WritePolicy) {
	c.mu.Lock()
	c.settings.WritePolicy = wp
	c.mu.Unlock()
}

func (c *PageCacheController) SetWriteMissPolicy(wp WriteMissPolicy) {
	c.mu.Lock()
	c.settings.WriteMissPolicy = wp
	c.mu.Unlock()
}

// SetReplaceAlgorithm swaps in a fresh policy instance, seeded with the
// current slot count, and closes the outgoing one (only relevant for NRU's
// background aging goroutine).
func (c *PageCacheController) SetReplaceAlgorithm(alg ReplaceAlgorithm) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.policy
	c.policy = newReplacementPolicy(alg)
	c.policy.SetPageCount(c.settings.PageCount)
	c.settings.ReplaceAlgorithm = alg
	if old != nil {
		old.Close()
	}
}

func (c *PageCacheController) SetLocatorType(lt LocatorType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.locator.setType(lt); err != nil {
		return err
	}
	c.settings.LocatorType = lt
	return nil
}

func (c *PageCacheController) SetHashMemoryLimit(limit uint64) {
	c.mu.Lock()
	c.locator.setMemoryLimit(limit)
	c.mu.Unlock()
}

func (c *PageCacheController) SetAlgorithmParameter(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.SetParameter(name, value)
}

func (c *PageCacheController) GetAlgorithmParameter(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.GetParameter(name)
}

func (c *PageCacheController) GetSettings() CacheSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *PageCacheController) GetStatistic() CacheStatistic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStatistic{
		OperationCount: c.stats.OperationCount,
		HitCount:       c.stats.HitCount,
		MissCount:      c.stats.MissCount,
		DirectCount:    c.stats.DirectCount,
		LocatorMemory:  c.locator.memorySize(uint64(c.settings.PageSize)),
	}
}

func (c *PageCacheController) ResetStatistic() {
	c.mu.Lock()
	c.stats = statCounters{}
	c.mu.Unlock()
}

func (c *PageCacheController) SetDebugTracePoint(fn func(DebugTracePoint)) {
	c.mu.Lock()
	c.traceFn = fn
	c.mu.Unlock()
}

func (c *PageCacheController) SetDebugCallbackLog(fn func(string)) {
	c.mu.Lock()
	c.logFn = fn
	c.mu.Unlock()
}

func (c *PageCacheController) trace(tp DebugTracePoint) {
	if c.traceFn != nil {
		c.traceFn(tp)
	}
}

func (c *PageCacheController) log(msg string) {
	if c.logFn != nil {
		c.logFn(msg)
	}
}

// GetDebugInfo returns an ordered (index, value) view for one of the
// categories the test suite drives deterministic interleavings with.
func (c *PageCacheController) GetDebugInfo(kind DebugInformation) []DebugEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case DebugLocationTable:
		var entries []DebugEntry
		c.locator.forEach(func(e locatorEntry) {
			entries = append(entries, DebugEntry{Index: e.Page, Value: uint64(e.Slot)})
		})
		return entries
	case DebugDescriptorPage:
		return c.slotDebug(func(ps *PageSlot) uint64 { return uint64(ps.page) })
	case DebugDescriptorState:
		return c.slotDebug(func(ps *PageSlot) uint64 { return uint64(ps.state) })
	case DebugDescriptorChange:
		return c.slotDebug(func(ps *PageSlot) uint64 {
			if ps.isDirty {
				return 1
			}
			return 0
		})
	case DebugDescriptorUnloadPage:
		return c.slotDebug(func(ps *PageSlot) uint64 { return uint64(ps.unloadPage) })
	case DebugDescriptorWaitingCount:
		return c.slotDebug(func(ps *PageSlot) uint64 { return uint64(ps.waitingCount()) })
	default:
		return nil
	}
}

func (c *PageCacheController) slotDebug(value func(*PageSlot) uint64) []DebugEntry {
	entries := make([]DebugEntry, len(c.slots))
	for i, ps := range c.slots {
		entries[i] = DebugEntry{Index: PageNumber(i), Value: value(ps)}
	}
	return entries
}

// Close releases background resources held by the current policy (only
// NRU has any). The controller must have no outstanding callers.
func (c *PageCacheController) Close() {
	c.mu.Lock()
	p := c.policy
	c.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

// Read copies len(buf) bytes starting at address into buf.
func (c *PageCacheController) Read(ctx context.Context, address DataAddress, buf []byte, metadata any) error {
	return c.doIO(ctx, address, buf, metadata, PageRead)
}

// Write copies buf into the cache (or directly to storage) starting at
// address.
func (c *PageCacheController) Write(ctx context.Context, address DataAddress, buf []byte, metadata any) error {
	return c.doIO(ctx, address, buf, metadata, PageWrite)
}

// doIO only ever holds c.mu for bookkeeping: reading settings, the
// openPage/closePage bracket around a slot lookup, and the brief
// lock/unlock pairs around the direct-to-storage calls (executeRead/
// executeWrite manage their own unlock-around-I/O internally, but still
// require the lock held on entry and leave it held on return). The client
// memcpy between openPage and closePage runs with no lock held at all,
// protected only by the capture openPage took on the slot — mirroring the
// original's per-call locker_t scoping rather than one lock spanning the
// whole operation.
func (c *PageCacheController) doIO(ctx context.Context, address DataAddress, buf []byte, metadata any, op PageOperation) error {
	c.mu.Lock()
	if !c.settings.IsEnabled {
		defer c.mu.Unlock()
		return c.directIO(ctx, address, buf, metadata, op)
	}
	if c.buffer == nil {
		c.mu.Unlock()
		return wrapErr(ErrBufferNotAllocated)
	}
	startOffset := c.startPageOffset
	pageSize := c.settings.PageSize
	writePolicy := c.settings.WritePolicy
	c.mu.Unlock()

	it, err := newPageAddressIterator(startOffset, pageSize, address, DataSize(len(buf)))
	if err != nil {
		return err
	}

	for !it.done() {
		slice, err := it.next()
		if err != nil {
			return err
		}
		clientSlice := buf[slice.bufOffset : slice.bufOffset+DataSize(slice.size)]
		addr := startOffset + DataAddress(slice.page)*DataAddress(pageSize) + DataAddress(slice.pageOffset)

		slot, err := c.openPage(ctx, slice.page, metadata, op)
		if err != nil {
			return err
		}
		if slot == InvalidSlot {
			c.mu.Lock()
			err := c.directSlice(ctx, addr, clientSlice, metadata, op)
			c.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}

		region := c.slotRegion(slot, slice.pageOffset, DataSize(len(clientSlice)))
		if op == PageWrite {
			c.trace(TraceWrite)
			copy(region, clientSlice)
		} else {
			c.trace(TraceRead)
			copy(clientSlice, region)
		}

		c.closePage(slot, op)

		if op == PageWrite && writePolicy == WriteThrough {
			c.mu.Lock()
			err := c.executeWrite(ctx, addr, clientSlice, metadata)
			c.mu.Unlock()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *PageCacheController) directIO(ctx context.Context, address DataAddress, buf []byte, metadata any, op PageOperation) error {
	if op == PageWrite {
		return c.executeWrite(ctx, address, buf, metadata)
	}
	return c.executeRead(ctx, address, buf, metadata)
}

// directSlice issues a single bypass-to-storage call at a precomputed
// address. Caller must hold c.mu (executeRead/executeWrite require it).
func (c *PageCacheController) directSlice(ctx context.Context, addr DataAddress, buf []byte, metadata any, op PageOperation) error {
	if op == PageWrite {
		return c.executeWrite(ctx, addr, buf, metadata)
	}
	return c.executeRead(ctx, addr, buf, metadata)
}

// openPage is the hit path. It takes c.mu itself and holds it for its own
// bookkeeping only, releasing it before every return — including the
// success path, where it hands back a slot the caller already holds a
// capture on, not the lock. A hit that collides with an in-flight unload
// or load parks and, on wake, re-enters the same lookup — a loop here
// rather than the recursive re-hit a non-systems implementation might use.
// OperationCount counts the call once; HitCount re-increments on every
// re-hit around the loop, matching the original's recursive re-hit count.
func (c *PageCacheController) openPage(ctx context.Context, page PageNumber, metadata any, op PageOperation) (SlotIndex, error) {
	c.mu.Lock()
	c.stats.OperationCount++
	for {
		slot := c.locator.get(page)
		if slot == InvalidSlot {
			s, err := c.miss(ctx, page, metadata, op)
			c.mu.Unlock()
			return s, err
		}
		c.stats.HitCount++
		c.trace(TraceHit)

		ps := c.slots[slot]
		if ps.isPageUnload(page) {
			c.trace(TraceWaitUnload)
			if err := ps.waitUnload(); err != nil {
				c.mu.Unlock()
				return InvalidSlot, err
			}
			continue
		}
		if ps.isLoading() {
			c.trace(TraceWaitLoad)
			if err := ps.waitLoad(); err != nil {
				c.mu.Unlock()
				return InvalidSlot, err
			}
			continue
		}

		ps.addCapture()
		c.trace(TraceAddCapture)
		c.policy.OnPageOperation(slot, op)
		c.mu.Unlock()
		return slot, nil
	}
}

// closePage re-acquires c.mu to release the capture openPage took, the
// bracket on the other side of the lock-free client memcpy.
func (c *PageCacheController) closePage(slot SlotIndex, op PageOperation) {
	c.mu.Lock()
	ps := c.slots[slot]
	if op == PageWrite && c.settings.WritePolicy != WriteThrough {
		ps.isDirty = true
	}
	ps.releaseCapture()
	c.trace(TraceReleaseCapture)
	c.mu.Unlock()
}

func (c *PageCacheController) miss(ctx context.Context, page PageNumber, metadata any, op PageOperation) (SlotIndex, error) {
	c.stats.MissCount++
	c.trace(TraceMiss)

	if op == PageWrite && c.settings.WriteMissPolicy == WriteAround {
		return InvalidSlot, nil
	}

	victim := c.policy.GetReplacePage()
	if victim == InvalidSlot || int(victim) >= len(c.slots) || !c.slots[victim].isAvailable() {
		c.stats.DirectCount++
		return InvalidSlot, nil
	}
	return c.replace(ctx, victim, page, metadata, op)
}

// replace drives a victim slot through UNLOAD (if it held a page) and LOAD
// to serve newPage, releasing the controller lock around each backing
// store call via executeRead/executeWrite.
func (c *PageCacheController) replace(ctx context.Context, victim SlotIndex, newPage PageNumber, metadata any, op PageOperation) (SlotIndex, error) {
	ps := c.slots[victim]
	c.trace(TraceReplace)

	if err := c.locator.set(newPage, victim); err != nil {
		return InvalidSlot, err
	}
	c.policy.OnPageOperation(victim, PageReplace)

	if ps.state != StateFree {
		oldPage := ps.page
		ps.unloadPage = oldPage
		ps.page = newPage
		ps.state = StateUnload
		ps.waitCaptureFree()

		if ps.isDirty {
			c.trace(TraceUnload)
			addr := c.calcPageAddress(oldPage)
			buf := c.pageBuffer(victim)
			if err := c.executeWrite(ctx, addr, buf, metadata); err != nil {
				ps.state = StateReady
				ps.page = oldPage
				ps.unloadPage = InvalidPage
				c.locator.set(newPage, InvalidSlot)
				ps.notifyException(err)
				return InvalidSlot, err
			}
		}

		c.locator.set(oldPage, InvalidSlot)
		ps.notifyUnload()
		ps.isDirty = false
	}

	ps.unloadPage = InvalidPage
	ps.state = StateLoad
	ps.page = newPage
	c.trace(TraceLoad)

	if c.settings.IsCleanBeforeLoad {
		c.zeroSlot(victim)
	}

	addr := c.calcPageAddress(newPage)
	buf := c.pageBuffer(victim)
	if err := c.executeRead(ctx, addr, buf, metadata); err != nil {
		ps.reset()
		c.locator.set(newPage, InvalidSlot)
		c.policy.OnPageOperation(victim, PageReset)
		ps.notifyException(err)
		return InvalidSlot, err
	}
	ps.state = StateReady
	ps.notifyLoad()

	ps.addCapture()
	c.trace(TraceAddCapture)
	c.policy.OnPageOperation(victim, op)
	return victim, nil
}

// executeRead and executeWrite release the controller lock around the
// backing-store call and reacquire it before returning, even on error —
// the one place distinct slots make genuinely concurrent I/O progress.
func (c *PageCacheController) executeRead(ctx context.Context, addr DataAddress, buf []byte, metadata any) error {
	c.trace(TraceReadPage)
	c.mu.Unlock()
	err := c.store.ReadStorage(ctx, addr, buf, metadata)
	c.mu.Lock()
	return err
}

func (c *PageCacheController) executeWrite(ctx context.Context, addr DataAddress, buf []byte, metadata any) error {
	c.trace(TraceWritePage)
	c.mu.Unlock()
	err := c.store.WriteStorage(ctx, addr, buf, metadata)
	c.mu.Lock()
	return err
}

// Flush writes back every dirty slot. Each slot is flushed under its own
// lock scope (flushSlotIfDirty takes c.mu itself) rather than one lock held
// for the whole sweep, so a concurrent Read/Write can interleave between
// slots.
func (c *PageCacheController) Flush() error {
	c.mu.Lock()
	n := len(c.slots)
	c.mu.Unlock()

	for i := 0; i < n; i++ {
		if err := c.flushSlotIfDirty(SlotIndex(i)); err != nil {
			return err
		}
	}
	return nil
}

// FlushRange restricts Flush to slots whose page is mapped within
// [address, address+size), with the same per-slot lock scoping as Flush.
func (c *PageCacheController) FlushRange(address DataAddress, size DataSize) error {
	c.mu.Lock()
	startOffset := c.startPageOffset
	pageSize := c.settings.PageSize
	c.mu.Unlock()

	it, err := newPageAddressIterator(startOffset, pageSize, address, size)
	if err != nil {
		return err
	}
	for !it.done() {
		slice, err := it.next()
		if err != nil {
			return err
		}
		c.mu.Lock()
		slot := c.locator.get(slice.page)
		c.mu.Unlock()
		if slot == InvalidSlot {
			continue
		}
		if err := c.flushSlotIfDirty(slot); err != nil {
			return err
		}
	}
	return nil
}

// flushSlotIfDirty takes c.mu for exactly one slot's worth of work, mirroring
// the original's fresh locker_t per flushed page.
func (c *PageCacheController) flushSlotIfDirty(slot SlotIndex) error {
	c.mu.Lock()
	ps := c.slots[slot]
	if !ps.canFlush() {
		c.mu.Unlock()
		return nil
	}

	ps.isDirty = false
	ps.addCapture()
	c.trace(TraceAddCapture)

	addr := c.calcPageAddress(ps.page)
	buf := c.pageBuffer(slot)
	err := c.executeWrite(context.Background(), addr, buf, nil)

	ps.releaseCapture()
	c.trace(TraceReleaseCapture)

	if err != nil {
		ps.isDirty = true
		c.mu.Unlock()
		return err
	}
	c.policy.OnPageOperation(slot, PageFlush)
	c.mu.Unlock()
	return nil
}

// Clear drops every slot back to FREE and zeroes the buffer without
// writing back dirty data.
func (c *PageCacheController) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer == nil {
		return wrapErr(ErrBufferNotAllocated)
	}
	for i := range c.buffer {
		c.buffer[i] = 0
	}
	for _, ps := range c.slots {
		ps.reset()
	}
	c.policy.Reset()
	c.locator.clear()
	return nil
}

func (c *PageCacheController) calcPageAddress(page PageNumber) DataAddress {
	return c.startPageOffset + DataAddress(page)*DataAddress(c.settings.PageSize)
}

func (c *PageCacheController) pageBuffer(slot SlotIndex) []byte {
	base := uint64(slot) * uint64(c.settings.PageSize)
	return c.buffer[base : base+uint64(c.settings.PageSize)]
}

func (c *PageCacheController) slotRegion(slot SlotIndex, pageOffset PageOffset, size DataSize) []byte {
	base := uint64(slot)*uint64(c.settings.PageSize) + uint64(pageOffset)
	return c.buffer[base : base+uint64(size)]
}

func (c *PageCacheController) zeroSlot(slot SlotIndex) {
	buf := c.pageBuffer(slot)
	for i := range buf {
		buf[i] = 0
	}
}
