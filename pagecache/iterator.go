package pagecache

// pageSlice is one (page, pageOffset, sliceSize) triple produced by
// decomposing a byte-range request against the page geometry. bufOffset is
// the offset into the caller's original buffer that this slice reads from
// or writes to.
type pageSlice struct {
	page       PageNumber
	pageOffset PageOffset
	size       DataSize
	bufOffset  DataSize
}

// pageAddressIterator decomposes an (address, size) byte range into
// per-page slices. It is stateless aside from the cursor it advances: it
// holds no reference to the controller and performs no I/O, matching
// spec.md's "deterministic, stateless helper" framing (out of the core
// budget, but still required).
type pageAddressIterator struct {
	startPageOffset DataAddress
	pageSize        PageSize

	remaining DataSize
	cursor    DataAddress
	bufCursor DataSize
}

func newPageAddressIterator(startPageOffset DataAddress, pageSize PageSize, address DataAddress, size DataSize) (*pageAddressIterator, error) {
	if address < startPageOffset {
		return nil, wrapErr(ErrAddressOffset)
	}
	return &pageAddressIterator{
		startPageOffset: startPageOffset,
		pageSize:        pageSize,
		remaining:       size,
		cursor:          address,
	}, nil
}

func (it *pageAddressIterator) done() bool { return it.remaining == 0 }

// next returns the next (page, pageOffset, sliceSize) triple and advances
// the cursor. The first slice's size is min(remaining, page_size -
// page_offset); subsequent slices cover full pages until the final
// residue.
func (it *pageAddressIterator) next() (pageSlice, error) {
	offsetIntoPages := it.cursor - it.startPageOffset
	page := uint64(offsetIntoPages) / uint64(it.pageSize)
	if page == InvalidPage {
		return pageSlice{}, wrapErr(ErrPageOverloaded)
	}
	pageOffset := PageOffset(uint64(offsetIntoPages) % uint64(it.pageSize))

	roomInPage := DataSize(uint64(it.pageSize) - uint64(pageOffset))
	sliceSize := it.remaining
	if sliceSize > roomInPage {
		sliceSize = roomInPage
	}

	slice := pageSlice{
		page:       page,
		pageOffset: pageOffset,
		size:       sliceSize,
		bufOffset:  it.bufCursor,
	}

	it.cursor += DataAddress(sliceSize)
	it.bufCursor += sliceSize
	it.remaining -= sliceSize
	return slice, nil
}
