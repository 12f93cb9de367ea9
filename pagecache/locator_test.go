package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageLocatorDirectGrowsAndGets(t *testing.T) {
	l := newPageLocator(LocatorDirect)
	require.NoError(t, l.set(3, 7))
	assert.Equal(t, SlotIndex(7), l.get(3))
	assert.Equal(t, InvalidSlot, l.get(0))
	assert.Equal(t, InvalidSlot, l.get(99))
}

func TestPageLocatorDirectHashLimit(t *testing.T) {
	l := newPageLocator(LocatorDirect)
	l.setMemoryLimit(16) // room for 2 entries of 8 bytes
	require.NoError(t, l.set(0, 1))
	require.NoError(t, l.set(1, 2))
	assert.ErrorIs(t, l.set(5, 3), ErrHashLimit)
}

func TestPageLocatorTreeSetAndRemove(t *testing.T) {
	l := newPageLocator(LocatorTree)
	require.NoError(t, l.set(10, 1))
	require.NoError(t, l.set(2, 2))
	require.NoError(t, l.set(7, 3))

	var pages []PageNumber
	l.forEach(func(e locatorEntry) { pages = append(pages, e.Page) })
	assert.Equal(t, []PageNumber{2, 7, 10}, pages)

	require.NoError(t, l.set(7, InvalidSlot))
	assert.Equal(t, InvalidSlot, l.get(7))
}

func TestPageLocatorSetTypeRoundTrip(t *testing.T) {
	l := newPageLocator(LocatorDirect)
	require.NoError(t, l.set(0, 1))
	require.NoError(t, l.set(4, 2))
	require.NoError(t, l.set(2, 3))

	before := map[PageNumber]SlotIndex{}
	l.forEach(func(e locatorEntry) { before[e.Page] = e.Slot })

	require.NoError(t, l.setType(LocatorTree))
	require.NoError(t, l.setType(LocatorDirect))

	after := map[PageNumber]SlotIndex{}
	l.forEach(func(e locatorEntry) { after[e.Page] = e.Slot })

	assert.Equal(t, before, after)
}

func TestPageLocatorForEachReverse(t *testing.T) {
	l := newPageLocator(LocatorTree)
	require.NoError(t, l.set(1, 1))
	require.NoError(t, l.set(2, 2))
	require.NoError(t, l.set(3, 3))

	var pages []PageNumber
	l.forEachReverse(func(e locatorEntry) { pages = append(pages, e.Page) })
	assert.Equal(t, []PageNumber{3, 2, 1}, pages)
}
