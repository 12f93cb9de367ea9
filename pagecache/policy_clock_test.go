package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockPolicy(t *testing.T) {
	c := newClockPolicy().(*clockPolicy)
	c.SetPageCount(5)

	assert.Equal(t, SlotIndex(0), c.GetReplacePage())

	c.OnPageOperation(1, PageRead)
	c.OnPageOperation(2, PageWrite)

	assert.Equal(t, SlotIndex(3), c.GetReplacePage())
}

func TestClockPolicyIgnoresFlush(t *testing.T) {
	c := newClockPolicy().(*clockPolicy)
	c.SetPageCount(3)
	c.OnPageOperation(0, PageFlush)
	assert.False(t, c.ref[0])
}
