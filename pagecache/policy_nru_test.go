package pagecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNRUPolicyVictimSelection(t *testing.T) {
	p := newNRUPolicy().(*nruPolicy)
	require.NoError(t, p.SetParameter("timeout", "60000"))
	p.SetPageCount(4)
	defer p.Close()

	p.OnPageOperation(0, PageWrite)
	p.OnPageOperation(1, PageRead)
	p.OnPageOperation(2, PageWrite)
	p.OnPageOperation(3, PageWrite)

	assert.Equal(t, SlotIndex(1), p.GetReplacePage())

	p.OnPageOperation(3, PageFlush)
	assert.Equal(t, SlotIndex(1), p.GetReplacePage())
}

func TestNRUPolicyInvalidTimeout(t *testing.T) {
	p := newNRUPolicy().(*nruPolicy)
	defer p.Close()

	assert.ErrorIs(t, p.SetParameter("timeout", "0"), ErrParameterValue)
	assert.ErrorIs(t, p.SetParameter("timeout", "-5"), ErrParameterValue)
	assert.ErrorIs(t, p.SetParameter("timeout", "not-a-number"), ErrParameterValue)
	assert.ErrorIs(t, p.SetParameter("burst", "1"), ErrParameterName)
}

func TestNRUPolicyAgesReferencedBits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping aging-goroutine timing test in short mode")
	}
	p := newNRUPolicy().(*nruPolicy)
	require.NoError(t, p.SetParameter("timeout", "20"))
	p.SetPageCount(2)
	defer p.Close()

	p.OnPageOperation(0, PageRead)
	time.Sleep(200 * time.Millisecond)

	p.mu.Lock()
	r := p.r[0]
	p.mu.Unlock()
	assert.False(t, r, "aging goroutine should have cleared the referenced bit")
}
