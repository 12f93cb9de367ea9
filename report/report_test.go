package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kvstorelabs/pagecachectl/pagecache"
)

func TestHitRatioPercent(t *testing.T) {
	stat := pagecache.CacheStatistic{HitCount: 3, MissCount: 1}
	assert.Equal(t, "75", HitRatioPercent(stat).String())
}

func TestHitRatioPercentNoOperations(t *testing.T) {
	assert.True(t, HitRatioPercent(pagecache.CacheStatistic{}).IsZero())
}

func TestSummaryIncludesAllCounters(t *testing.T) {
	s := Summary(pagecache.CacheStatistic{OperationCount: 4, HitCount: 3, MissCount: 1, DirectCount: 0, LocatorMemory: 128})
	assert.Contains(t, s, "operations=4")
	assert.Contains(t, s, "hit_ratio=75%")
}
