// Package report formats a pagecache.CacheStatistic snapshot as a
// human-readable summary. It is the one place in the repo where decimal
// arithmetic is load-bearing: hit-ratio percentages are computed with
// github.com/shopspring/decimal so the printed report never carries float
// rounding artifacts. The core's own counters stay plain uint64.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kvstorelabs/pagecachectl/pagecache"
)

// HitRatioPercent returns hits/(hits+misses)*100 as an exact decimal,
// rounded to two places. Returns zero when there have been no operations.
func HitRatioPercent(stat pagecache.CacheStatistic) decimal.Decimal {
	total := stat.HitCount + stat.MissCount
	if total == 0 {
		return decimal.Zero
	}
	hits := decimal.NewFromInt(int64(stat.HitCount))
	denom := decimal.NewFromInt(int64(total))
	return hits.DivRound(denom, 4).Mul(decimal.NewFromInt(100)).Round(2)
}

// Summary renders a one-line human-readable report.
func Summary(stat pagecache.CacheStatistic) string {
	return fmt.Sprintf(
		"operations=%d hits=%d misses=%d direct=%d hit_ratio=%s%% locator_memory=%d bytes",
		stat.OperationCount, stat.HitCount, stat.MissCount, stat.DirectCount,
		HitRatioPercent(stat).String(), stat.LocatorMemory,
	)
}
