package pagecache

func newReplacementPolicy(alg ReplaceAlgorithm) ReplacementPolicy {
	switch alg {
	case AlgFIFO:
		return newFIFOPolicy()
	case AlgLRU:
		return newLRUPolicy()
	case AlgLFU:
		return newLFUPolicy()
	case AlgMRU:
		return newMRUPolicy()
	case AlgClock:
		return newClockPolicy()
	case AlgNRU:
		return newNRUPolicy()
	case AlgRandom:
		return newRandomPolicy()
	default:
		return newLRUPolicy()
	}
}
