package pagecache

import (
	"strconv"
	"sync"
	"time"
)

// defaultNRUTimeout is the aging interval applied until SetParameter
// overrides it.
const defaultNRUTimeout = 200 * time.Millisecond

// nruPolicy tracks a referenced bit R and a modified bit M per slot. A
// background goroutine periodically clears every R bit; it is started
// lazily on the first event and stopped cooperatively from Close, mirroring
// the original's flag-plus-condition-variable shutdown for its aging
// thread.
type nruPolicy struct {
	mu      sync.Mutex
	r       []bool
	m       []bool
	timeout time.Duration

	agerMu      sync.Mutex
	agerCond    *sync.Cond
	agerRunning bool
	agerDone    chan struct{}
}

func newNRUPolicy() ReplacementPolicy {
	p := &nruPolicy{timeout: defaultNRUTimeout}
	p.agerCond = sync.NewCond(&p.agerMu)
	return p
}

func (p *nruPolicy) SetPageCount(n PageCount) {
	p.mu.Lock()
	p.r = make([]bool, n)
	p.m = make([]bool, n)
	p.mu.Unlock()
}

func (p *nruPolicy) Reset() {
	p.mu.Lock()
	for i := range p.r {
		p.r[i] = false
		p.m[i] = false
	}
	p.mu.Unlock()
}

func (p *nruPolicy) OnPageOperation(s SlotIndex, op PageOperation) {
	p.mu.Lock()
	if int(s) < len(p.r) {
		switch op {
		case PageRead:
			p.r[s] = true
		case PageWrite:
			p.r[s] = true
			p.m[s] = true
		case PageReplace:
			p.r[s] = true
			p.m[s] = false
		case PageReset:
			p.r[s] = false
			p.m[s] = false
		case PageFlush:
			p.m[s] = false
		}
	}
	p.mu.Unlock()
	p.ensureAgerStarted()
}

// GetReplacePage returns the slot with the smallest packed (M,R) value,
// scanning in slot order so the lowest index wins ties.
func (p *nruPolicy) GetReplacePage() SlotIndex {
	p.mu.Lock()
	defer p.mu.Unlock()
	best := InvalidSlot
	bestRank := 3
	for i := range p.r {
		rank := rankMR(p.m[i], p.r[i])
		if rank < bestRank {
			bestRank = rank
			best = SlotIndex(i)
			if rank == 0 {
				break
			}
		}
	}
	return best
}

func rankMR(m, r bool) int {
	rank := 0
	if m {
		rank += 2
	}
	if r {
		rank++
	}
	return rank
}

func (p *nruPolicy) SetParameter(name, value string) error {
	if name != "timeout" {
		return wrapErr(ErrParameterName)
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return wrapErr(ErrParameterValue)
	}
	p.agerMu.Lock()
	p.timeout = time.Duration(ms) * time.Millisecond
	p.agerCond.Broadcast()
	p.agerMu.Unlock()
	return nil
}

func (p *nruPolicy) GetParameter(name string) (string, error) {
	if name != "timeout" {
		return "", wrapErr(ErrParameterName)
	}
	p.agerMu.Lock()
	ms := p.timeout.Milliseconds()
	p.agerMu.Unlock()
	return strconv.FormatInt(ms, 10), nil
}

func (p *nruPolicy) ensureAgerStarted() {
	p.agerMu.Lock()
	defer p.agerMu.Unlock()
	if p.agerRunning {
		return
	}
	p.agerRunning = true
	p.agerDone = make(chan struct{})
	go p.age(p.agerDone)
}

func (p *nruPolicy) age(done chan struct{}) {
	for {
		p.agerMu.Lock()
		wait := p.timeout
		p.agerMu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
		}

		p.mu.Lock()
		for i := range p.r {
			p.r[i] = false
		}
		p.mu.Unlock()
	}
}

// Close stops the aging goroutine. Safe to call even if it never started.
func (p *nruPolicy) Close() {
	p.agerMu.Lock()
	if !p.agerRunning {
		p.agerMu.Unlock()
		return
	}
	p.agerRunning = false
	done := p.agerDone
	p.agerMu.Unlock()

	close(done)
}
