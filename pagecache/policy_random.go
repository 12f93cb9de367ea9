package pagecache

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand"
	"strconv"
)

// randomPolicy samples the victim uniformly from [0, page_count) on every
// nomination. Events carry no information for this policy.
type randomPolicy struct {
	count PageCount
	seed  int64
	rng   *mrand.Rand
}

func newRandomPolicy() ReplacementPolicy {
	p := &randomPolicy{}
	p.reseed(0)
	return p
}

func (p *randomPolicy) SetPageCount(n PageCount) { p.count = n }

func (p *randomPolicy) Reset() {}

func (p *randomPolicy) OnPageOperation(s SlotIndex, op PageOperation) {}

func (p *randomPolicy) GetReplacePage() SlotIndex {
	if p.count == 0 {
		return InvalidSlot
	}
	return SlotIndex(p.rng.Int63n(int64(p.count)))
}

func (p *randomPolicy) SetParameter(name, value string) error {
	if name != "seed" {
		return wrapErr(ErrParameterName)
	}
	seed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return wrapErr(ErrParameterValue)
	}
	p.reseed(seed)
	return nil
}

func (p *randomPolicy) GetParameter(name string) (string, error) {
	if name != "seed" {
		return "", wrapErr(ErrParameterName)
	}
	return strconv.FormatInt(p.seed, 10), nil
}

func (p *randomPolicy) Close() {}

// reseed installs a fresh Mersenne-Twister-class generator. A zero seed
// means "reseed from a nondeterministic source" (spec.md §4.1); crypto/rand
// supplies the entropy since the aging-free policies have no other source
// of randomness available under the controller lock.
func (p *randomPolicy) reseed(seed int64) {
	p.seed = seed
	if seed == 0 {
		seed = nondeterministicSeed()
	}
	p.rng = mrand.New(mrand.NewSource(seed))
}

func nondeterministicSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fallbackSeed()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

func fallbackSeed() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return 1
	}
	return n.Int64()
}
