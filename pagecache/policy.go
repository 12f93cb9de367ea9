package pagecache

// ReplacementPolicy tracks per-slot usage events and nominates the next
// victim slot. Implementations are never called concurrently — the
// controller always holds its lock when invoking them (spec.md §5: "the
// policy is updated under the controller lock; policies are not internally
// thread-safe"), with the sole exception of NRU's background aging
// goroutine, which guards its own state with its own mutex.
type ReplacementPolicy interface {
	// SetPageCount resets internal state for n slots, establishing the
	// initial victim order.
	SetPageCount(n PageCount)

	// OnPageOperation updates internal state for an event on slot s. Never
	// fails.
	OnPageOperation(s SlotIndex, op PageOperation)

	// GetReplacePage returns the current victim nomination. Queue-based
	// policies must not mutate state here; CLOCK is the sole exception.
	GetReplacePage() SlotIndex

	// Reset reinitializes to the post-SetPageCount state.
	Reset()

	// SetParameter configures a policy-specific knob. Returns
	// ErrParameterName for an unrecognised name, ErrParameterValue for a
	// recognised name with an invalid value. Policies with no parameters
	// always return ErrParameterName.
	SetParameter(name string, value string) error

	// GetParameter reads back a previously set (or default) parameter.
	GetParameter(name string) (string, error)

	// Close releases any background resources (only NRU has any).
	Close()
}
