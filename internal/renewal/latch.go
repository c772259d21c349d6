package renewal

import "sync/atomic"

// Latch is a one-shot flag. It moves from unset to set at most once and is
// never reset, so the side effect guarded by [Latch.Trip] runs at most once
// for the lifetime of the latch.
type Latch struct {
	set atomic.Bool
}

// Trip sets the latch and reports whether this call was the one that set it.
func (l *Latch) Trip() bool {
	return l.set.CompareAndSwap(false, true)
}

// Tripped reports whether the latch is set.
func (l *Latch) Tripped() bool {
	return l.set.Load()
}
