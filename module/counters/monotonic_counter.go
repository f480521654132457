package counters

import (
	"go.uber.org/atomic"
)

// StrictMonotonicCounter is a helper struct which implements a strict
// monotonic counter. It is implemented using atomic operations and doesn't
// allow to set a value which is lower than or equal to the already stored one.
type StrictMonotonicCounter struct {
	atomicCounter *atomic.Uint64
}

// NewMonotonicCounter creates a new counter with the initial value.
func NewMonotonicCounter(initialValue uint64) StrictMonotonicCounter {
	return StrictMonotonicCounter{
		atomicCounter: atomic.NewUint64(initialValue),
	}
}

// Set updates the value of the counter if it is strictly larger than the
// already stored one. The return value indicates whether the update was
// applied.
func (c StrictMonotonicCounter) Set(newValue uint64) bool {
	for {
		oldValue := c.atomicCounter.Load()
		if newValue <= oldValue {
			return false
		}
		if c.atomicCounter.CompareAndSwap(oldValue, newValue) {
			return true
		}
	}
}

// Value returns the current value of the counter.
func (c StrictMonotonicCounter) Value() uint64 {
	return c.atomicCounter.Load()
}
