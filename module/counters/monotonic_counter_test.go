package counters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonotonicCounterSet(t *testing.T) {
	counter := NewMonotonicCounter(3)
	require.Equal(t, uint64(3), counter.Value())

	require.True(t, counter.Set(4))
	require.Equal(t, uint64(4), counter.Value())

	// equal and smaller values are refused
	require.False(t, counter.Set(4))
	require.False(t, counter.Set(2))
	require.Equal(t, uint64(4), counter.Value())
}

func TestMonotonicCounterConcurrentSet(t *testing.T) {
	counter := NewMonotonicCounter(0)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			counter.Set(v)
		}(uint64(i))
	}
	wg.Wait()

	require.Equal(t, uint64(100), counter.Value())
}
