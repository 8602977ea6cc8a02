package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentRingBoundedNewestFirst(t *testing.T) {
	ring := newRecentRing(5)

	for i := 1; i <= 7; i++ {
		ring.Add(RecentDelivery{RequestID: fmt.Sprintf("req%d", i), At: time.Now()})
	}

	got := ring.Snapshot()
	require.Len(t, got, 5, "ring keeps only the newest entries")
	assert.Equal(t, "req7", got[0].RequestID)
	assert.Equal(t, "req3", got[4].RequestID)
}

func TestRecentRingPartialFill(t *testing.T) {
	ring := newRecentRing(10)
	ring.Add(RecentDelivery{RequestID: "a"})
	ring.Add(RecentDelivery{RequestID: "b"})

	got := ring.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RequestID)
	assert.Equal(t, "a", got[1].RequestID)
}

func TestRecentRingConcurrentAdds(t *testing.T) {
	ring := newRecentRing(16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ring.Add(RecentDelivery{RequestID: fmt.Sprintf("w%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, ring.Snapshot(), 16)
}
