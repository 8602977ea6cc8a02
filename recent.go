// recent.go
package main

import (
	"sync"
	"time"
)

// RecentDelivery is the operator-facing summary of one webhook delivery kept
// for debugging. Raw payloads are not retained beyond this ring.
type RecentDelivery struct {
	At        time.Time `json:"at"`
	RequestID string    `json:"request_id"`
	Object    string    `json:"object"`
	Entries   int       `json:"entries"`
	Events    int       `json:"events"`
	Bytes     int       `json:"bytes"`
}

// recentRing is a fixed-size, thread-safe ring of the most recent
// deliveries. Oldest entries are overwritten; there is no other eviction.
type recentRing struct {
	mu   sync.Mutex
	buf  []RecentDelivery
	next int
	full bool
}

func newRecentRing(size int) *recentRing {
	if size <= 0 {
		size = 50
	}
	return &recentRing{buf: make([]RecentDelivery, size)}
}

func (r *recentRing) Add(d RecentDelivery) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the retained deliveries, newest first.
func (r *recentRing) Snapshot() []RecentDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	out := make([]RecentDelivery, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}
