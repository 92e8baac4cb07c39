package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// EventKey fingerprints one inbound chat event so duplicate deliveries of
// the same message can be dropped before they reach the session manager.
func EventKey(userID, payload string, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(payload))
	h.Write([]byte{0})
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Recent remembers the most recently seen keys with bounded memory: two
// generations of at most capacity keys each, the older one dropped whenever
// the current generation fills up. Duplicates only matter within a short
// redelivery window, so forgetting old keys is fine.
type Recent struct {
	mu       sync.Mutex
	capacity int
	current  map[string]struct{}
	previous map[string]struct{}
}

// NewRecent creates a bounded seen-key set holding up to 2*capacity keys.
func NewRecent(capacity int) *Recent {
	if capacity < 1 {
		capacity = 1
	}
	return &Recent{
		capacity: capacity,
		current:  make(map[string]struct{}),
		previous: map[string]struct{}{},
	}
}

// Seen records the key and reports whether it was already present.
func (r *Recent) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current[key]; ok {
		return true
	}
	if _, ok := r.previous[key]; ok {
		return true
	}

	if len(r.current) >= r.capacity {
		r.previous = r.current
		r.current = make(map[string]struct{})
	}
	r.current[key] = struct{}{}
	return false
}
