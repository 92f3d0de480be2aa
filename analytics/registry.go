package analytics

import (
	"sync"
	"time"
)

type request struct {
	PostID   string
	Accessed time.Time
}

// Registry remembers the last post each client looked at, so a page refresh is not recorded
// as another visit. Safe for concurrent use.
type Registry struct {
	sync.RWMutex
	requests map[string]request // key is the client IP
	maxAge   time.Duration
	// entries are only expired beyond this size
	threshold int
}

// NewRegistry returns an empty registry
func NewRegistry(maxAge time.Duration, threshold int) *Registry {
	return &Registry{
		requests:  make(map[string]request),
		maxAge:    maxAge,
		threshold: threshold,
	}
}

// Continue records the request and reports whether it is a new visit
// (false when the client's previous request was for the same post)
func (r *Registry) Continue(client string, postID string, now time.Time) bool {
	r.Lock()
	defer r.Unlock()

	prev, seen := r.requests[client]
	r.requests[client] = request{PostID: postID, Accessed: now}

	return !seen || prev.PostID != postID
}

// Flush removes requests older than maxAge once the registry grew beyond its threshold,
// usually called by a ticker
func (r *Registry) Flush(now time.Time) int {
	r.Lock()
	defer r.Unlock()

	if len(r.requests) <= r.threshold {
		return 0
	}

	removed := 0
	for key, value := range r.requests {
		if now.Sub(value.Accessed) > r.maxAge {
			delete(r.requests, key)
			removed++
		}
	}
	return removed
}

// Count returns how many different clients are currently tracked
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.requests)
}
