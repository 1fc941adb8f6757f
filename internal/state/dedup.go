package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator tracks probe keys seen during one scan using a Bloom filter
// backed by an exact set.
type Deduplicator struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	exact  map[string]struct{} // For exact matching when Bloom filter might give false positives
}

// NewDeduplicator creates a new deduplicator.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 256 {
		estimatedItems = 256
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}, estimatedItems),
	}
}

// Seen reports whether key was already recorded and records it if not.
func (d *Deduplicator) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Fast check with Bloom filter, exact check for false positives
	if d.filter.TestString(key) {
		if _, exists := d.exact[key]; exists {
			return true
		}
	}
	d.filter.AddString(key)
	d.exact[key] = struct{}{}
	return false
}

// Count returns the number of unique keys seen.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.exact)
}
