package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// ShortCodeFilter is a negative cache of issued short codes: a Bloom
// filter that lets the Resolver reject codes that were never created
// before spending a round trip on Redis or Postgres.
//
// False positives are expected and harmless (they fall through to the
// normal cache/store lookup, which correctly returns NotFound); false
// negatives must never happen, which is why every Add is synchronous with
// link creation rather than lazily populated from cache misses.
type ShortCodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewShortCodeFilter sizes the filter for an expected number of short
// codes with a 1% target false-positive rate.
func NewShortCodeFilter(expectedCodes uint) *ShortCodeFilter {
	return &ShortCodeFilter{filter: bloom.NewWithEstimates(expectedCodes, 0.01)}
}

// Add registers a short code as issued. Call this on link creation and
// when warming the filter from the store at startup.
func (f *ShortCodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MightContain reports whether code may have been issued. false is a
// definite answer (never issued); true may be a false positive.
func (f *ShortCodeFilter) MightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// Rebuild atomically swaps in a freshly populated filter, used for a
// periodic full rebuild from the store that bounds false-positive rate
// drift as codes are added and removed over the filter's lifetime.
func (f *ShortCodeFilter) Rebuild(codes []string, expectedCodes uint) {
	fresh := bloom.NewWithEstimates(expectedCodes, 0.01)
	for _, c := range codes {
		fresh.AddString(c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = fresh
}
