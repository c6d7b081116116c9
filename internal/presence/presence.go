// Package presence wraps a Bloom filter used as an advisory, directory-wide
// "definitely absent" pre-check. It is never consulted by Lookup's
// authoritative path; it only lets a caller skip the prefix/shard walk
// early when a number could not possibly be present.
package presence

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter is a concurrency-safe Bloom filter over directory numbers.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// New returns a filter sized for expectedItems entries at the given target
// false-positive rate.
func New(expectedItems uint, falsePositiveRate float64) *Filter {
	return &Filter{bf: bloom.NewWithEstimates(expectedItems, falsePositiveRate)}
}

// Add records number as present. Callers never need to remove a number:
// a false "maybe present" after a delete only costs a wasted shard lookup,
// never an incorrect answer.
func (f *Filter) Add(number string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(number)
}

// MayContain reports whether number could be present. false is a
// definitive answer; true means "check the authoritative index."
func (f *Filter) MayContain(number string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(number)
}

// Reset clears the filter and re-sizes it for a fresh population, used
// after a full restore from snapshot so the filter reflects the restored
// key set rather than whatever was inserted before.
func (f *Filter) Reset(expectedItems uint, falsePositiveRate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf = bloom.NewWithEstimates(expectedItems, falsePositiveRate)
}
