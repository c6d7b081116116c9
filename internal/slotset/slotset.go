// Package slotset tracks which prefix slots in a directory currently hold a
// non-empty block. It is advisory: a scan over it tells a caller which
// slots are worth locking, but the authoritative answer always comes from
// the slot itself once locked, never from this bitmap alone.
package slotset

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Set is a concurrency-safe occupancy bitmap. bitset.BitSet's backing
// []uint64 is not safe for concurrent Set/Clear even when the flips are
// logically idempotent, so every access here goes through mu.
type Set struct {
	mu  sync.Mutex
	bits *bitset.BitSet
}

// New returns a Set sized for n slots, all initially clear.
func New(n uint) *Set {
	return &Set{bits: bitset.New(n)}
}

// Mark records that slot i now holds at least one entry.
func (s *Set) Mark(i uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bits.Set(i)
}

// Unmark records that slot i no longer holds any entry.
func (s *Set) Unmark(i uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bits.Clear(i)
}

// Test reports whether slot i is currently marked occupied.
func (s *Set) Test(i uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits.Test(i)
}

// NextSet returns the lowest marked slot index >= i, and whether one
// exists, mirroring bitset.BitSet.NextSet's contract under the set's lock.
func (s *Set) NextSet(i uint) (uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits.NextSet(i)
}

// PreviousSet returns the highest marked slot index <= i, and whether one
// exists. bitset.BitSet has no built-in reverse scan, so this walks down
// one bit at a time; callers only use it for short neighborhood scans, not
// full-directory sweeps.
func (s *Set) PreviousSet(i uint) (uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.bits.Test(i) {
			return i, true
		}
		if i == 0 {
			return 0, false
		}
		i--
	}
}

// Count returns the number of marked slots.
func (s *Set) Count() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits.Count()
}
