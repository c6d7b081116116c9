package block

import (
	"math/rand"
	"testing"
)

const quantum = 10

func postfixOf(n int) []byte {
	p := make([]byte, PostfixCap)
	p[0] = 3
	p[1] = byte(n/100%10)<<4 | byte(n/10%10)
	p[2] = byte(n%10) << 4
	return p
}

func TestEmptyBlock(t *testing.T) {
	b := New(quantum)

	if b.Len() != 0 {
		t.Fatalf("expected len 0, got %d", b.Len())
	}
	if b.Cap() != 0 {
		t.Fatalf("expected cap 0, got %d", b.Cap())
	}
	if _, found := b.Search(postfixOf(1)); found {
		t.Fatalf("expected not found in empty block")
	}
}

func TestInsertAndSearchSingle(t *testing.T) {
	b := New(quantum)

	b.Insert(postfixOf(5), make([]byte, AliasCap))

	idx, found := b.Search(postfixOf(5))
	if !found || idx != 0 {
		t.Fatalf("expected found at 0, got idx=%d found=%v", idx, found)
	}
}

func TestOverwriteExistingKey(t *testing.T) {
	b := New(quantum)

	alias1 := make([]byte, AliasCap)
	alias1[0] = 1
	alias1[1] = 0x10
	b.Insert(postfixOf(5), alias1)

	alias2 := make([]byte, AliasCap)
	alias2[0] = 1
	alias2[1] = 0x90
	overwrote := b.Insert(postfixOf(5), alias2)

	if !overwrote {
		t.Fatalf("expected overwrote=true")
	}
	if b.Len() != 1 {
		t.Fatalf("expected len 1, got %d", b.Len())
	}

	e := b.EntryAt(0)
	if e.Alias()[1] != 0x90 {
		t.Fatalf("alias not overwritten")
	}
}

func TestOrderingWithinShard(t *testing.T) {
	b := New(quantum)

	offsets := []int{0, 5, 10, 15, 20, 25, 30, 35, 12, 33, 3, 2}
	for _, off := range offsets {
		b.Insert(postfixOf(off), make([]byte, AliasCap))
	}

	if b.Len() != len(offsets) {
		t.Fatalf("expected len %d, got %d", len(offsets), b.Len())
	}

	for i := 1; i < b.Len(); i++ {
		prev := b.EntryAt(i - 1)
		cur := b.EntryAt(i)
		if string(prev.Postfix()) >= string(cur.Postfix()) {
			t.Fatalf("entries not strictly increasing at index %d", i)
		}
	}
}

func TestDeleteToEmpty(t *testing.T) {
	b := New(quantum)
	b.Insert(postfixOf(1), make([]byte, AliasCap))

	removed, empty := b.Remove(postfixOf(1))
	if !removed || !empty {
		t.Fatalf("expected removed=true empty=true, got removed=%v empty=%v", removed, empty)
	}
	if b.Len() != 0 {
		t.Fatalf("expected len 0 after delete, got %d", b.Len())
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	b := New(quantum)
	b.Insert(postfixOf(1), make([]byte, AliasCap))

	removed, _ := b.Remove(postfixOf(2))
	if removed {
		t.Fatalf("expected removed=false for absent key")
	}
	if b.Len() != 1 {
		t.Fatalf("expected len unchanged, got %d", b.Len())
	}
}

func TestCapacityInvariants(t *testing.T) {
	b := New(quantum)

	for i := 0; i < 37; i++ {
		b.Insert(postfixOf(i), make([]byte, AliasCap))

		if b.Cap()%quantum != 0 {
			t.Fatalf("cap %d not a multiple of quantum %d", b.Cap(), quantum)
		}
		if b.Cap()-b.Len() >= quantum {
			t.Fatalf("overprovisioned: cap=%d len=%d quantum=%d", b.Cap(), b.Len(), quantum)
		}
		if b.Len() > b.Cap() {
			t.Fatalf("len %d exceeds cap %d", b.Len(), b.Cap())
		}
	}

	for i := 0; i < 37; i++ {
		b.Remove(postfixOf(i))

		if b.Len() == 0 {
			if b.Cap() != 0 {
				t.Fatalf("expected cap 0 once empty, got %d", b.Cap())
			}
			continue
		}
		if b.Cap()%quantum != 0 {
			t.Fatalf("cap %d not a multiple of quantum %d after remove", b.Cap(), quantum)
		}
		if b.Cap()-b.Len() >= quantum {
			t.Fatalf("overprovisioned after remove: cap=%d len=%d", b.Cap(), b.Len())
		}
	}
}

func TestSearchInsertionPoint(t *testing.T) {
	b := New(quantum)
	for _, off := range []int{2, 4, 6, 8} {
		b.Insert(postfixOf(off), make([]byte, AliasCap))
	}

	tests := []struct {
		key      int
		wantIdx  int
		wantHit  bool
	}{
		{1, 0, false},
		{2, 0, true},
		{3, 1, false},
		{8, 3, true},
		{9, 4, false},
	}

	for _, tt := range tests {
		idx, found := b.Search(postfixOf(tt.key))
		if found != tt.wantHit || idx != tt.wantIdx {
			t.Fatalf("Search(%d): got idx=%d found=%v, want idx=%d found=%v",
				tt.key, idx, found, tt.wantIdx, tt.wantHit)
		}
	}
}

func TestCopyRangeRejectsBackwards(t *testing.T) {
	b := New(quantum)
	for _, off := range []int{1, 2, 3} {
		b.Insert(postfixOf(off), make([]byte, AliasCap))
	}

	if _, err := b.CopyRange(2, 1); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestCopyRangeAcceptsSingleElement(t *testing.T) {
	b := New(quantum)
	for _, off := range []int{1, 2, 3} {
		b.Insert(postfixOf(off), make([]byte, AliasCap))
	}

	sub, err := b.CopyRange(1, 1)
	if err != nil {
		t.Fatalf("expected single-element range to be accepted: %v", err)
	}
	if sub.Len() != 1 {
		t.Fatalf("expected len 1, got %d", sub.Len())
	}
}

func TestCloneIsDisjoint(t *testing.T) {
	b := New(quantum)
	b.Insert(postfixOf(1), make([]byte, AliasCap))

	clone := b.Clone()
	b.Insert(postfixOf(2), make([]byte, AliasCap))

	if clone.Len() != 1 {
		t.Fatalf("clone should not observe later mutations, got len %d", clone.Len())
	}
}

func TestFromRawRoundTrip(t *testing.T) {
	b := New(quantum)
	for _, off := range []int{1, 2, 3, 4, 5} {
		b.Insert(postfixOf(off), make([]byte, AliasCap))
	}

	capacity, used, entries := b.Raw()

	rebuilt, err := FromRaw(quantum, capacity, used, entries)
	if err != nil {
		t.Fatalf("FromRaw failed: %v", err)
	}
	if rebuilt.Len() != b.Len() || rebuilt.Cap() != b.Cap() {
		t.Fatalf("mismatch after FromRaw: got len=%d cap=%d, want len=%d cap=%d",
			rebuilt.Len(), rebuilt.Cap(), b.Len(), b.Cap())
	}
	for i := 0; i < b.Len(); i++ {
		if rebuilt.EntryAt(i) != b.EntryAt(i) {
			t.Fatalf("entry %d mismatch after FromRaw", i)
		}
	}
}

func TestRandomizedInsertDeleteMaintainsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := New(quantum)
	present := map[int]bool{}

	for i := 0; i < 2000; i++ {
		n := rng.Intn(200)
		if rng.Intn(2) == 0 {
			b.Insert(postfixOf(n), make([]byte, AliasCap))
			present[n] = true
		} else {
			b.Remove(postfixOf(n))
			delete(present, n)
		}

		if b.Len() != len(present) {
			t.Fatalf("len mismatch: block has %d, model has %d", b.Len(), len(present))
		}
		if b.Cap()%quantum != 0 {
			t.Fatalf("cap %d not a multiple of quantum", b.Cap())
		}
		if b.Len() > 0 && b.Cap()-b.Len() >= quantum {
			t.Fatalf("overprovisioned: cap=%d len=%d", b.Cap(), b.Len())
		}
		for j := 1; j < b.Len(); j++ {
			if string(b.EntryAt(j-1).Postfix()) >= string(b.EntryAt(j).Postfix()) {
				t.Fatalf("ordering violated at %d", j)
			}
		}
	}
}
