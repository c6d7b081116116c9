package slotset

import "testing"

func TestMarkUnmarkTest(t *testing.T) {
	s := New(64)

	if s.Test(5) {
		t.Fatalf("expected slot 5 clear initially")
	}

	s.Mark(5)
	if !s.Test(5) {
		t.Fatalf("expected slot 5 marked")
	}

	s.Unmark(5)
	if s.Test(5) {
		t.Fatalf("expected slot 5 clear after unmark")
	}
}

func TestNextSet(t *testing.T) {
	s := New(64)
	s.Mark(3)
	s.Mark(10)
	s.Mark(40)

	idx, ok := s.NextSet(0)
	if !ok || idx != 3 {
		t.Fatalf("expected 3, got %d ok=%v", idx, ok)
	}

	idx, ok = s.NextSet(4)
	if !ok || idx != 10 {
		t.Fatalf("expected 10, got %d ok=%v", idx, ok)
	}

	idx, ok = s.NextSet(41)
	if ok {
		t.Fatalf("expected no further marked slot, got %d", idx)
	}
}

func TestPreviousSet(t *testing.T) {
	s := New(64)
	s.Mark(3)
	s.Mark(10)
	s.Mark(40)

	idx, ok := s.PreviousSet(63)
	if !ok || idx != 40 {
		t.Fatalf("expected 40, got %d ok=%v", idx, ok)
	}

	idx, ok = s.PreviousSet(9)
	if !ok || idx != 3 {
		t.Fatalf("expected 3, got %d ok=%v", idx, ok)
	}

	idx, ok = s.PreviousSet(2)
	if ok {
		t.Fatalf("expected no marked slot at or before 2, got %d", idx)
	}
}

func TestCount(t *testing.T) {
	s := New(64)
	s.Mark(1)
	s.Mark(2)
	s.Mark(3)
	s.Unmark(2)

	if c := s.Count(); c != 2 {
		t.Fatalf("expected count 2, got %d", c)
	}
}
