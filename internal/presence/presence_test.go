package presence

import "testing"

func TestAddAndMayContain(t *testing.T) {
	f := New(1000, 0.01)

	if f.MayContain("5551234") {
		t.Fatalf("expected absent number to (almost certainly) test false before any Add")
	}

	f.Add("5551234")
	if !f.MayContain("5551234") {
		t.Fatalf("expected added number to test true")
	}
}

func TestResetClearsPopulation(t *testing.T) {
	f := New(1000, 0.01)
	f.Add("5551234")

	f.Reset(1000, 0.01)
	if f.MayContain("5551234") {
		t.Fatalf("expected filter to be empty after reset")
	}
}
