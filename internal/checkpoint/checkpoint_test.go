package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSnapshotter struct {
	calls []string
}

func (f *fakeSnapshotter) Snapshot(path string) error {
	f.calls = append(f.calls, path)
	return os.WriteFile(path, []byte("snapshot"), 0o644)
}

func TestSweepOnceWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	snap := &fakeSnapshotter{}
	s := New(filepath.Join(dir, "numdir.snapshot"), time.Minute, 5, snap, nil)

	if err := s.sweepOnce(); err != nil {
		t.Fatalf("sweepOnce failed: %v", err)
	}
	if len(snap.calls) != 1 {
		t.Fatalf("expected one snapshot call, got %d", len(snap.calls))
	}
}

func TestPruneKeepsOnlyRetainCount(t *testing.T) {
	dir := t.TempDir()
	snap := &fakeSnapshotter{}
	s := New(filepath.Join(dir, "numdir.snapshot"), time.Minute, 2, snap, nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if err := s.sweepOnce(); err != nil {
			t.Fatalf("sweepOnce %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files retained, got %d", len(entries))
	}
}

func TestRunStopDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	snap := &fakeSnapshotter{}
	s := New(filepath.Join(dir, "numdir.snapshot"), 10*time.Millisecond, 3, snap, nil)

	s.Run()
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	if len(snap.calls) == 0 {
		t.Fatalf("expected at least one sweep to have run")
	}
}
