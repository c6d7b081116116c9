package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.jsonc"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numdir.jsonc")
	contents := `{
		// override the grow quantum
		"grow_quantum": 25,
		"snapshot_path": "/var/lib/numdir/snap.bin",
	}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GrowQuantum != 25 {
		t.Fatalf("expected grow_quantum 25, got %d", cfg.GrowQuantum)
	}
	if cfg.SnapshotPath != "/var/lib/numdir/snap.bin" {
		t.Fatalf("expected overridden snapshot path, got %q", cfg.SnapshotPath)
	}
	// Untouched fields should keep their default values.
	if cfg.PrefixLen != Default().PrefixLen {
		t.Fatalf("expected default prefix_len, got %d", cfg.PrefixLen)
	}
}

func TestDirectoryConfigProjection(t *testing.T) {
	cfg := Default()
	dc := cfg.DirectoryConfig()
	if dc.PrefixLen != cfg.PrefixLen || dc.MaxNumberLen != cfg.MaxNumberLen || dc.GrowQuantum != cfg.GrowQuantum {
		t.Fatalf("DirectoryConfig projection mismatch: %+v vs %+v", dc, cfg)
	}
}
