// Package config reads the core's construction knobs from a
// JSON-with-comments file, following the pack's layered-precedence
// pattern: defaults, then an optional file, then CLI overrides applied by
// the caller last.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"

	"github.com/cbinding/numdir/internal/directory"
)

// Config is the file-level representation of directory.Config plus the
// ambient knobs the surrounding host needs (snapshot location, checkpoint
// sweep interval/retention, WAL location).
type Config struct {
	PrefixLen    int    `json:"prefix_len,omitempty"`
	MaxNumberLen int    `json:"max_number_len,omitempty"`
	GrowQuantum  int    `json:"grow_quantum,omitempty"`
	SnapshotPath string `json:"snapshot_path,omitempty"`

	FilterExpectedItems     uint    `json:"filter_expected_items,omitempty"`
	FilterFalsePositiveRate float64 `json:"filter_false_positive_rate,omitempty"`

	WALDir               string `json:"wal_dir,omitempty"`
	CheckpointIntervalSec int    `json:"checkpoint_interval_sec,omitempty"`
	CheckpointRetain      int    `json:"checkpoint_retain,omitempty"`
}

// Default returns the built-in defaults, matching directory.DefaultConfig
// plus sensible ambient values.
func Default() Config {
	d := directory.DefaultConfig()
	return Config{
		PrefixLen:               d.PrefixLen,
		MaxNumberLen:            d.MaxNumberLen,
		GrowQuantum:             d.GrowQuantum,
		SnapshotPath:            "numdir.snapshot",
		FilterExpectedItems:     d.FilterExpectedItems,
		FilterFalsePositiveRate: d.FilterFalsePositiveRate,
		WALDir:                  "numdir-wal",
		CheckpointIntervalSec:   300,
		CheckpointRetain:        5,
	}
}

// Load reads path (JSON with // comments and trailing commas, per
// hujson.Standardize) and merges it over Default(). A missing file is not
// an error; it just means defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid JSONC in %s: %w", path, err)
	}

	var file Config
	if err := json.Unmarshal(standardized, &file); err != nil {
		return Config{}, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}

	return merge(cfg, file), nil
}

// merge overlays any non-zero field of overlay onto base, the same
// field-by-field precedence rule the pack's config reader uses.
func merge(base, overlay Config) Config {
	if overlay.PrefixLen != 0 {
		base.PrefixLen = overlay.PrefixLen
	}
	if overlay.MaxNumberLen != 0 {
		base.MaxNumberLen = overlay.MaxNumberLen
	}
	if overlay.GrowQuantum != 0 {
		base.GrowQuantum = overlay.GrowQuantum
	}
	if overlay.SnapshotPath != "" {
		base.SnapshotPath = overlay.SnapshotPath
	}
	if overlay.FilterExpectedItems != 0 {
		base.FilterExpectedItems = overlay.FilterExpectedItems
	}
	if overlay.FilterFalsePositiveRate != 0 {
		base.FilterFalsePositiveRate = overlay.FilterFalsePositiveRate
	}
	if overlay.WALDir != "" {
		base.WALDir = overlay.WALDir
	}
	if overlay.CheckpointIntervalSec != 0 {
		base.CheckpointIntervalSec = overlay.CheckpointIntervalSec
	}
	if overlay.CheckpointRetain != 0 {
		base.CheckpointRetain = overlay.CheckpointRetain
	}
	return base
}

// CheckpointInterval returns the configured sweep interval as a duration.
func (c Config) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSec) * time.Second
}

// DirectoryConfig projects the directory-relevant fields into
// directory.Config for Directory construction.
func (c Config) DirectoryConfig() directory.Config {
	return directory.Config{
		PrefixLen:               c.PrefixLen,
		MaxNumberLen:            c.MaxNumberLen,
		GrowQuantum:             c.GrowQuantum,
		FilterExpectedItems:     c.FilterExpectedItems,
		FilterFalsePositiveRate: c.FilterFalsePositiveRate,
	}
}
