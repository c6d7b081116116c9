// Package checkpoint runs the periodic snapshot sweep that sits outside
// the core's binding scope (the core fixes only the single-shot
// snapshot/restore contract, not the sweep policy): a ticker goroutine
// calls Directory.Snapshot on an interval and prunes dated snapshot files
// down to a retention count, the way a long-running process needs some
// durability driver even though the spec it sits on top of doesn't name
// one.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cbinding/numdir/internal/dirlog"
)

// Snapshotter is the subset of Directory's surface the sweeper needs.
type Snapshotter interface {
	Snapshot(path string) error
}

var datedNamePattern = regexp.MustCompile(`^(.+)\.(\d{8}T\d{6})$`)

// Sweeper periodically snapshots a directory to dated files under dir and
// deletes all but the most recent retain of them.
type Sweeper struct {
	dir      string
	baseName string
	interval time.Duration
	retain   int
	snap     Snapshotter
	log      *dirlog.Logger
	now      func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a Sweeper that writes snapshots under
// filepath.Dir(snapshotPath), named filepath.Base(snapshotPath) plus a
// timestamp suffix, keeping at most retain of them.
func New(snapshotPath string, interval time.Duration, retain int, snap Snapshotter, log *dirlog.Logger) *Sweeper {
	return &Sweeper{
		dir:      filepath.Dir(snapshotPath),
		baseName: filepath.Base(snapshotPath),
		interval: interval,
		retain:   retain,
		snap:     snap,
		log:      log,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Run starts the sweep loop in a background goroutine. Call Stop to end it.
func (s *Sweeper) Run() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sweepOnce(); err != nil && s.log != nil {
				s.log.Errorf("checkpoint sweep failed: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) snapshotPathFor(t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%s", s.baseName, t.UTC().Format("20060102T150405")))
}

func (s *Sweeper) sweepOnce() error {
	path := s.snapshotPathFor(s.now())
	if err := s.snap.Snapshot(path); err != nil {
		return fmt.Errorf("checkpoint: snapshot %s: %w", path, err)
	}
	return s.prune()
}

func (s *Sweeper) prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("checkpoint: list %s: %w", s.dir, err)
	}

	var dated []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !datedNamePattern.MatchString(e.Name()) {
			continue
		}
		if datedNamePattern.FindStringSubmatch(e.Name())[1] != s.baseName {
			continue
		}
		dated = append(dated, e.Name())
	}

	sort.Strings(dated) // timestamp suffix sorts lexicographically == chronologically

	if len(dated) <= s.retain {
		return nil
	}

	for _, name := range dated[:len(dated)-s.retain] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkpoint: remove %s: %w", name, err)
		}
	}
	return nil
}
