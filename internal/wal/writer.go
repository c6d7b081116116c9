package wal

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cbinding/numdir/internal/dirlog"
)

// Writer appends records asynchronously: callers hand a record to a
// buffered channel and a single background goroutine serializes writes to
// the active segment, rotating to a new one past maxSegmentSize. This
// mirrors the reference module's WALWriter: an unbuffered done channel
// signals shutdown, and the loop drains anything left in the channel
// before closing the file.
type Writer struct {
	dir            string
	maxSegmentSize int64
	log            *dirlog.Logger

	ch     chan Record
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	mu          sync.Mutex
	active      *os.File
	activeID    int
	activeBytes int64
}

// NewWriter opens (or creates) dir's segment directory and starts the
// background writer goroutine appending to its most recent segment.
func NewWriter(dir string, buffer int, maxSegmentSize int64, log *dirlog.Logger) (*Writer, error) {
	if maxSegmentSize <= 0 {
		maxSegmentSize = DefaultMaxSegmentSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create dir: %w", err)
	}

	ids, err := listSegments(dir)
	if err != nil {
		return nil, fmt.Errorf("wal: list segments: %w", err)
	}

	w := &Writer{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		log:            log,
		ch:             make(chan Record, buffer),
		done:           make(chan struct{}),
	}

	var activeID int
	if len(ids) > 0 {
		activeID = ids[len(ids)-1]
	} else {
		activeID = 1
	}

	f, err := os.OpenFile(segmentPath(dir, activeID), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: stat segment: %w", err)
	}

	w.active = f
	w.activeID = activeID
	w.activeBytes = info.Size()

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Write hands rec to the writer goroutine. It never blocks on disk I/O;
// it only blocks while the internal buffer is full. After Close it returns
// os.ErrClosed.
func (w *Writer) Write(rec Record) error {
	if w.closed.Load() {
		return os.ErrClosed
	}
	select {
	case w.ch <- rec:
		return nil
	case <-w.done:
		return os.ErrClosed
	}
}

// Close stops the background goroutine after it drains any buffered
// records, then closes the active segment.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active.Close()
}

func (w *Writer) loop() {
	defer w.wg.Done()

	for {
		select {
		case rec := <-w.ch:
			w.append(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.ch:
					w.append(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) append(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := rec.Encode(w.active); err != nil {
		if w.log != nil {
			w.log.Errorf("failed to append WAL record: %v", err)
		}
		return
	}
	_ = w.active.Sync()

	if info, err := w.active.Stat(); err == nil {
		w.activeBytes = info.Size()
	}

	if w.activeBytes >= w.maxSegmentSize {
		w.rotate()
	}
}

// rotate must be called with mu held.
func (w *Writer) rotate() {
	next := w.activeID + 1
	f, err := os.OpenFile(segmentPath(w.dir, next), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		if w.log != nil {
			w.log.Errorf("failed to rotate WAL segment: %v", err)
		}
		return
	}
	_ = w.active.Close()
	w.active = f
	w.activeID = next
	w.activeBytes = 0
}

// Prune deletes every segment strictly older than the currently active
// one, used after a successful snapshot since everything before it has
// been durably captured there.
func (w *Writer) Prune() error {
	w.mu.Lock()
	activeID := w.activeID
	w.mu.Unlock()

	ids, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id >= activeID {
			continue
		}
		if err := os.Remove(segmentPath(w.dir, id)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
