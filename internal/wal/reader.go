package wal

import (
	"io"
	"iter"
	"os"
)

// Reader replays every record across a directory's segments, in segment
// and then file order, the way the reference module's WALReader exposes a
// single logical stream over one log file.
type Reader struct {
	dir string
	ids []int
	cur int
	f   *os.File
}

// NewReader opens dir for replay. Call Iter to walk every record.
func NewReader(dir string) (*Reader, error) {
	ids, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{dir: dir, ids: ids}, nil
}

func (r *Reader) openNext() (bool, error) {
	if r.f != nil {
		_ = r.f.Close()
		r.f = nil
	}
	if r.cur >= len(r.ids) {
		return false, nil
	}
	f, err := os.Open(segmentPath(r.dir, r.ids[r.cur]))
	if err != nil {
		return false, err
	}
	r.f = f
	r.cur++
	return true, nil
}

// Iter yields every record across all segments in order, stopping at the
// first decode error (if any) after yielding it.
func (r *Reader) Iter() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			if r.f == nil {
				ok, err := r.openNext()
				if err != nil {
					yield(Record{}, err)
					return
				}
				if !ok {
					return
				}
			}

			rec, err := Decode(r.f)
			if err == io.EOF {
				_ = r.f.Close()
				r.f = nil
				continue
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Close releases the reader's open file, if any.
func (r *Reader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}
