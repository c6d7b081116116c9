// Package snapshot implements the directory's deterministic binary dump
// and restore: a stream of per-slot records in ascending slot order, with
// no framing, magic bytes, version tag, or checksum — a consumer must know
// the directory size and field widths out of band.
//
// Record layout (repeated N times, N = directory size):
//
//	+------------------+------------------+------------------+
//	| prefix_value (8) | capacity    (8)  | used        (8)  |
//	+------------------+------------------+------------------+
//	| entry 0 (15) | entry 1 (15) | ... | entry used-1 (15)   |
//	+---------------------------------------------------------+
//
// All integers are big-endian uint64, matching the source format's network
// byte order. Empty slots write only the 24-byte header with capacity =
// used = 0.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/cbinding/numdir/internal/block"
	"github.com/cbinding/numdir/internal/digits"
	"github.com/cbinding/numdir/internal/dirstatus"
)

const headerSize = 24

// SlotSource is the subset of Directory's surface the codec needs. It is
// declared here, not in the directory package, so directory never needs to
// import snapshot for its own type definitions — only to call Write/Restore.
type SlotSource interface {
	NumSlots() int
	SlotPrefix(i int) int
	SlotSnapshot(i int) (capacity, used int, entries []block.Entry, err error)
	RestoreSlot(i int, capacity, used int, entries []block.Entry) error
}

// Write dumps every slot of src to path, in ascending slot order, via a
// temp file and atomic rename so a crash mid-write never leaves a
// truncated file at path.
func Write(src SlotSource, path string) error {
	var buf bytes.Buffer

	n := src.NumSlots()
	for i := 0; i < n; i++ {
		capacity, used, entries, err := src.SlotSnapshot(i)
		if err != nil {
			return fmt.Errorf("snapshot: slot %d: %w", i, dirstatus.IoError)
		}

		var header [headerSize]byte
		binary.BigEndian.PutUint64(header[0:8], uint64(src.SlotPrefix(i)))
		binary.BigEndian.PutUint64(header[8:16], uint64(capacity))
		binary.BigEndian.PutUint64(header[16:24], uint64(used))
		buf.Write(header[:])

		for _, e := range entries {
			buf.Write(e[:])
		}
	}

	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, dirstatus.IoError)
	}
	return nil
}

// Restore replaces src's slots with the records read from path, in
// ascending slot order. It is the caller's responsibility to ensure no
// concurrent mutator touches src during restore.
func Restore(src SlotSource, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", path, dirstatus.IoError)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	n := src.NumSlots()

	for i := 0; i < n; i++ {
		var header [headerSize]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return fmt.Errorf("snapshot: slot %d header: %w", i, dirstatus.CorruptSnapshot)
		}

		prefixValue := binary.BigEndian.Uint64(header[0:8])
		capacity := binary.BigEndian.Uint64(header[8:16])
		used := binary.BigEndian.Uint64(header[16:24])

		if int(prefixValue) != src.SlotPrefix(i) {
			return fmt.Errorf("snapshot: slot %d: %w", i, dirstatus.CorruptSnapshot)
		}

		entries := make([]block.Entry, used)
		for j := uint64(0); j < used; j++ {
			if _, err := io.ReadFull(r, entries[j][:]); err != nil {
				return fmt.Errorf("snapshot: slot %d entry %d: %w", i, j, dirstatus.CorruptSnapshot)
			}
		}

		if err := src.RestoreSlot(i, int(capacity), int(used), entries); err != nil {
			return fmt.Errorf("snapshot: slot %d: %w", i, err)
		}
	}

	return nil
}

// WriteText dumps src as human-readable "number alias" lines, one entry
// per line, where number is the slot's prefix followed by the postfix. It is a debugging/inspection aid, not part
// of the bit-exact restore contract, and is never consumed by Restore.
func WriteText(w io.Writer, src SlotSource) error {
	bw := bufio.NewWriter(w)

	n := src.NumSlots()
	for i := 0; i < n; i++ {
		_, used, entries, err := src.SlotSnapshot(i)
		if err != nil {
			return fmt.Errorf("snapshot: slot %d: %w", i, dirstatus.IoError)
		}
		if used == 0 {
			continue
		}

		prefix := src.SlotPrefix(i)
		for _, e := range entries {
			postfix, err := digits.Unpack(e.Postfix())
			if err != nil {
				return fmt.Errorf("snapshot: decode postfix: %w", dirstatus.EncodingError)
			}
			alias, err := digits.Unpack(e.Alias())
			if err != nil {
				return fmt.Errorf("snapshot: decode alias: %w", dirstatus.EncodingError)
			}
			if _, err := fmt.Fprintf(bw, "%d%s %s\n", prefix, postfix, alias); err != nil {
				return fmt.Errorf("snapshot: write text: %w", dirstatus.IoError)
			}
		}
	}

	return bw.Flush()
}
