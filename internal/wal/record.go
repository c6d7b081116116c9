// Package wal is an additive, best-effort write-ahead log sitting between
// periodic snapshots: every Insert/Delete the directory accepts is also
// appended here, so a crash between two snapshots loses at most the
// records written since the last one, not everything since the last
// snapshot's predecessor. It is not part of the snapshot/restore contract
// (§6); it only shortens the replay gap. Replay is safe to run from
// scratch because Insert overwrites and Delete-on-missing is a no-op, so
// re-applying an already-applied record changes nothing.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Op names the mutation a Record replays.
type Op byte

const (
	// OpInsert replays a Directory.Insert(Number, Alias).
	OpInsert Op = iota
	// OpDelete replays a Directory.Delete(Number).
	OpDelete
)

// invalidCRC marks a torn, not-yet-finalized record, the same sentinel
// pattern used to detect a write that was interrupted mid-append.
const invalidCRC = uint32(0xFFFFFFFF)

// maxRecordSize bounds a single record, guarding against a corrupt length
// field sending Decode off reading gigabytes.
const maxRecordSize = 1 << 20

// ErrCorrupt is returned by Decode when a record's checksum does not
// match its payload, or its length fields are self-inconsistent.
var ErrCorrupt = fmt.Errorf("wal: corrupt record")

// Record is one logged mutation.
type Record struct {
	Op     Op
	Number string
	Alias  string
}

// Encode writes the record to w in the format:
//
//	| CRC (4) | TOTAL_LEN (4) | OP (1) | NUM_LEN (4) | NUM | ALIAS_LEN (4) | ALIAS |
//
// CRC covers TOTAL_LEN and everything after it.
func (r Record) Encode(w io.Writer) error {
	numLen := uint32(len(r.Number))
	aliasLen := uint32(len(r.Alias))
	payloadLen := 1 + 4 + numLen + 4 + aliasLen
	totalLen := 4 + payloadLen

	if totalLen > maxRecordSize {
		return fmt.Errorf("wal: record too large")
	}

	buf := make([]byte, 0, 4+totalLen)
	var tmp [4]byte

	binary.LittleEndian.PutUint32(tmp[:], totalLen)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(r.Op))
	binary.LittleEndian.PutUint32(tmp[:], numLen)
	buf = append(buf, tmp[:]...)
	buf = append(buf, r.Number...)
	binary.LittleEndian.PutUint32(tmp[:], aliasLen)
	buf = append(buf, tmp[:]...)
	buf = append(buf, r.Alias...)

	crc := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(tmp[:], crc)

	if _, err := w.Write(tmp[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

func cleanEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

// Decode reads one record from r. It returns io.EOF (not wrapped) once
// the stream is exhausted, so callers can loop until EOF the way the
// reference module's WAL reader does.
func Decode(r io.Reader) (Record, error) {
	var tmp [4]byte

	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return Record{}, cleanEOF(err)
	}
	storedCRC := binary.LittleEndian.Uint32(tmp[:])
	if storedCRC == invalidCRC {
		return Record{}, io.EOF
	}

	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return Record{}, cleanEOF(err)
	}
	totalLen := binary.LittleEndian.Uint32(tmp[:])
	if totalLen < 5 || totalLen > maxRecordSize {
		return Record{}, ErrCorrupt
	}

	payload := make([]byte, totalLen)
	binary.LittleEndian.PutUint32(payload[0:4], totalLen)
	if _, err := io.ReadFull(r, payload[4:]); err != nil {
		return Record{}, cleanEOF(err)
	}

	if crc32.ChecksumIEEE(payload) != storedCRC {
		return Record{}, ErrCorrupt
	}

	pos := 4
	var rec Record
	rec.Op = Op(payload[pos])
	pos++

	if pos+4 > len(payload) {
		return Record{}, ErrCorrupt
	}
	numLen := binary.LittleEndian.Uint32(payload[pos:])
	pos += 4
	if uint32(len(payload)-pos) < numLen {
		return Record{}, ErrCorrupt
	}
	rec.Number = string(payload[pos : pos+int(numLen)])
	pos += int(numLen)

	if pos+4 > len(payload) {
		return Record{}, ErrCorrupt
	}
	aliasLen := binary.LittleEndian.Uint32(payload[pos:])
	pos += 4
	if uint32(len(payload)-pos) < aliasLen {
		return Record{}, ErrCorrupt
	}
	rec.Alias = string(payload[pos : pos+int(aliasLen)])

	return rec, nil
}
