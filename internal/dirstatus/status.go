// Package dirstatus defines the small error-kind enumeration the directory
// surfaces to its callers. The core never retries or swallows a failure; it
// reports one of these kinds, wrapped with context via fmt.Errorf("%w", ...)
// where a caller wants errors.Is to still see the kind.
package dirstatus

import "fmt"

// Status is a comparable error kind. Two Status values are equal iff they
// name the same condition, so callers compare with errors.Is(err, dirstatus.NotFound).
type Status int

const (
	// TooShort means a number was shorter than the prefix length.
	TooShort Status = iota + 1
	// Illegal means a number or alias held non-digit characters, exceeded
	// the configured maximum length, or its prefix parsed below the
	// directory's offset.
	Illegal
	// AbsentOk means the operation asked about a missing key and that is
	// not a failure (lookup, delete).
	AbsentOk
	// NotFound means a windowed scan needed a pivot and the directory held
	// no entry anywhere.
	NotFound
	// NotEnoughData means a windowed query returned fewer entries than
	// requested; the partial result is still returned alongside this
	// status.
	NotEnoughData
	// EncodingError means packing a postfix or alias failed.
	EncodingError
	// CorruptSnapshot means restore found an unexpected slot header or a
	// truncated payload.
	CorruptSnapshot
	// IoError means the underlying file access failed.
	IoError
)

var names = map[Status]string{
	TooShort:        "number shorter than prefix",
	Illegal:         "illegal number",
	AbsentOk:        "no entry for key",
	NotFound:        "no entry anywhere",
	NotEnoughData:   "fewer entries available than requested",
	EncodingError:   "failed to encode postfix or alias",
	CorruptSnapshot: "corrupt snapshot",
	IoError:         "io error",
}

// Error implements the error interface so a Status can be returned and
// compared directly, or wrapped with fmt.Errorf("...: %w", status).
func (s Status) Error() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("dirstatus: unknown status %d", int(s))
}
