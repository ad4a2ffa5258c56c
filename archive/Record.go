// Package archive implements the hash-chained chat archive: the on-wire
// record layout, the sliding-window proof-of-work mining search, and
// validation of a candidate archive received from a peer.
//
// A single message record is length(1) || content(length) || nonce(16) ||
// digest(16). An archive blob is type(1)=4 || count(4, big-endian) ||
// records. See original_source/archive.c for the reference byte layout
// this package ports.
package archive

import "fmt"

// headerSize is the type byte plus the 4-byte big-endian count.
const headerSize = 5

// recordOverhead is the fixed per-record cost: 1 length byte + 16 nonce
// bytes + 16 digest bytes. Total record size is len(content) + recordOverhead.
const recordOverhead = 33

// windowRecords is the maximum number of trailing records kept inside the
// MD5 hash domain.
const windowRecords = 20

// minContentLen and maxContentLen bound a single message's content length.
const (
	minContentLen = 1
	maxContentLen = 255
)

// validContentByte reports whether b is printable ASCII, per the content
// validity invariant: every content byte must be in [32, 126].
func validContentByte(b byte) bool {
	return b >= 32 && b <= 126
}

// ErrInvalidContent is returned by ParseContent for empty, oversized, or
// non-printable input.
type ErrInvalidContent struct {
	Reason string
}

func (e *ErrInvalidContent) Error() string {
	return fmt.Sprintf("archive: invalid message content: %s", e.Reason)
}

// ParseContent scans line for the message content a user typed: bytes up
// to (not including) the first newline or NUL terminate the scan. Every
// scanned byte must be printable ASCII and there must be at least one,
// and at most 255. Returns the validated content slice (sharing line's
// backing array; callers needing an independent copy must clone it).
func ParseContent(line []byte) ([]byte, error) {
	n := 0
	for n < len(line) {
		b := line[n]
		if b == '\n' || b == 0 {
			break
		}
		if !validContentByte(b) {
			return nil, &ErrInvalidContent{Reason: fmt.Sprintf("byte 0x%02x at offset %d is not printable ASCII", b, n)}
		}
		n++
		if n > maxContentLen {
			return nil, &ErrInvalidContent{Reason: "message exceeds 255 bytes"}
		}
	}
	if n == 0 {
		return nil, &ErrInvalidContent{Reason: "empty message"}
	}
	return line[:n], nil
}
