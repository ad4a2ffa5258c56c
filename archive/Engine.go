package archive

import (
	"crypto/md5"
	"sync"

	"github.com/zh-art/proyecto-servicios/wire"
)

// Archive is an immutable snapshot of the chat log: the full wire blob,
// its length, the message count, and the byte offset of the left edge of
// the sliding hash-domain window that the next mined record would use.
// Archives are never mutated in place after being handed to an Engine;
// Append and the ingest path each build a fresh one.
type Archive struct {
	bytes  []byte
	length int
	count  uint32
	offset int
}

// empty returns a fresh, valid archive of count 0 (scenario S1): a 5-byte
// blob containing only the type byte and a zero count, offset 5.
func empty() *Archive {
	b := make([]byte, headerSize)
	b[0] = wire.TypeArchiveResponse
	return &Archive{bytes: b, length: headerSize, count: 0, offset: headerSize}
}

// Bytes returns a defensive copy of the archive's wire blob, safe to hand
// to a caller that may retain it past the next mutation. The first byte
// already carries the archive-response type (4).
func (a *Archive) Bytes() []byte {
	out := make([]byte, a.length)
	copy(out, a.bytes[:a.length])
	return out
}

// Count returns the number of messages in the archive.
func (a *Archive) Count() uint32 { return a.count }

// Len returns the length of the archive's wire blob.
func (a *Archive) Len() int { return a.length }

// Engine holds the single canonical archive for a node and serializes
// access to it with a reader/writer lock: Serialize and status reads take
// the read lock, Append and Replace take (or briefly upgrade to) the write
// lock.
type Engine struct {
	mu      sync.RWMutex
	current *Archive
}

// NewEngine returns an Engine seeded with an empty archive (S1).
func NewEngine() *Engine {
	return &Engine{current: empty()}
}

// Count returns the current archive's message count.
func (e *Engine) Count() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.count
}

// IsEmpty reports whether the current archive has zero messages: an
// archive-request from a peer is ignored in this state (§4.5).
func (e *Engine) IsEmpty() bool {
	return e.Count() == 0
}

// Serialize returns a defensive copy of the current archive's wire blob,
// suitable for a direct send to a peer.
func (e *Engine) Serialize() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Bytes()
}

// incrementNonce treats nonce as a 128-bit little-endian counter and adds
// one, carrying into the next byte on overflow. Both a manual carry loop
// like this and a native 128-bit integer produce the identical wire nonce
// for a given attempt number; this implementation uses the carry loop
// since Go has no native 128-bit integer type.
func incrementNonce(nonce *[16]byte) {
	for i := 0; i < len(nonce); i++ {
		nonce[i]++
		if nonce[i] != 0 {
			return
		}
	}
}

// Append validates user-provided content, grows the current archive by one
// mined record, and installs the result as current. It reports false
// (without mutating the archive) if content fails validation.
//
// Mining treats the record's 16 nonce bytes as a little-endian 128-bit
// counter starting at zero: it hashes the sliding window ending at (but
// excluding) the record's own digest, and keeps incrementing the counter
// until the digest's first two bytes are both zero (§4.2 step 3).
func (e *Engine) Append(content []byte) bool {
	if len(content) < minContentLen || len(content) > maxContentLen {
		return false
	}
	for _, b := range content {
		if !validContentByte(b) {
			return false
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current
	recordLen := len(content) + recordOverhead
	newLen := cur.length + recordLen

	next := make([]byte, newLen)
	copy(next, cur.bytes[:cur.length])

	pos := cur.length
	next[pos] = byte(len(content))
	copy(next[pos+1:], content)

	nonceStart := pos + 1 + len(content)
	digestStart := nonceStart + 16

	var nonce [16]byte
	for {
		sum := md5.Sum(next[cur.offset:digestStart])
		if sum[0] == 0 && sum[1] == 0 {
			copy(next[digestStart:digestStart+16], sum[:])
			break
		}
		incrementNonce(&nonce)
		copy(next[nonceStart:nonceStart+16], nonce[:])
	}

	newCount := cur.count + 1
	newOffset := cur.offset
	if newCount >= windowRecords {
		newOffset += int(next[newOffset]) + recordOverhead
	}

	wire.PutUint32(next[1:5], newCount)

	e.current = &Archive{bytes: next, length: newLen, count: newCount, offset: newOffset}
	return true
}

// Replace installs candidate as the current archive iff candidate.count is
// strictly greater than the current count and candidate validates.
//
// The archive lock here is deliberately released between the cheap
// monotonicity pre-check and the (CPU-bound, lock-free) validation pass,
// then re-acquired as a write lock to commit — the release-then-reacquire
// upgrade spec.md §5 calls for when the implementation lacks a true
// upgradeable lock. The count is re-checked immediately after acquiring
// the write lock, closing the gap where a concurrent Append or Replace
// could have raced ahead during validation.
func (e *Engine) Replace(candidate *Archive) bool {
	e.mu.RLock()
	curCount := e.current.count
	e.mu.RUnlock()

	if candidate.count <= curCount {
		return false
	}

	offset, ok := validate(candidate.bytes, candidate.count)
	if !ok {
		return false
	}
	candidate.offset = offset

	e.mu.Lock()
	defer e.mu.Unlock()
	if candidate.count <= e.current.count {
		return false
	}
	e.current = candidate
	return true
}

// validate walks every record of blob left to right, recomputing the
// sliding hash-domain window exactly as §4.2 "Operation: validate"
// specifies, and returns the final offset value (the window's left edge
// for what would be the next record) and whether every digest checked out.
//
// begin is the left edge of the current hash-domain window, end is its
// right edge (it only ever advances). windowBytes mirrors end-begin so the
// MD5 input slice doesn't need to be recomputed from the two pointers.
func validate(blob []byte, count uint32) (offset int, ok bool) {
	begin := headerSize
	end := headerSize
	offset = headerSize
	windowBytes := 0

	for i := uint32(1); i <= count; i++ {
		if end >= len(blob) {
			return offset, false
		}
		length := int(blob[end])
		end += length + 17
		windowBytes += length + 17

		if end+2 > len(blob) {
			return offset, false
		}
		if blob[end] != 0 || blob[end+1] != 0 {
			return offset, false
		}

		if i > windowRecords-1 {
			offset += int(blob[offset]) + recordOverhead
		}
		if i > windowRecords {
			windowBytes -= int(blob[begin]) + recordOverhead
			begin += int(blob[begin]) + recordOverhead
		}

		sum := md5.Sum(blob[begin : begin+windowBytes])
		if end+16 > len(blob) {
			return offset, false
		}
		for j := 0; j < 16; j++ {
			if sum[j] != blob[end+j] {
				return offset, false
			}
		}

		end += 16
		windowBytes += 16
	}
	return offset, true
}

// Validate reports whether blob is a structurally and cryptographically
// sound archive: every digest matches MD5 of its specified sliding window
// and has a two-byte zero prefix. It is exported for ingest-path tests and
// for any caller that wants to pre-check a blob before building a
// candidate Archive out of it.
func Validate(blob []byte) bool {
	if len(blob) < headerSize || blob[0] != wire.TypeArchiveResponse {
		return false
	}
	count := uint32(blob[1])<<24 | uint32(blob[2])<<16 | uint32(blob[3])<<8 | uint32(blob[4])
	_, ok := validate(blob, count)
	return ok
}

// NewCandidate builds a fresh Archive object out of a blob already
// received and reassembled from the wire (see gossipnode's processArchive),
// without validating it — validation happens inside Replace so a rejected
// candidate never touches the engine's lock more than necessary.
func NewCandidate(blob []byte, count uint32) *Archive {
	return &Archive{bytes: blob, length: len(blob), count: count, offset: headerSize}
}
