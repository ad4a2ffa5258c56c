// Package wire holds the on-the-wire constants and byte-level helpers
// shared by the archive, peerlist and gossipnode packages: the message
// type bytes, big-endian integer codecs, and a full-read helper since a
// short read from a peer is always a fatal protocol error, never a
// partial one to retry.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message type bytes. Every logical message on the wire is prefixed by
// exactly one of these.
const (
	TypePeerRequest     byte = 0x01
	TypePeerList        byte = 0x02
	TypeArchiveRequest  byte = 0x03
	TypeArchiveResponse byte = 0x04
)

// Port is the fixed TCP port the gossip protocol listens and dials on.
const Port = 51511

// ReadFull reads exactly len(buf) bytes from r, looping until the buffer
// is full. A connection lost mid-read is a fatal protocol error for the
// caller's peer, so this never returns a partial result on error.
func ReadFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("wire: short read (wanted %d bytes): %w", len(buf), err)
	}
	return nil
}

// ReadByte reads a single byte, e.g. the leading message-type byte.
func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint32 reads a 4-byte big-endian unsigned integer (record counts,
// peer-list sizes).
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// PutUint32 writes v as 4 big-endian bytes into buf[:4].
func PutUint32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

// IPv4 is a 4-byte IPv4 address, stored in the same left-octet-first order
// as a dotted-quad string (i.e. identical to net.IP.To4()). The legacy
// wire format for peer-list entries (§6 of the spec) happens to use this
// exact byte order already, so no swap is ever needed when encoding or
// decoding one: ip[0] is always the first printable octet.
type IPv4 [4]byte

func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}
