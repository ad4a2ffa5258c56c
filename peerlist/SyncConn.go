package peerlist

import (
	"net"
	"sync"
)

// syncConn wraps a net.Conn so concurrent writers never interleave their
// bytes on the wire. Each connected peer has exactly one receiver reading
// it, but up to three independent writers: the requester (periodic
// peer-request/archive-request bytes), the receiver itself (replying to
// the peer's own requests), and a broadcast from the user-input loop
// (Publish). Without this, two Write calls racing on the same TCP socket
// could each get partially flushed and interleaved, corrupting the
// message-type framing on the receiving end.
type syncConn struct {
	net.Conn
	mu sync.Mutex
}

func (c *syncConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.Write(p)
}

// wrap returns conn ready for storage in the registry, with Write calls
// serialized. Read is left untouched since each peer has exactly one
// reader.
func wrap(conn net.Conn) net.Conn {
	if conn == nil {
		return nil
	}
	return &syncConn{Conn: conn}
}
