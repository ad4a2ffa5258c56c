package gossipnode

import (
	"context"
	"net"

	"github.com/zh-art/proyecto-servicios/wire"
)

// Publish broadcasts blob (the current archive's serialized bytes) to
// every connected peer, best-effort (§4.6). Per the Open Question
// decision in DESIGN.md, a peer whose send fails is evicted immediately
// rather than left for its next read timeout, since the failed write
// already proves the connection is dead.
func (n *Node) Publish(blob []byte) {
	for _, peer := range n.Peers.Snapshot() {
		if _, err := peer.Conn.Write(blob); err != nil {
			n.Filters.LogError("Publish", "peer %s: %v", peer.IP, err)
			peer.Conn.Close()
			n.Peers.Remove(peer.IP)
			n.Filters.PeerRemoved(peer.IP.String(), err)
		}
	}
}

// Dial establishes and registers an outbound connection to ip using the
// same atomic check-then-connect-then-register path processPeerList
// uses, then starts its task pair. Exposed for the initial-peer dial in
// cmd/gossipnode's startup. Reports whether a new connection was made
// (false if ip was already connected or the dial failed).
func (n *Node) Dial(ctx context.Context, ip wire.IPv4) (added bool, err error) {
	conn, added, err := n.Peers.ConnectIfAbsent(ip, func() (net.Conn, error) {
		return n.Dialer(ip)
	})
	if err != nil || !added {
		return added, err
	}
	go n.servePeer(ctx, conn, true)
	return true, nil
}
