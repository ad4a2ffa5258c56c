package gossipnode

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/zh-art/proyecto-servicios/archive"
	"github.com/zh-art/proyecto-servicios/wire"
)

// peerIPv4 extracts the 4 printable-order octets of conn's remote address.
// Returns false if the peer somehow isn't IPv4 (the listener only accepts
// tcp4, and dials are always tcp4, so this should never fail in practice).
func peerIPv4(conn net.Conn) (wire.IPv4, bool) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return wire.IPv4{}, false
	}
	ip4 := net.ParseIP(host).To4()
	if ip4 == nil {
		return wire.IPv4{}, false
	}
	var out wire.IPv4
	copy(out[:], ip4)
	return out, true
}

// servePeer is the per-connection entry point for both inbound (accepted)
// and outbound (dialed) connections. For an inbound connection the peer
// isn't registered yet — that's this receiver's job per §4.5 "Receiver:
// on entry, determine IP, register". For an outbound connection the
// caller (processPeerList or the initial-peer dial in cmd/gossipnode)
// has already registered it via Registry.ConnectIfAbsent, so registered
// is true and this only starts the task pair.
func (n *Node) servePeer(ctx context.Context, conn net.Conn, registered bool) {
	ip, ok := peerIPv4(conn)
	if !ok {
		conn.Close()
		return
	}

	if !registered {
		wrapped, added := n.Peers.AddIfAbsent(ip, conn)
		if !added {
			conn.Close()
			return
		}
		conn = wrapped
	}
	n.Filters.NewPeer(ip.String(), registered)

	start := time.Now()
	n.Filters.LogPeer(ip, "connection opened (outbound=%v)", registered)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.requester(ctx, conn, ip, start)
	}()

	n.receiver(ctx, conn, ip, start)
	<-done
}

// requester sends a peer-request every PeerRequestInterval and additionally
// an archive-request every ArchiveRequestEvery-th tick (§4.5 "Requester").
// It ends as soon as a send fails or ctx is cancelled; the receiver
// handles the actual eviction.
func (n *Node) requester(ctx context.Context, conn net.Conn, ip wire.IPv4, start time.Time) {
	ticker := time.NewTicker(n.PeerRequestInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			if _, err := conn.Write([]byte{wire.TypePeerRequest}); err != nil {
				n.Filters.LogError("requester", "peer %s [%s]: %v", ip, peerTag(ip, start), err)
				return
			}
			n.Filters.LogPeer(ip, "sent peer-request (tick %d)", tick)
			if tick%n.ArchiveRequestEvery == 0 {
				if _, err := conn.Write([]byte{wire.TypeArchiveRequest}); err != nil {
					n.Filters.LogError("requester", "peer %s [%s]: %v", ip, peerTag(ip, start), err)
					return
				}
				n.Filters.LogPeer(ip, "sent archive-request (tick %d)", tick)
			}
		}
	}
}

// receiver reads and dispatches messages from conn until a read error or
// timeout, then evicts the peer (§4.5 "Receiver").
func (n *Node) receiver(ctx context.Context, conn net.Conn, ip wire.IPv4, start time.Time) {
	defer func() {
		conn.Close()
		n.Peers.Remove(ip)
		n.Filters.PeerRemoved(ip.String(), nil)
		n.Filters.LogPeer(ip, "connection closed")
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(n.ReadTimeout))
		msgType, err := wire.ReadByte(conn)
		if err != nil {
			n.Filters.LogError("receiver", "peer %s [%s]: read: %v", ip, peerTag(ip, start), err)
			return
		}

		switch msgType {
		case wire.TypePeerRequest:
			n.Filters.LogPeer(ip, "received peer-request")
			if _, err := conn.Write(n.Peers.SerializePeerList()); err != nil {
				return
			}
		case wire.TypePeerList:
			if err := n.processPeerList(ctx, conn); err != nil {
				n.Filters.LogError("processPeerList", "peer %s [%s]: %v", ip, peerTag(ip, start), err)
				return
			}
			n.Filters.LogPeer(ip, "received peer-list")
		case wire.TypeArchiveRequest:
			n.Filters.LogPeer(ip, "received archive-request")
			if !n.Archive.IsEmpty() {
				if _, err := conn.Write(n.Archive.Serialize()); err != nil {
					return
				}
			}
		case wire.TypeArchiveResponse:
			if err := n.processArchive(conn); err != nil {
				n.Filters.LogError("processArchive", "peer %s [%s]: %v", ip, peerTag(ip, start), err)
				return
			}
			n.Filters.LogPeer(ip, "received archive-response, archive now at %d messages", n.Archive.Count())
		default:
			// Unknown type: ignored silently, per §4.5's dispatch table.
		}
	}
}

// processPeerList implements §4.5.1: for every entry in the received
// peer-list, skip the local address and already-connected peers, else
// dial with the 500ms bound and spawn a task pair for the new peer. The
// dedup-and-dial step happens inside Registry.ConnectIfAbsent so two
// concurrent peer-lists naming the same IP can never both win.
func (n *Node) processPeerList(ctx context.Context, r io.Reader) error {
	count, err := wire.ReadUint32(r)
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		var entry [4]byte
		if err := wire.ReadFull(r, entry[:]); err != nil {
			return err
		}
		ip := wire.IPv4(entry)

		if ip == n.LocalIP {
			continue
		}

		peerConn, added, dialErr := n.Peers.ConnectIfAbsent(ip, func() (net.Conn, error) {
			return n.Dialer(ip)
		})
		if dialErr != nil {
			n.Filters.LogError("processPeerList", "dial %s: %v", ip, dialErr)
			continue
		}
		if !added {
			continue
		}
		go n.servePeer(ctx, peerConn, true)
	}
	return nil
}

// processArchive implements §4.5.2: reassemble a candidate archive from
// the wire and hand it to Replace, which validates before ever touching
// the shared current archive (see archive.Engine.Replace).
func (n *Node) processArchive(r io.Reader) error {
	count, err := wire.ReadUint32(r)
	if err != nil {
		return err
	}

	blob := make([]byte, 5, 5+int(count)*64)
	blob[0] = wire.TypeArchiveResponse
	wire.PutUint32(blob[1:5], count)

	for i := uint32(0); i < count; i++ {
		length, err := wire.ReadByte(r)
		if err != nil {
			return err
		}
		record := make([]byte, 1+int(length)+32)
		record[0] = length
		if err := wire.ReadFull(r, record[1:]); err != nil {
			return err
		}
		blob = append(blob, record...)
	}

	candidate := archive.NewCandidate(blob, count)
	if n.Archive.Replace(candidate) {
		n.Filters.ArchiveReplaced(count)
	}
	return nil
}
