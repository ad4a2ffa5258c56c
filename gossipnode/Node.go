// Package gossipnode wires together the archive engine and peer registry
// into the running protocol: the accept loop, the per-peer requester and
// receiver goroutines, peer-list and archive ingestion, and broadcast.
// Grounded on original_source/main.c (incoming_peers_thread,
// peer_requester_thread, peer_receiver_thread, process_peerlist,
// process_archive, publish_archive) with the goroutine/channel shape and
// logging conventions of PeernetOfficial-core/Network.go and Bootstrap.go.
package gossipnode

import (
	"encoding/binary"
	"encoding/hex"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"lukechampine.com/blake3"

	"github.com/zh-art/proyecto-servicios/archive"
	"github.com/zh-art/proyecto-servicios/peerlist"
	"github.com/zh-art/proyecto-servicios/wire"
)

// Default timing constants, per spec.md §4.5 and §5.
const (
	PeerRequestInterval = 5 * time.Second
	ArchiveRequestEvery = 12 // every 12th requester tick (~60s)
	ReadTimeout         = 60 * time.Second
	DialTimeout         = 500 * time.Millisecond
	DefaultMaxPeers     = 128
)

// Node is the shared state every per-peer task and the REPL operate on:
// the archive engine, the peer registry, the local address (so a
// received peer-list entry equal to it is never dialed), and the
// observability hooks.
type Node struct {
	Archive             *archive.Engine
	Peers               *peerlist.Registry
	LocalIP             wire.IPv4
	Filters             Filters
	Logger              *log.Logger
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
	PeerRequestInterval time.Duration
	ArchiveRequestEvery int

	// Port is the TCP port Listen binds and dialPeer dials. It defaults to
	// wire.Port (the fixed gossip port real peers interoperate on); tests
	// override it to run several nodes loopback-only in one process.
	Port int

	// Dialer performs an outbound connect to ip. It defaults to dialPeer
	// (tcp4, n.Port, bounded by DialTimeout); tests substitute a fake to
	// exercise processPeerList without opening real sockets.
	Dialer func(ip wire.IPv4) (net.Conn, error)
}

// New returns a Node ready to serve; localIP is this node's own public
// IPv4 address (the "local-public-ipv4-dotted" CLI argument), used to
// reject self-connect entries in a received peer-list (Testable
// Property 5).
func New(localIP wire.IPv4, filters Filters) *Node {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if filters.LogError == nil {
		filters.LogError = func(function, format string, v ...interface{}) {
			logger.Printf("[%s] "+format, append([]interface{}{function}, v...)...)
		}
	}
	filters.init()
	n := &Node{
		Archive:             archive.NewEngine(),
		Peers:               peerlist.NewRegistry(),
		LocalIP:             localIP,
		Filters:             filters,
		Logger:              logger,
		DialTimeout:         DialTimeout,
		ReadTimeout:         ReadTimeout,
		PeerRequestInterval: PeerRequestInterval,
		ArchiveRequestEvery: ArchiveRequestEvery,
		Port:                wire.Port,
	}
	n.Dialer = n.dialPeer
	return n
}

// peerTag returns a short, non-cryptographic correlation tag for one
// connection to ip, useful for grepping that connection's log lines
// apart from another's (including a prior connection to the same IP);
// log lines print it next to the raw address. start is the time the
// connection was accepted or dialed, folded in so a reconnect gets a
// fresh tag instead of repeating the last one. Uses blake3 purely as a
// fast general-purpose hash, the same role PeernetOfficial-core's
// protocol/Hash.go helper plays — never as part of the archive's
// proof-of-work chain, which is pinned to MD5 by the wire format itself.
func peerTag(ip wire.IPv4, start time.Time) string {
	var input [12]byte
	copy(input[:4], ip[:])
	binary.BigEndian.PutUint64(input[4:], uint64(start.UnixNano()))
	sum := blake3.Sum256(input[:])
	return hex.EncodeToString(sum[:3])
}

// dialPeer establishes an outbound connection to ip on the gossip port,
// bounded by the node's DialTimeout (the 500ms bound from §4.5.1).
func (n *Node) dialPeer(ip wire.IPv4) (net.Conn, error) {
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(n.Port))
	return net.DialTimeout("tcp4", addr, n.DialTimeout)
}
