// Package peerlist holds the set of currently-connected peers, keyed by
// IPv4 address, along with a pre-serialized peer-list message kept in
// sync on every mutation so broadcasting it never has to rebuild the
// blob on the hot path. See original_source/peerlist.c for the reference
// this package generalizes from a fixed-capacity linked list into a Go
// map guarded by a single mutex.
package peerlist

import (
	"net"
	"sync"

	"github.com/zh-art/proyecto-servicios/wire"
)

// Peer is one connected remote participant: its address and the open
// transport used to reach it.
type Peer struct {
	IP   wire.IPv4
	Conn net.Conn
}

// Registry is the connected-peer set. All access is serialized by mu; the
// cached peer-list blob is rebuilt synchronously inside every mutator so
// a reader never observes a (size, blob) pair that disagrees with peers.
type Registry struct {
	mu    sync.Mutex
	peers map[wire.IPv4]*Peer
	order []wire.IPv4 // insertion order, for a deterministic serialize_peer_list
	blob  []byte
}

// NewRegistry returns an empty registry with the cached blob already set
// to the zero-peer peer-list message (type=2, count=0).
func NewRegistry() *Registry {
	r := &Registry{peers: make(map[wire.IPv4]*Peer)}
	r.rebuild()
	return r
}

// IsConnected reports whether ip already has an entry in the registry.
func (r *Registry) IsConnected(ip wire.IPv4) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[ip]
	return ok
}

// Add registers conn under ip, replacing any existing entry for that IP,
// and rebuilds the cached peer-list blob. Most callers should prefer
// ConnectIfAbsent or AddIfAbsent, which fold the duplicate check into the
// same critical section (the receiver registers its inbound connection
// through AddIfAbsent); Add records a connection unconditionally.
func (r *Registry) Add(ip wire.IPv4, conn net.Conn) net.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(ip, conn)
}

// addLocked installs conn (wrapped for write-safety) under ip and returns
// the wrapped connection, so callers use the same synchronized handle the
// registry itself hands out on Snapshot.
func (r *Registry) addLocked(ip wire.IPv4, conn net.Conn) net.Conn {
	wrapped := wrap(conn)
	if _, exists := r.peers[ip]; !exists {
		r.order = append(r.order, ip)
	}
	r.peers[ip] = &Peer{IP: ip, Conn: wrapped}
	r.rebuild()
	return wrapped
}

// AddIfAbsent registers conn under ip only if ip is not already present,
// returning the (write-synchronized) connection to use going forward and
// whether it was actually added. On false, conn was not touched and
// remains the caller's responsibility to close.
func (r *Registry) AddIfAbsent(ip wire.IPv4, conn net.Conn) (net.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.peers[ip]; exists {
		return nil, false
	}
	return r.addLocked(ip, conn), true
}

// ConnectIfAbsent performs the "not connected -> dial -> register" sequence
// as a single critical section, so that two concurrent peer-lists naming
// the same IP can never both succeed in dialing and registering it (see
// SPEC_FULL.md's Redesign note: the original C source's is_connected check
// and the eventual add_peer insert were not atomic with each other, so a
// race between two incoming_peers_thread-spawned goroutines could connect
// twice to the same peer before either had registered). dial is called
// with the lock held, so it must not block for an unbounded time; callers
// pass in a dial func that already embeds the 500ms connect bound.
//
// Returns the established connection and true if this call performed the
// dial and registration; if ip was already present, dial is never called
// and the second return value is false.
func (r *Registry) ConnectIfAbsent(ip wire.IPv4, dial func() (net.Conn, error)) (conn net.Conn, added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[ip]; exists {
		return nil, false, nil
	}

	conn, err = dial()
	if err != nil {
		return nil, false, err
	}

	return r.addLocked(ip, conn), true, nil
}

// Remove deletes ip from the registry, closing nothing itself — the
// receiver task owns the transport's lifecycle and closes it separately —
// and rebuilds the cached peer-list blob. A no-op if ip is not present.
func (r *Registry) Remove(ip wire.IPv4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.peers[ip]; !exists {
		return
	}
	delete(r.peers, ip)
	for i, o := range r.order {
		if o == ip {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuild()
}

// SerializePeerList returns the cached peer-list blob: type=2, a 4-byte
// big-endian count, then count 4-byte IPv4 entries in dotted-quad byte
// order (see wire.IPv4).
func (r *Registry) SerializePeerList() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.blob))
	copy(out, r.blob)
	return out
}

// Size returns the number of connected peers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Snapshot returns a copy of the currently connected peers, safe to range
// over without holding the registry lock (e.g. for a broadcast).
func (r *Registry) Snapshot() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Peer, 0, len(r.order))
	for _, ip := range r.order {
		out = append(out, r.peers[ip])
	}
	return out
}

// rebuild recomputes the cached peer-list blob from the current order.
// Must be called with mu held.
func (r *Registry) rebuild() {
	n := len(r.order)
	buf := make([]byte, 5+4*n)
	buf[0] = wire.TypePeerList
	wire.PutUint32(buf[1:5], uint32(n))
	for i, ip := range r.order {
		copy(buf[5+4*i:5+4*i+4], ip[:])
	}
	r.blob = buf
}
