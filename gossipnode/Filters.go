package gossipnode

import "github.com/zh-art/proyecto-servicios/wire"

// Filters lets a caller observe node events without modifying behavior.
// Any field left nil is replaced by a no-op during New, so call sites
// never need a nil check. Modeled on PeernetOfficial-core/Filter.go's
// hook-struct pattern.
type Filters struct {
	// NewPeer is called once a peer has been registered, whether the
	// connection was inbound (accepted) or outbound (dialed while
	// processing a peer-list).
	NewPeer func(ip string, outbound bool)

	// PeerRemoved is called when a peer is evicted, by read timeout,
	// read error, or a failed broadcast send.
	PeerRemoved func(ip string, reason error)

	// ArchiveReplaced is called every time Replace installs a new
	// current archive, with the new message count.
	ArchiveReplaced func(newCount uint32)

	// LogError is called for any non-fatal error worth surfacing.
	LogError func(function, format string, v ...interface{})

	// LogPeer is called for per-connection protocol chatter (message
	// sent/received, connection opened) worth recording per peer but too
	// noisy for the shared logger. The original program wrote this to a
	// dedicated <fd>.log file per connection; a caller that wants that
	// behavior back wires LogPeer to open and append to one. Left nil
	// (the default), it is a no-op — by default gossipnode logs nothing
	// at this granularity.
	LogPeer func(ip wire.IPv4, format string, args ...interface{})
}

func (f *Filters) init() {
	if f.NewPeer == nil {
		f.NewPeer = func(ip string, outbound bool) {}
	}
	if f.PeerRemoved == nil {
		f.PeerRemoved = func(ip string, reason error) {}
	}
	if f.ArchiveReplaced == nil {
		f.ArchiveReplaced = func(newCount uint32) {}
	}
	if f.LogError == nil {
		f.LogError = func(function, format string, v ...interface{}) {}
	}
	if f.LogPeer == nil {
		f.LogPeer = func(ip wire.IPv4, format string, args ...interface{}) {}
	}
}
