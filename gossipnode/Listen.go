package gossipnode

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/net/netutil"

	"github.com/zh-art/proyecto-servicios/reuseaddr"
)

// Listen binds the fixed gossip port on IPv4 and spawns a requester/
// receiver task pair for every accepted connection (§4.4). maxPeers caps
// the number of simultaneously accepted connections the listener will
// hold open at once, via golang.org/x/net/netutil.LimitListener — a
// production hardening the original C accept() loop lacked, since an
// unbounded accept loop is an easy resource-exhaustion target. Accept
// errors are logged and do not stop the loop; a listener bind failure is
// returned to the caller, who treats it as fatal only for the inbound
// path (§7: "Bind/listen failure at startup: fatal for the incoming-peers
// task only").
func (n *Node) Listen(ctx context.Context, maxPeers int) error {
	lc := net.ListenConfig{Control: reuseaddr.Control}
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(n.Port)))
	if err != nil {
		return err
	}
	return n.Serve(ctx, ln, maxPeers)
}

// Serve runs the accept loop against an already-bound listener. Listen
// uses it against the fixed gossip port; tests use it against an
// ephemeral loopback listener so multiple nodes can run in one process.
func (n *Node) Serve(ctx context.Context, ln net.Listener, maxPeers int) error {
	if maxPeers > 0 {
		ln = netutil.LimitListener(ln, maxPeers)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			n.Filters.LogError("Listen", "accept: %v", err)
			continue
		}
		go n.servePeer(ctx, conn, false)
	}
}
