package statusapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// feedHub fans out short event strings to every subscribed websocket
// client, the same "subscribe/write to every writer" shape as
// PeernetOfficial-core/Filter.go's multiWriter, specialized for
// websocket.Conn instead of a generic io.Writer (a websocket connection
// isn't safely writable from multiple goroutines, so the hub itself
// serializes each write instead of exposing a Write method directly).
type feedHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newFeedHub() *feedHub {
	return &feedHub{clients: make(map[*websocket.Conn]struct{})}
}

// serve blocks, relaying published events to conn until the client
// disconnects or a write fails.
func (h *feedHub) serve(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read and discard; the feed is one-directional but the connection
	// must be read from to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *feedHub) publish(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *feedHub) publishf(function, format string, v ...interface{}) {
	h.publish(fmt.Sprintf("[%s] %s", function, fmt.Sprintf(format, v...)))
}

// chainNewPeer composes an existing gossipnode.Filters.NewPeer hook
// (possibly nil) with a feed publish, so installing statusapi never
// silently drops a caller's own filter.
func chainNewPeer(prev func(ip string, outbound bool), publishf func(function, format string, v ...interface{})) func(string, bool) {
	return func(ip string, outbound bool) {
		if prev != nil {
			prev(ip, outbound)
		}
		kind := "inbound"
		if outbound {
			kind = "outbound"
		}
		publishf("NewPeer", "%s peer %s", kind, ip)
	}
}

func chainPeerRemoved(prev func(ip string, reason error), publishf func(function, format string, v ...interface{})) func(string, error) {
	return func(ip string, reason error) {
		if prev != nil {
			prev(ip, reason)
		}
		publishf("PeerRemoved", "peer %s removed (%v)", ip, reason)
	}
}

func chainArchiveReplaced(prev func(newCount uint32), publishf func(function, format string, v ...interface{})) func(uint32) {
	return func(newCount uint32) {
		if prev != nil {
			prev(newCount)
		}
		publishf("ArchiveReplaced", "archive replaced, new count %d", newCount)
	}
}
