// Package statusapi exposes a small read-mostly HTTP/WS diagnostics
// surface over the gossip node's state: a status summary, the connected
// peer list, a live event feed, and an asynchronous mining endpoint for
// appending a message without blocking the REPL. Grounded on
// PeernetOfficial-core/webapi/API.go's mux.Router registration style and
// webapi/Search Job.go's uuid.UUID-keyed async job pattern, reused here
// for mining jobs instead of search jobs.
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/zh-art/proyecto-servicios/archive"
	"github.com/zh-art/proyecto-servicios/gossipnode"
)

// WSUpgrader upgrades the live feed endpoint. Allows all origins, as the
// diagnostics surface is meant for local/trusted-network use only.
var WSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// API is the diagnostics HTTP server bound to a single Node.
type API struct {
	Node   *gossipnode.Node
	Router *mux.Router

	feed   *feedHub
	jobsMu sync.RWMutex
	jobs   map[uuid.UUID]*mineJob
}

// New builds an API wired to node, with routes registered but not yet
// serving; call ListenAndServe to start.
func New(node *gossipnode.Node) *API {
	api := &API{
		Node: node,
		feed: newFeedHub(),
		jobs: make(map[uuid.UUID]*mineJob),
	}
	api.Router = mux.NewRouter()
	api.Router.HandleFunc("/status", api.handleStatus).Methods("GET")
	api.Router.HandleFunc("/status/peers", api.handlePeers).Methods("GET")
	api.Router.HandleFunc("/status/feed", api.handleFeed).Methods("GET")
	api.Router.HandleFunc("/mine", api.handleMineStart).Methods("POST")
	api.Router.HandleFunc("/mine/{id}", api.handleMineStatus).Methods("GET")

	node.Filters.NewPeer = chainNewPeer(node.Filters.NewPeer, api.feed.publishf)
	node.Filters.PeerRemoved = chainPeerRemoved(node.Filters.PeerRemoved, api.feed.publishf)
	node.Filters.ArchiveReplaced = chainArchiveReplaced(node.Filters.ArchiveReplaced, api.feed.publishf)

	return api
}

// ListenAndServe starts the HTTP server on addr. Blocks until it exits.
func (api *API) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, api.Router)
}

type statusResponse struct {
	PeerCount     int    `json:"peer_count"`
	ArchiveCount  uint32 `json:"archive_count"`
	ArchiveLength int    `json:"archive_length"`
}

func (api *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	blob := api.Node.Archive.Serialize()
	resp := statusResponse{
		PeerCount:     api.Node.Peers.Size(),
		ArchiveCount:  api.Node.Archive.Count(),
		ArchiveLength: len(blob),
	}
	writeJSON(w, resp)
}

type peerEntry struct {
	IP string `json:"ip"`
}

func (api *API) handlePeers(w http.ResponseWriter, r *http.Request) {
	snapshot := api.Node.Peers.Snapshot()
	out := make([]peerEntry, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, peerEntry{IP: p.IP.String()})
	}
	writeJSON(w, out)
}

func (api *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	api.feed.serve(conn)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// mineJob tracks one asynchronous append-and-mine request, keyed by a
// uuid.UUID the caller polls via GET /mine/{id}.
type mineJob struct {
	mu       sync.Mutex
	done     bool
	accepted bool
	err      string
	started  time.Time
}

type mineStartRequest struct {
	Message string `json:"message"`
}

type mineStartResponse struct {
	ID uuid.UUID `json:"id"`
}

func (api *API) handleMineStart(w http.ResponseWriter, r *http.Request) {
	var req mineStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := archive.ParseContent([]byte(req.Message))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := &mineJob{started: time.Now()}
	id := uuid.New()
	api.jobsMu.Lock()
	api.jobs[id] = job
	api.jobsMu.Unlock()

	go func() {
		ok := api.Node.Archive.Append(content)

		job.mu.Lock()
		job.done = true
		job.accepted = ok
		if !ok {
			job.err = "append rejected: invalid content"
		}
		job.mu.Unlock()

		if ok {
			api.Node.Publish(api.Node.Archive.Serialize())
			api.feed.publishf("append", "mined and published, new count %d", api.Node.Archive.Count())
		}
	}()

	writeJSON(w, mineStartResponse{ID: id})
}

type mineStatusResponse struct {
	Done     bool   `json:"done"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

func (api *API) handleMineStatus(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	api.jobsMu.RLock()
	job, ok := api.jobs[id]
	api.jobsMu.RUnlock()
	if !ok {
		http.Error(w, "unknown job id", http.StatusNotFound)
		return
	}

	job.mu.Lock()
	resp := mineStatusResponse{Done: job.done, Accepted: job.accepted, Error: job.err}
	job.mu.Unlock()
	writeJSON(w, resp)
}
