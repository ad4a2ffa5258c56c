package statusapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zh-art/proyecto-servicios/gossipnode"
	"github.com/zh-art/proyecto-servicios/wire"
)

func testServer(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	node := gossipnode.New(wire.IPv4{127, 0, 0, 1}, gossipnode.Filters{})
	api := New(node)
	srv := httptest.NewServer(api.Router)
	t.Cleanup(srv.Close)
	return api, srv
}

func TestHandleStatusReflectsArchiveAndPeers(t *testing.T) {
	api, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ArchiveCount != 0 || got.PeerCount != 0 {
		t.Fatalf("got %+v, want a fresh empty node", got)
	}
	if got.ArchiveLength != len(api.Node.Archive.Serialize()) {
		t.Fatalf("archive length mismatch: %d vs %d", got.ArchiveLength, len(api.Node.Archive.Serialize()))
	}
}

func TestHandlePeersListsSnapshot(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/status/peers")
	if err != nil {
		t.Fatalf("GET /status/peers: %v", err)
	}
	defer resp.Body.Close()

	var peers []peerEntry
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("got %d peers, want 0 on a fresh node", len(peers))
	}
}

// TestMineJobLifecycle exercises the async append path end to end: a
// POST /mine kicks off mining, and polling GET /mine/{id} eventually
// reports the job done and the archive grown by one message.
func TestMineJobLifecycle(t *testing.T) {
	api, srv := testServer(t)

	body, _ := json.Marshal(mineStartRequest{Message: "hello network"})
	resp, err := http.Post(srv.URL+"/mine", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mine: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var started mineStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var status mineStatusResponse
	for time.Now().Before(deadline) {
		r, err := http.Get(srv.URL + "/mine/" + started.ID.String())
		if err != nil {
			t.Fatalf("GET /mine/{id}: %v", err)
		}
		if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
			r.Body.Close()
			t.Fatalf("decode status: %v", err)
		}
		r.Body.Close()
		if status.Done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !status.Done {
		t.Fatalf("mine job never completed")
	}
	if !status.Accepted {
		t.Fatalf("mine job not accepted: %s", status.Error)
	}
	if got := api.Node.Archive.Count(); got != 1 {
		t.Fatalf("archive count = %d, want 1 after mining", got)
	}
}

// TestMineStartRejectsInvalidMessage ensures invalid content (here, an
// empty message) is rejected with 400 before reaching Archive.Append.
func TestMineStartRejectsInvalidMessage(t *testing.T) {
	_, srv := testServer(t)

	body, _ := json.Marshal(mineStartRequest{Message: ""})
	resp, err := http.Post(srv.URL+"/mine", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mine: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an empty message", resp.StatusCode)
	}
}

func TestMineStatusUnknownID(t *testing.T) {
	_, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/mine/00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GET /mine/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown job id", resp.StatusCode)
	}
}
