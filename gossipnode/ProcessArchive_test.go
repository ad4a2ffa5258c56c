package gossipnode

import (
	"bytes"
	"testing"

	"github.com/zh-art/proyecto-servicios/archive"
	"github.com/zh-art/proyecto-servicios/wire"
)

func mustAppend(t *testing.T, e *archive.Engine, contents ...string) {
	t.Helper()
	for _, c := range contents {
		if !e.Append([]byte(c)) {
			t.Fatalf("append %q: rejected", c)
		}
	}
}

func testNode() *Node {
	return New(wire.IPv4{10, 0, 0, 1}, Filters{})
}

// TestProcessArchiveAdoptsLongerValidCandidate exercises the same ingest
// path a receiver uses on an inbound archive-response: a longer, valid
// candidate always replaces the current archive (Testable Property 1).
func TestProcessArchiveAdoptsLongerValidCandidate(t *testing.T) {
	n := testNode()
	mustAppend(t, n.Archive, "hello", "world", "third message")

	donor := archive.NewEngine()
	mustAppend(t, donor, "a", "b", "c", "d", "e")

	replaced := 0
	n.Filters.ArchiveReplaced = func(count uint32) { replaced++ }

	blob := donor.Serialize()
	if err := n.processArchive(bytes.NewReader(blob[1:])); err != nil {
		t.Fatalf("processArchive: %v", err)
	}

	if got := n.Archive.Count(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
	if !bytes.Equal(n.Archive.Serialize(), donor.Serialize()) {
		t.Fatalf("converged archive bytes differ from donor")
	}
	if replaced != 1 {
		t.Fatalf("ArchiveReplaced called %d times, want 1", replaced)
	}
}

// TestProcessArchiveRejectsShorterCandidate covers the monotonicity half
// of Replace: a candidate with a count no greater than the current one
// never overwrites it, even if well-formed.
func TestProcessArchiveRejectsShorterCandidate(t *testing.T) {
	n := testNode()
	mustAppend(t, n.Archive, "one", "two", "three", "four", "five")

	donor := archive.NewEngine()
	mustAppend(t, donor, "only one")

	replaced := false
	n.Filters.ArchiveReplaced = func(count uint32) { replaced = true }

	blob := donor.Serialize()
	if err := n.processArchive(bytes.NewReader(blob[1:])); err != nil {
		t.Fatalf("processArchive: %v", err)
	}

	if got := n.Archive.Count(); got != 5 {
		t.Fatalf("count = %d, want unchanged 5", got)
	}
	if replaced {
		t.Fatalf("ArchiveReplaced fired for a rejected candidate")
	}
}

// TestProcessArchiveRejectsCorruptDigest ensures a tampered record (Property
// 3: validation completeness) never gets adopted even though its count is
// larger than the current archive's.
func TestProcessArchiveRejectsCorruptDigest(t *testing.T) {
	n := testNode()
	mustAppend(t, n.Archive, "short")

	donor := archive.NewEngine()
	mustAppend(t, donor, "x", "y")
	blob := donor.Serialize()
	blob[len(blob)-1] ^= 0xFF // flip the last byte of the final digest

	if err := n.processArchive(bytes.NewReader(blob[1:])); err != nil {
		t.Fatalf("processArchive: %v", err)
	}
	if got := n.Archive.Count(); got != 1 {
		t.Fatalf("count = %d, want unchanged 1 (corrupt candidate must be rejected)", got)
	}
}
