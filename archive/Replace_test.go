package archive

import (
	"bytes"
	"crypto/md5"
	"testing"
)

// TestEmptyArchiveIsValidScenarioS1 matches spec scenario S1: an empty
// archive validates trivially and has the exact 5-byte layout and offset.
func TestEmptyArchiveIsValidScenarioS1(t *testing.T) {
	e := NewEngine()
	blob := e.Serialize()

	want := []byte{0x04, 0x00, 0x00, 0x00, 0x00}
	if len(blob) != 5 {
		t.Fatalf("len(blob) = %d, want 5", len(blob))
	}
	for i, b := range want {
		if blob[i] != b {
			t.Fatalf("blob[%d] = 0x%02x, want 0x%02x", i, blob[i], b)
		}
	}
	if !Validate(blob) {
		t.Fatal("empty archive did not validate")
	}
	if e.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", e.Count())
	}
	if e.current.offset != 5 {
		t.Fatalf("offset = %d, want 5", e.current.offset)
	}
}

// TestAppendHiScenarioS2 matches spec scenario S2.
func TestAppendHiScenarioS2(t *testing.T) {
	e := NewEngine()
	if !e.Append([]byte("hi")) {
		t.Fatal("Append(\"hi\") returned false")
	}

	blob := e.Serialize()
	if blob[0] != 0x04 {
		t.Fatalf("blob[0] = 0x%02x, want 0x04", blob[0])
	}
	wantCount := []byte{0x00, 0x00, 0x00, 0x01}
	for i, b := range wantCount {
		if blob[1+i] != b {
			t.Fatalf("count byte %d = 0x%02x, want 0x%02x", i, blob[1+i], b)
		}
	}
	if blob[5] != 2 {
		t.Fatalf("length byte = %d, want 2", blob[5])
	}
	if string(blob[6:8]) != "hi" {
		t.Fatalf("content = %q, want \"hi\"", blob[6:8])
	}
	digest := blob[6+2+16 : 6+2+16+16]
	if digest[0] != 0 || digest[1] != 0 {
		t.Fatalf("digest prefix = %02x%02x, want 0000", digest[0], digest[1])
	}
	if !Validate(blob) {
		t.Fatal("single-message archive did not validate")
	}
}

// TestAppendTwoMessagesScenarioS3 matches spec scenario S3: offset stays 5
// for a two-message archive, and validation still passes (record 2's
// digest domain includes record 1's digest, per the "+16" extension step).
func TestAppendTwoMessagesScenarioS3(t *testing.T) {
	e := NewEngine()
	if !e.Append([]byte("hi")) {
		t.Fatal("first append failed")
	}
	if !e.Append([]byte("there")) {
		t.Fatal("second append failed")
	}
	if e.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", e.Count())
	}
	if e.current.offset != 5 {
		t.Fatalf("offset = %d, want 5", e.current.offset)
	}
	if !Validate(e.Serialize()) {
		t.Fatal("two-message archive did not validate")
	}
}

// TestValidateRejectsNonZeroDigestPrefix matches scenario S4: a candidate
// whose declared digest doesn't have a zero prefix is rejected.
func TestValidateRejectsNonZeroDigestPrefix(t *testing.T) {
	e := NewEngine()
	e.Append([]byte("hi"))
	blob := e.Serialize()

	// Corrupt the digest's first byte so its prefix is no longer zero.
	digestStart := 5 + 1 + 2 + 16
	blob[digestStart] = 0x01
	if Validate(blob) {
		t.Fatal("Validate accepted a corrupted digest prefix")
	}
}

// TestValidationCompleteness: perturbing any single content byte of a
// mined record must invalidate it (Testable Property 3).
func TestValidationCompleteness(t *testing.T) {
	e := NewEngine()
	e.Append([]byte("hello"))
	blob := e.Serialize()

	contentStart := 5 + 1
	blob[contentStart] ^= 0x01
	if Validate(blob) {
		t.Fatal("Validate accepted a perturbed content byte")
	}
}

// TestReplaceIsMonotonic matches Testable Property 4: current.count never
// decreases across any sequence of Replace calls.
func TestReplaceIsMonotonic(t *testing.T) {
	e := NewEngine()
	e.Append([]byte("a"))

	small := NewEngine()
	if !Validate(small.Serialize()) {
		t.Fatal("empty candidate unexpectedly invalid")
	}
	candidate := NewCandidate(small.Serialize(), 0)
	if e.Replace(candidate) {
		t.Fatal("Replace accepted a candidate with count <= current")
	}
	if e.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after rejected replace", e.Count())
	}

	bigger := NewEngine()
	bigger.Append([]byte("a"))
	bigger.Append([]byte("b"))
	candidate2 := NewCandidate(bigger.Serialize(), 2)
	if !e.Replace(candidate2) {
		t.Fatal("Replace rejected a strictly larger valid candidate")
	}
	if e.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 after accepted replace", e.Count())
	}
}

// TestHashDomainDropsOldestAfterTwenty matches Testable Property 7 and
// scenario S6: with 21 one-byte-content records (each record is 1+1+16+16
// = 34 bytes), record 21's own digest domain begins exactly at the start
// of record 2 (byte 5+34 = 39), not at the header — record 1 has left it.
// (Record 1 still participates in record 20's own, separately-checked,
// domain — dropping from the window only changes what NEW records hash
// over, not whether already-mined records get re-verified against their
// own fixed window.)
func TestHashDomainDropsOldestAfterTwenty(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 21; i++ {
		if !e.Append([]byte{byte('a' + i%26)}) {
			t.Fatalf("append %d failed", i)
		}
	}
	blob := e.Serialize()
	if !Validate(blob) {
		t.Fatal("21-message archive did not validate")
	}

	const recordSize = 1 + 1 + 16 + 16 // length + 1-byte content + nonce + digest
	startOfRecord2 := 5 + recordSize
	startOfRecord21 := 5 + 20*recordSize
	nonceEndOfRecord21 := startOfRecord21 + 1 + 1 + 16 // length byte + content byte + nonce
	digestOfRecord21 := blob[nonceEndOfRecord21 : nonceEndOfRecord21+16]

	domain := md5.Sum(blob[startOfRecord2:nonceEndOfRecord21])
	if !bytes.Equal(domain[:], digestOfRecord21) {
		t.Fatalf("record 21's digest does not match MD5 of the window starting at record 2")
	}

	// record 1's bytes (positions 5..5+recordSize) are strictly before
	// startOfRecord2, confirming they are outside the window just hashed.
	if startOfRecord2 <= 5 {
		t.Fatal("record 2 should start strictly after the header")
	}
}

// TestHashDomainCatchesRecentPerturbation ensures a perturbation inside the
// still-live window (the most recent 20 records) is always caught.
func TestHashDomainCatchesRecentPerturbation(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 21; i++ {
		e.Append([]byte{byte('a' + i%26)})
	}
	blob := e.Serialize()

	// Perturb record 21's (the very last) own content byte.
	// Its offset: header(5) + sum of first 20 records (each 1+1+16+16=34 bytes) + 1 (length byte).
	pos := 5 + 20*34 + 1
	blob[pos] ^= 0x01
	if Validate(blob) {
		t.Fatal("perturbing the last record's content should invalidate the archive")
	}
}
