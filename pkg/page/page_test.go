package page

import (
	"bytes"
	"testing"
)

func TestAddGetRecord(t *testing.T) {
	p := New(1)
	slot, err := p.AddRecord([]byte("hello"))
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	got, err := p.GetRecord(slot)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestDeleteRecordTombstonesSlot(t *testing.T) {
	p := New(1)
	slot, _ := p.AddRecord([]byte("x"))
	if err := p.DeleteRecord(slot); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := p.GetRecord(slot); err == nil {
		t.Fatal("expected error reading deleted slot")
	}
	if err := p.DeleteRecord(slot); err == nil {
		t.Fatal("expected error deleting already-deleted slot")
	}
}

func TestCompactPreservesSlotIndices(t *testing.T) {
	p := New(1)
	s0, _ := p.AddRecord([]byte("aaaa"))
	s1, _ := p.AddRecord([]byte("bbbb"))
	s2, _ := p.AddRecord([]byte("cccc"))

	if err := p.DeleteRecord(s1); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := p.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	got0, err := p.GetRecord(s0)
	if err != nil || !bytes.Equal(got0, []byte("aaaa")) {
		t.Fatalf("slot 0 survived compact with wrong value: %v %q", err, got0)
	}
	got2, err := p.GetRecord(s2)
	if err != nil || !bytes.Equal(got2, []byte("cccc")) {
		t.Fatalf("slot 2 survived compact with wrong value: %v %q", err, got2)
	}
	if _, err := p.GetRecord(s1); err == nil {
		t.Fatal("expected deleted slot to remain deleted after compact")
	}
}

func TestUpdateRecordInPlace(t *testing.T) {
	p := New(1)
	slot, _ := p.AddRecord([]byte("abcd"))
	if err := p.UpdateRecord(slot, []byte("ab")); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	got, err := p.GetRecord(slot)
	if err != nil || !bytes.Equal(got, []byte("ab")) {
		t.Fatalf("got %q, want %q (err=%v)", got, "ab", err)
	}
}

func TestUpdateRecordTooLargeTombstones(t *testing.T) {
	p := New(1)
	slot, _ := p.AddRecord([]byte("ab"))
	err := p.UpdateRecord(slot, []byte("abcdefgh"))
	if err == nil {
		t.Fatal("expected capacity error for oversized update")
	}
	if _, err := p.GetRecord(slot); err == nil {
		t.Fatal("expected slot to be tombstoned after failed update")
	}
}

func TestCapacityError(t *testing.T) {
	p := New(1)
	big := make([]byte, Size)
	if _, err := p.AddRecord(big); err == nil {
		t.Fatal("expected capacity error for oversized record")
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	p := New(1)
	p.AddRecord([]byte("repeated repeated repeated"))

	before := p.Data
	if err := p.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !p.Compressed {
		t.Fatal("expected Compressed=true")
	}
	// Idempotent.
	if err := p.Compress(); err != nil {
		t.Fatalf("second Compress: %v", err)
	}

	if err := p.Decompress(); err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if p.Compressed {
		t.Fatal("expected Compressed=false after decompress")
	}
	if p.Data != before {
		t.Fatal("round trip did not restore original data")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeySize)
	p := New(1)
	p.AddRecord([]byte("secret"))
	before := p.Data

	if err := p.Encrypt(key); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !p.Encrypted {
		t.Fatal("expected Encrypted=true")
	}
	if _, err := p.GetRecord(0); err == nil {
		t.Fatal("expected error reading record from encrypted page")
	}

	if err := p.Decrypt(key); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if p.Data != before {
		t.Fatal("round trip did not restore original data")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	p := New(7)
	p.AddRecord([]byte("payload"))

	raw := p.Serialize()
	p2, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if p2.ID != 7 {
		t.Fatalf("ID = %d, want 7", p2.ID)
	}
	got, err := p2.GetRecord(0)
	if err != nil || !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q, err %v", got, err)
	}
}

func TestDeserializeDetectsCorruption(t *testing.T) {
	p := New(1)
	p.AddRecord([]byte("data"))
	raw := p.Serialize()
	raw[envelopeSize+20] ^= 0xFF

	if _, err := Deserialize(raw); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}
