package wal

import (
	"bytes"
	"testing"

	"quiverdb/pkg/logging"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := Record{Op: OpInsert, TxnID: 7, Table: "orders", RecordID: 42, After: []byte("after")}
	frame := Encode(r)
	got, n, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("consumed %d bytes, want %d", n, len(frame))
	}
	if got.TxnID != 7 || got.Table != "orders" || got.RecordID != 42 || !bytes.Equal(got.After, []byte("after")) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	r := Record{Op: OpInsert, TxnID: 1, Table: "t", RecordID: 1, After: []byte("x")}
	frame := Encode(r)
	frame[10] ^= 0xFF
	if _, _, err := Decode(frame); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestAppendAndAllRecords(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, Options{SegmentSizeBytes: 1 << 20, FsyncOnCommit: true}, logging.Noop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	lsn1, err := m.Append(Record{Op: OpBegin, TxnID: 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	lsn2, err := m.Append(Record{Op: OpInsert, TxnID: 1, Table: "t", RecordID: 1, After: []byte("row")})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if lsn2 <= lsn1 {
		t.Fatalf("expected increasing LSNs, got %d then %d", lsn1, lsn2)
	}

	records, err := m.AllRecords()
	if err != nil {
		t.Fatalf("AllRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("AllRecords returned %d records, want 2", len(records))
	}
}

func TestSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, Options{SegmentSizeBytes: 32, FsyncOnCommit: false}, logging.Noop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	for i := 0; i < 10; i++ {
		if _, err := m.Append(Record{Op: OpInsert, TxnID: 1, Table: "t", RecordID: int64(i), After: []byte("payload")}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	if len(m.segmentIDs) < 2 {
		t.Fatalf("expected rollover to produce multiple segments, got %d", len(m.segmentIDs))
	}
	records, err := m.AllRecords()
	if err != nil {
		t.Fatalf("AllRecords: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("AllRecords returned %d, want 10", len(records))
	}
}

func TestReopenResumesLSN(t *testing.T) {
	dir := t.TempDir()
	m1, err := Open(dir, Options{SegmentSizeBytes: 1 << 20}, logging.Noop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	lsn, err := m1.Append(Record{Op: OpBegin, TxnID: 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	m1.Close()

	m2, err := Open(dir, Options{SegmentSizeBytes: 1 << 20}, logging.Noop())
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer m2.Close()
	nextLSN, err := m2.Append(Record{Op: OpCommit, TxnID: 1})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if nextLSN <= lsn {
		t.Fatalf("expected LSN after reopen (%d) to exceed prior LSN (%d)", nextLSN, lsn)
	}
}

type recordingApplier struct {
	redoInserts []int64
	undoInserts []int64
	undoDeletes []int64
}

func (a *recordingApplier) RedoInsert(table string, id int64, after []byte) error {
	a.redoInserts = append(a.redoInserts, id)
	return nil
}
func (a *recordingApplier) RedoUpdate(table string, id int64, after []byte) error { return nil }
func (a *recordingApplier) RedoDelete(table string, id int64) error              { return nil }
func (a *recordingApplier) UndoInsert(table string, id int64) error {
	a.undoInserts = append(a.undoInserts, id)
	return nil
}
func (a *recordingApplier) UndoUpdate(table string, id int64, before []byte) error { return nil }
func (a *recordingApplier) UndoDelete(table string, id int64, before []byte) error {
	a.undoDeletes = append(a.undoDeletes, id)
	return nil
}

func TestRecoverRedoesEverythingUndoesUncommitted(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, Options{SegmentSizeBytes: 1 << 20, FsyncOnCommit: true}, logging.Noop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	// txn 1: insert + commit.
	m.Append(Record{Op: OpBegin, TxnID: 1})
	m.Append(Record{Op: OpInsert, TxnID: 1, Table: "t", RecordID: 100, After: []byte("a")})
	m.Append(Record{Op: OpCommit, TxnID: 1})

	// txn 2: insert, never committed (crash mid-transaction).
	m.Append(Record{Op: OpBegin, TxnID: 2})
	m.Append(Record{Op: OpInsert, TxnID: 2, Table: "t", RecordID: 200, After: []byte("b")})

	applier := &recordingApplier{}
	res, err := m.Recover(applier)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(applier.redoInserts) != 2 {
		t.Fatalf("expected both inserts redone, got %v", applier.redoInserts)
	}
	if len(applier.undoInserts) != 1 || applier.undoInserts[0] != 200 {
		t.Fatalf("expected record 200 undone, got %v", applier.undoInserts)
	}
	if res.InFlightTxns != 1 {
		t.Fatalf("InFlightTxns = %d, want 1", res.InFlightTxns)
	}
}

func TestCheckpointTruncatesOldSegments(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, Options{SegmentSizeBytes: 16, FsyncOnCommit: false}, logging.Noop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.Append(Record{Op: OpInsert, TxnID: 1, Table: "t", RecordID: int64(i), After: []byte("xx")})
	}
	before := len(m.segmentIDs)
	if _, err := m.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if len(m.segmentIDs) >= before {
		t.Fatalf("expected checkpoint to truncate segments: before=%d after=%d", before, len(m.segmentIDs))
	}
}
