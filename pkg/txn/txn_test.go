package txn

import "testing"

func TestBeginCommit(t *testing.T) {
	m := New()
	tx := m.Begin()
	if !m.IsActive(tx.ID) {
		t.Fatal("expected transaction to be active after Begin")
	}
	if err := m.Commit(tx.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if m.IsActive(tx.ID) {
		t.Fatal("expected transaction to be inactive after Commit")
	}
}

func TestDoubleCommitIsIdempotent(t *testing.T) {
	m := New()
	tx := m.Begin()
	if err := m.Commit(tx.ID); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := m.Commit(tx.ID); err != nil {
		t.Fatalf("second Commit should be idempotent, got: %v", err)
	}
}

func TestCommitAfterAbortFails(t *testing.T) {
	m := New()
	tx := m.Begin()
	m.Abort(tx.ID)
	// tx is no longer in the active map after abort, so re-registering
	// the same id would be needed to hit the conflict branch; exercise
	// the guard via the transaction object directly.
	tx.State = Aborted
	m.mu.Lock()
	m.active[tx.ID] = tx
	m.mu.Unlock()
	if err := m.Commit(tx.ID); err == nil {
		t.Fatal("expected error committing an aborted transaction")
	}
}

func TestDistinctIDsAcrossBegins(t *testing.T) {
	m := New()
	tx1 := m.Begin()
	tx2 := m.Begin()
	if tx1.ID == tx2.ID {
		t.Fatalf("expected distinct ids, got %d twice", tx1.ID)
	}
}

func TestRecordInsertUpdateDelete(t *testing.T) {
	m := New()
	tx := m.Begin()
	tx.RecordInsert(1)
	tx.RecordUpdate(2)
	tx.RecordDelete(3)
	if len(tx.Inserts) != 1 || len(tx.Updates) != 1 || len(tx.Deletes) != 1 {
		t.Fatalf("unexpected tracking state: %+v", tx)
	}
}
