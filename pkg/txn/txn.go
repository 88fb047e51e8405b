// Package txn implements spec.md §4.6's TransactionManager: transaction
// id allocation and a per-transaction state machine tracking which
// operations belong to it.
//
// Grounded directly in
// ShubhamNegi4-DaemonDB/storage_engine/transaction_manager: the same
// atomic id counter, the same Active/Committed/Aborted state machine,
// and the same "Commit/Abort on an unknown id is idempotent" contract
// (an id can legitimately be missing if a caller double-commits after a
// crash-recovery replay already resolved it).
package txn

import (
	"sync"
	"sync/atomic"

	"quiverdb/pkg/dberrors"
)

// State is a transaction's position in its state machine.
type State uint8

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Transaction is one in-flight or resolved transaction.
type Transaction struct {
	ID    uint64
	State State

	mu      sync.Mutex
	Inserts []int64 // record ids inserted by this txn, for logical undo
	Updates []int64 // record ids updated by this txn
	Deletes []int64 // record ids deleted by this txn
}

// RecordInsert notes that this transaction inserted recordID.
func (t *Transaction) RecordInsert(recordID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Inserts = append(t.Inserts, recordID)
}

// RecordUpdate notes that this transaction updated recordID.
func (t *Transaction) RecordUpdate(recordID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Updates = append(t.Updates, recordID)
}

// RecordDelete notes that this transaction deleted recordID.
func (t *Transaction) RecordDelete(recordID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Deletes = append(t.Deletes, recordID)
}

// Manager allocates transaction ids and tracks active transactions.
type Manager struct {
	mu     sync.RWMutex
	nextID uint64
	active map[uint64]*Transaction
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{nextID: 1, active: make(map[uint64]*Transaction)}
}

// Begin starts and registers a new transaction.
func (m *Manager) Begin() *Transaction {
	id := atomic.AddUint64(&m.nextID, 1) - 1
	t := &Transaction{ID: id, State: Active}

	m.mu.Lock()
	m.active[id] = t
	m.mu.Unlock()
	return t
}

// Commit marks txnID committed and removes it from the active set.
// Must be called only after the COMMIT record has been durably written
// to the WAL (spec.md §4.5/§4.6's ordering contract).
func (m *Manager) Commit(txnID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[txnID]
	if !ok {
		return nil // already resolved or never existed; idempotent.
	}
	if t.State == Aborted {
		return dberrors.Newf(dberrors.KindState, "transaction %d was already aborted", txnID)
	}
	t.State = Committed
	delete(m.active, txnID)
	return nil
}

// Abort marks txnID aborted and removes it from the active set.
func (m *Manager) Abort(txnID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[txnID]
	if !ok {
		return nil
	}
	if t.State == Committed {
		return dberrors.Newf(dberrors.KindState, "transaction %d was already committed", txnID)
	}
	t.State = Aborted
	delete(m.active, txnID)
	return nil
}

// Get returns the active transaction for txnID, or nil.
func (m *Manager) Get(txnID uint64) *Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[txnID]
}

// IsActive reports whether txnID is currently active.
func (m *Manager) IsActive(txnID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[txnID]
	return ok
}

// Active returns a snapshot of every currently active transaction,
// e.g. for Checkpoint to know what's in flight.
func (m *Manager) Active() []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, t)
	}
	return out
}
