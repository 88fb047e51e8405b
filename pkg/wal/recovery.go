package wal

// Applier lets RecoveryManager replay logged operations against
// StorageEngine without importing it — StorageEngine implements this
// interface and passes itself to Recover.
//
// spec.md §4.5: redo re-applies every operation's after-image in log
// order (idempotent), then undo reverses any operation belonging to a
// transaction that never committed, scanning backward and restoring
// before-images.
type Applier interface {
	// RedoInsert/RedoUpdate/RedoDelete re-apply the forward effect of a
	// logged operation directly against the page identified by
	// recordID, ignoring any invariant checks a live call through
	// StorageEngine would perform — recovery trusts the log.
	RedoInsert(table string, recordID int64, after []byte) error
	RedoUpdate(table string, recordID int64, after []byte) error
	RedoDelete(table string, recordID int64) error

	// UndoInsert/UndoUpdate/UndoDelete reverse an operation that
	// belonged to a transaction with no matching COMMIT record.
	UndoInsert(table string, recordID int64) error
	UndoUpdate(table string, recordID int64, before []byte) error
	UndoDelete(table string, recordID int64, before []byte) error
}

// Result summarizes one recovery pass, useful for logging/tests.
type Result struct {
	RedoApplied    int
	UndoApplied    int
	CommittedTxns  int
	AbortedTxns    int
	InFlightTxns   int // neither committed nor explicitly aborted
}

// Recover replays the WAL against applier: a redo pass over every
// record in log order (idempotent, so replaying an already-applied
// operation is safe), then an undo pass in reverse log order for every
// operation whose transaction never reached OpCommit.
func (m *Manager) Recover(applier Applier) (Result, error) {
	records, err := m.AllRecords()
	if err != nil {
		return Result{}, err
	}

	committed := make(map[uint64]bool)
	aborted := make(map[uint64]bool)
	for _, r := range records {
		switch r.Op {
		case OpCommit:
			committed[r.TxnID] = true
		case OpAbort:
			aborted[r.TxnID] = true
		}
	}

	var res Result
	res.CommittedTxns = len(committed)
	res.AbortedTxns = len(aborted)

	// Redo pass: forward, in log order.
	for _, r := range records {
		switch r.Op {
		case OpInsert:
			if err := applier.RedoInsert(r.Table, r.RecordID, r.After); err != nil {
				return res, err
			}
			res.RedoApplied++
		case OpUpdate:
			if err := applier.RedoUpdate(r.Table, r.RecordID, r.After); err != nil {
				return res, err
			}
			res.RedoApplied++
		case OpDelete:
			if err := applier.RedoDelete(r.Table, r.RecordID); err != nil {
				return res, err
			}
			res.RedoApplied++
		}
	}

	// Undo pass: backward, only for transactions that never committed.
	inFlight := make(map[uint64]bool)
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Op != OpInsert && r.Op != OpUpdate && r.Op != OpDelete {
			continue
		}
		if committed[r.TxnID] {
			continue
		}
		if !aborted[r.TxnID] {
			inFlight[r.TxnID] = true
		}

		switch r.Op {
		case OpInsert:
			if err := applier.UndoInsert(r.Table, r.RecordID); err != nil {
				return res, err
			}
		case OpUpdate:
			if err := applier.UndoUpdate(r.Table, r.RecordID, r.Before); err != nil {
				return res, err
			}
		case OpDelete:
			if err := applier.UndoDelete(r.Table, r.RecordID, r.Before); err != nil {
				return res, err
			}
		}
		res.UndoApplied++
	}
	res.InFlightTxns = len(inFlight)

	return res, nil
}
