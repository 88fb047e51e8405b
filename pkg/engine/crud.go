package engine

import (
	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/filemanager"
	"quiverdb/pkg/page"
	"quiverdb/pkg/recordid"
	"quiverdb/pkg/wal"
)

// beginOpLocked returns the transaction an operation should run under:
// txnID as given, or a freshly begun+WAL-logged autocommit transaction
// if txnID is 0. The bool return reports whether it's autocommit, so the
// caller knows to commit it immediately after.
func (e *Engine) beginOpLocked(txnID uint64) (uint64, bool, error) {
	if txnID != 0 {
		if !e.txns.IsActive(txnID) {
			return 0, false, dberrors.Newf(dberrors.KindState, "transaction %d is not active", txnID)
		}
		return txnID, false, nil
	}
	tx := e.txns.Begin()
	if _, err := e.wal.Append(wal.Record{Op: wal.OpBegin, TxnID: tx.ID}); err != nil {
		return 0, false, err
	}
	return tx.ID, true, nil
}

func (e *Engine) endOpLocked(txnID uint64, autoCommit bool) error {
	if !autoCommit {
		return nil
	}
	if _, err := e.wal.Append(wal.Record{Op: wal.OpCommit, TxnID: txnID}); err != nil {
		return err
	}
	return e.txns.Commit(txnID)
}

// recordOpLocked appends rec to an explicit transaction's undo log, a
// no-op for autocommit operations (which never need AbortTransaction).
func (e *Engine) recordOpLocked(txnID uint64, autoCommit bool, rec wal.Record) {
	if autoCommit {
		return
	}
	e.opLogs[txnID] = append(e.opLogs[txnID], rec)
}

// acquirePageForInsertLocked returns a page of table with room for size
// bytes, preferring the table's most recently allocated page before
// allocating a fresh one.
func (e *Engine) acquirePageForInsertLocked(table string, ts *tableState, size int) (*page.Page, error) {
	if ts.lastPageID >= 0 {
		pg, err := e.bp.FetchPage(table, ts.lastPageID)
		if err == nil {
			if pg.FreeSpace() >= size {
				return pg, nil
			}
			if err := e.bp.UnpinPage(table, ts.lastPageID, false); err != nil {
				return nil, err
			}
		}
	}
	pg, err := e.bp.NewPage(table)
	if err != nil {
		return nil, err
	}
	ts.lastPageID = int64(pg.ID)
	return pg, nil
}

// InsertRecord appends fields as a new row of table under txnID (0 for
// an implicit autocommit transaction), returning the new row's id.
func (e *Engine) InsertRecord(txnID uint64, table string, fields []string) (recordid.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertRecordLocked(txnID, table, fields)
}

func (e *Engine) insertRecordLocked(txnID uint64, table string, fields []string) (recordid.ID, error) {
	ts, ok := e.tables[table]
	if !ok {
		return 0, dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	schema, err := e.catalog.Get(table)
	if err != nil {
		return 0, err
	}
	if len(fields) != len(schema.Columns) {
		return 0, dberrors.Newf(dberrors.KindInvalidInput, "table %q has %d columns, got %d fields", table, len(schema.Columns), len(fields))
	}

	txID, autoCommit, err := e.beginOpLocked(txnID)
	if err != nil {
		return 0, err
	}

	payload := encodeFields(fields)
	pg, err := e.acquirePageForInsertLocked(table, ts, len(payload)+4)
	if err != nil {
		return 0, err
	}
	slot, err := pg.AddRecord(payload)
	if err != nil {
		e.bp.UnpinPage(table, int64(pg.ID), false)
		return 0, err
	}
	id := recordid.Pack(filemanager.LocalPageNum(int64(pg.ID)), slot)

	rec := wal.Record{Op: wal.OpInsert, TxnID: txID, Table: table, RecordID: int64(id), After: payload}
	if _, err := e.wal.Append(rec); err != nil {
		return 0, err
	}
	if err := e.bp.UnpinPage(table, int64(pg.ID), true); err != nil {
		return 0, err
	}
	e.recordOpLocked(txID, autoCommit, rec)

	if tx := e.txns.Get(txID); tx != nil {
		tx.RecordInsert(int64(id))
	}
	for _, col := range schema.IndexedColumns {
		colIdx, _ := e.catalog.ColumnIndex(table, col)
		if err := e.idx.Insert(table, col, fields[colIdx], id); err != nil {
			return 0, err
		}
	}

	if err := e.endOpLocked(txID, autoCommit); err != nil {
		return 0, err
	}
	return id, nil
}

// ReadRecord returns the current field list stored at id in table.
func (e *Engine) ReadRecord(table string, id recordid.ID) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readRecordLocked(table, id)
}

func (e *Engine) readRecordLocked(table string, id recordid.ID) ([]string, error) {
	ts, ok := e.tables[table]
	if !ok {
		return nil, dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	localPage, slot := recordid.Unpack(id)
	pageID := filemanager.GlobalPageID(ts.fileID, localPage)
	pg, err := e.bp.FetchPage(table, pageID)
	if err != nil {
		return nil, err
	}
	payload, err := pg.GetRecord(slot)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return nil, err
	}
	if err := e.bp.UnpinPage(table, pageID, false); err != nil {
		return nil, err
	}
	return decodeFields(payload)
}

// UpdateRecord overwrites id's fields. If the new encoding no longer
// fits the slot it was allocated at, the record is relocated to a fresh
// slot and its new id is returned — callers must use the returned id for
// any further operation against this row (page.Page's slot allocation
// gives no other way to grow a record beyond its original footprint).
func (e *Engine) UpdateRecord(txnID uint64, table string, id recordid.ID, fields []string) (recordid.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateRecordLocked(txnID, table, id, fields)
}

func (e *Engine) updateRecordLocked(txnID uint64, table string, id recordid.ID, fields []string) (recordid.ID, error) {
	ts, ok := e.tables[table]
	if !ok {
		return 0, dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	schema, err := e.catalog.Get(table)
	if err != nil {
		return 0, err
	}
	if len(fields) != len(schema.Columns) {
		return 0, dberrors.Newf(dberrors.KindInvalidInput, "table %q has %d columns, got %d fields", table, len(schema.Columns), len(fields))
	}

	localPage, slot := recordid.Unpack(id)
	pageID := filemanager.GlobalPageID(ts.fileID, localPage)
	pg, err := e.bp.FetchPage(table, pageID)
	if err != nil {
		return 0, err
	}
	before, err := pg.GetRecord(slot)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return 0, err
	}
	oldFields, err := decodeFields(before)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return 0, err
	}

	txID, autoCommit, err := e.beginOpLocked(txnID)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return 0, err
	}

	after := encodeFields(fields)
	finalID := id
	if updErr := pg.UpdateRecord(slot, after); updErr != nil {
		if !dberrors.Is(updErr, dberrors.KindCapacity) {
			e.bp.UnpinPage(table, pageID, false)
			return 0, updErr
		}
		// Doesn't fit in its original slot (DeleteRecord already ran as
		// part of page.UpdateRecord's failure path); relocate.
		e.bp.UnpinPage(table, pageID, true)
		newPg, err := e.acquirePageForInsertLocked(table, ts, len(after)+4)
		if err != nil {
			return 0, err
		}
		// Append a new directory slot rather than calling AddRecord, which
		// would hand back the slot just tombstoned above and so the same id.
		newSlot := newPg.NumSlots()
		if err := newPg.SetRecordAt(newSlot, after); err != nil {
			e.bp.UnpinPage(table, int64(newPg.ID), false)
			return 0, err
		}
		finalID = recordid.Pack(filemanager.LocalPageNum(int64(newPg.ID)), newSlot)
		pg = newPg
		pageID = int64(newPg.ID)
	}

	rec := wal.Record{Op: wal.OpUpdate, TxnID: txID, Table: table, RecordID: int64(finalID), Before: before, After: after}
	if _, err := e.wal.Append(rec); err != nil {
		return 0, err
	}
	if err := e.bp.UnpinPage(table, pageID, true); err != nil {
		return 0, err
	}
	e.recordOpLocked(txID, autoCommit, rec)

	if tx := e.txns.Get(txID); tx != nil {
		tx.RecordUpdate(int64(finalID))
	}
	for _, col := range schema.IndexedColumns {
		colIdx, _ := e.catalog.ColumnIndex(table, col)
		if oldFields[colIdx] != fields[colIdx] || finalID != id {
			e.idx.Remove(table, col, oldFields[colIdx], id)
			if err := e.idx.Insert(table, col, fields[colIdx], finalID); err != nil {
				return 0, err
			}
		}
	}

	if err := e.endOpLocked(txID, autoCommit); err != nil {
		return 0, err
	}
	return finalID, nil
}

// DeleteRecord tombstones id's slot.
func (e *Engine) DeleteRecord(txnID uint64, table string, id recordid.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteRecordLocked(txnID, table, id)
}

func (e *Engine) deleteRecordLocked(txnID uint64, table string, id recordid.ID) error {
	ts, ok := e.tables[table]
	if !ok {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	schema, err := e.catalog.Get(table)
	if err != nil {
		return err
	}

	localPage, slot := recordid.Unpack(id)
	pageID := filemanager.GlobalPageID(ts.fileID, localPage)
	pg, err := e.bp.FetchPage(table, pageID)
	if err != nil {
		return err
	}
	before, err := pg.GetRecord(slot)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return err
	}
	oldFields, err := decodeFields(before)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return err
	}

	txID, autoCommit, err := e.beginOpLocked(txnID)
	if err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return err
	}

	if err := pg.DeleteRecord(slot); err != nil {
		e.bp.UnpinPage(table, pageID, false)
		return err
	}

	rec := wal.Record{Op: wal.OpDelete, TxnID: txID, Table: table, RecordID: int64(id), Before: before}
	if _, err := e.wal.Append(rec); err != nil {
		return err
	}
	if err := e.bp.UnpinPage(table, pageID, true); err != nil {
		return err
	}
	e.recordOpLocked(txID, autoCommit, rec)

	if tx := e.txns.Get(txID); tx != nil {
		tx.RecordDelete(int64(id))
	}
	for _, col := range schema.IndexedColumns {
		colIdx, _ := e.catalog.ColumnIndex(table, col)
		e.idx.Remove(table, col, oldFields[colIdx], id)
	}

	return e.endOpLocked(txID, autoCommit)
}
