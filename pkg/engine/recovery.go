package engine

import (
	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/filemanager"
	"quiverdb/pkg/page"
	"quiverdb/pkg/recordid"
)

// ensurePageLocked returns the page at table-local page number local
// (plus the global id FileManager/BufferManager address it by),
// allocating and registering blank intervening pages first if the
// table's on-disk file never grew that far — the page named by a WAL
// record may never have been flushed before a crash, so FileManager's
// view of "how many pages exist" can lag behind what the log demands
// during redo.
func (e *Engine) ensurePageLocked(table string, local int64) (*page.Page, int64, error) {
	total, err := e.fm.TotalPages(table)
	if err != nil {
		return nil, 0, err
	}
	ts, ok := e.tables[table]
	if !ok {
		return nil, 0, dberrors.Newf(dberrors.KindNotFound, "table %q is not open", table)
	}
	for total <= local {
		pg, err := e.bp.NewPage(table)
		if err != nil {
			return nil, 0, err
		}
		if err := e.bp.UnpinPage(table, int64(pg.ID), true); err != nil {
			return nil, 0, err
		}
		ts.lastPageID = int64(pg.ID)
		total++
	}
	globalID := filemanager.GlobalPageID(ts.fileID, local)
	pg, err := e.bp.FetchPage(table, globalID)
	return pg, globalID, err
}

// RedoInsert implements wal.Applier: re-places after at the exact slot
// recordID names, growing the page (and file) if needed.
func (e *Engine) RedoInsert(table string, recordID int64, after []byte) error {
	local, slot := recordid.Unpack(recordid.ID(recordID))
	pg, globalID, err := e.ensurePageLocked(table, local)
	if err != nil {
		return err
	}
	if err := pg.SetRecordAt(slot, after); err != nil {
		return err
	}
	return e.bp.UnpinPage(table, globalID, true)
}

// RedoUpdate implements wal.Applier.
func (e *Engine) RedoUpdate(table string, recordID int64, after []byte) error {
	return e.RedoInsert(table, recordID, after)
}

// RedoDelete implements wal.Applier. Tolerates a slot that's already
// tombstoned (or doesn't exist yet), since redo must be idempotent.
func (e *Engine) RedoDelete(table string, recordID int64) error {
	local, slot := recordid.Unpack(recordid.ID(recordID))
	pg, globalID, err := e.ensurePageLocked(table, local)
	if err != nil {
		return err
	}
	if slot < pg.NumSlots() {
		if err := pg.DeleteRecord(slot); err != nil && !dberrors.Is(err, dberrors.KindNotFound) {
			return err
		}
	}
	return e.bp.UnpinPage(table, globalID, true)
}

// UndoInsert implements wal.Applier: an uncommitted insert is undone by
// tombstoning the slot it created.
func (e *Engine) UndoInsert(table string, recordID int64) error {
	return e.undoInsertLocked(table, recordID)
}

// UndoUpdate implements wal.Applier: restores before at recordID's slot.
func (e *Engine) UndoUpdate(table string, recordID int64, before []byte) error {
	return e.undoUpdateLocked(table, recordID, before)
}

// UndoDelete implements wal.Applier: restores the deleted record.
func (e *Engine) UndoDelete(table string, recordID int64, before []byte) error {
	return e.undoDeleteLocked(table, recordID, before)
}

func (e *Engine) undoInsertLocked(table string, recordID int64) error {
	local, slot := recordid.Unpack(recordid.ID(recordID))
	pg, globalID, err := e.ensurePageLocked(table, local)
	if err != nil {
		return err
	}
	if slot < pg.NumSlots() {
		if err := pg.DeleteRecord(slot); err != nil && !dberrors.Is(err, dberrors.KindNotFound) {
			return err
		}
	}
	return e.bp.UnpinPage(table, globalID, true)
}

func (e *Engine) undoUpdateLocked(table string, recordID int64, before []byte) error {
	local, slot := recordid.Unpack(recordid.ID(recordID))
	pg, globalID, err := e.ensurePageLocked(table, local)
	if err != nil {
		return err
	}
	if err := pg.SetRecordAt(slot, before); err != nil {
		return err
	}
	return e.bp.UnpinPage(table, globalID, true)
}

func (e *Engine) undoDeleteLocked(table string, recordID int64, before []byte) error {
	return e.undoUpdateLocked(table, recordID, before)
}
