package engine

import (
	"quiverdb/pkg/catalog"
	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/filemanager"
	"quiverdb/pkg/recordid"
)

// CreateTable registers a new table and opens its (empty) heap file.
//
// Grounded in
// ShubhamNegi4-DaemonDB/storage_engine/exec_create_table.go's
// register-then-compensate-on-failure shape, simplified: quiverdb's
// catalog.Register already persists synchronously (a plain os.WriteFile),
// so there's no multi-file WAL-logged compensation to perform — only a
// single rollback step if opening the heap file fails after the catalog
// entry was written.
func (e *Engine) CreateTable(table string, columns []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.catalog.Exists(table) {
		return dberrors.Newf(dberrors.KindAlreadyExists, "table %q already exists", table)
	}
	if len(columns) == 0 {
		return dberrors.New(dberrors.KindInvalidInput, "a table needs at least one column")
	}

	if err := e.catalog.Register(catalog.TableSchema{Name: table, Columns: columns}); err != nil {
		return err
	}
	if err := e.openTableFile(table); err != nil {
		if rerr := e.catalog.Unregister(table); rerr != nil {
			e.log.Errorf("failed to roll back catalog entry for %q after open failure: %v", table, rerr)
		}
		return err
	}
	return nil
}

// DeleteTable drops table: its secondary indexes, its catalog entry, and
// its on-disk heap file.
func (e *Engine) DeleteTable(table string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tables[table]
	if !ok {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}

	total, err := e.fm.TotalPages(table)
	if err != nil {
		return err
	}
	for local := int64(0); local < total; local++ {
		globalID := filemanager.GlobalPageID(ts.fileID, local)
		if err := e.bp.InvalidatePage(table, globalID); err != nil {
			return err
		}
	}

	e.idx.DropAllForTable(table)
	if err := e.catalog.Unregister(table); err != nil {
		return err
	}
	if err := e.fm.DeleteTable(table); err != nil {
		return err
	}
	delete(e.tables, table)
	return nil
}

// GetTableSchema returns table's column list.
func (e *Engine) GetTableSchema(table string) (catalog.TableSchema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Get(table)
}

// ListTables returns every registered table name, sorted.
func (e *Engine) ListTables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Tables()
}

// ScanTable visits every live record in table, in page/slot order. visit
// returning an error aborts the scan and that error is returned.
func (e *Engine) ScanTable(table string, visit func(id recordid.ID, fields []string) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanTableLocked(table, visit)
}

func (e *Engine) scanTableLocked(table string, visit func(id recordid.ID, fields []string) error) error {
	ts, ok := e.tables[table]
	if !ok {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}

	total, err := e.fm.TotalPages(table)
	if err != nil {
		return err
	}
	for local := int64(0); local < total; local++ {
		globalID := filemanager.GlobalPageID(ts.fileID, local)
		pg, err := e.bp.FetchPage(table, globalID)
		if err != nil {
			return err
		}
		for slot := uint16(0); slot < pg.NumSlots(); slot++ {
			payload, err := pg.GetRecord(slot)
			if err != nil {
				continue // tombstoned slot
			}
			fields, err := decodeFields(payload)
			if err != nil {
				e.bp.UnpinPage(table, globalID, false)
				return err
			}
			id := recordid.Pack(local, slot)
			if err := visit(id, fields); err != nil {
				e.bp.UnpinPage(table, globalID, false)
				return err
			}
		}
		if err := e.bp.UnpinPage(table, globalID, false); err != nil {
			return err
		}
	}
	return nil
}

// rebuildIndexesForTable rebuilds every registered secondary index on
// table from a full scan, the only way to restore an in-memory index's
// contents after a restart or an aborted transaction touched it.
func (e *Engine) rebuildIndexesForTable(table string) error {
	schema, err := e.catalog.Get(table)
	if err != nil {
		return err
	}
	if len(schema.IndexedColumns) == 0 {
		return nil
	}

	type pair struct {
		Value string
		ID    recordid.ID
	}
	byColumn := make(map[string][]pair)
	for _, col := range schema.IndexedColumns {
		byColumn[col] = nil
	}

	err = e.scanTableLocked(table, func(id recordid.ID, fields []string) error {
		for _, col := range schema.IndexedColumns {
			colIdx, err := e.catalog.ColumnIndex(table, col)
			if err != nil {
				return err
			}
			byColumn[col] = append(byColumn[col], pair{Value: fields[colIdx], ID: id})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for col, pairs := range byColumn {
		if !e.idx.HasIndex(table, col) {
			if err := e.idx.CreateIndex(table, col); err != nil {
				return err
			}
		}
		loadPairs := make([]struct {
			Value string
			ID    recordid.ID
		}, len(pairs))
		for i, p := range pairs {
			loadPairs[i].Value = p.Value
			loadPairs[i].ID = p.ID
		}
		if err := e.idx.BulkLoad(table, col, loadPairs); err != nil {
			return err
		}
	}
	return nil
}
