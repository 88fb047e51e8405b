// Package catalog persists table schemas across restarts, the same
// responsibility ShubhamNegi4-DaemonDB/storage_engine/catalog's
// CatalogManager has for DaemonDB's multi-database tree: one JSON file
// per table (here under <data_dir>/catalog/<table>.json instead of
// <dbroot>/<db>/tables/<table>_schema.json, since quiverdb has no
// CREATE DATABASE concept — one StorageEngine, one data directory),
// loaded eagerly at Open and cached in memory from then on.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/logging"
)

// TableSchema describes one table's column list and which columns have
// a secondary index (the index contents themselves live only in
// index.Manager's in-memory trees; this just remembers which ones to
// rebuild after a restart).
type TableSchema struct {
	Name           string   `json:"name"`
	Columns        []string `json:"columns"`
	IndexedColumns []string `json:"indexed_columns,omitempty"`
}

func (s TableSchema) hasIndexedColumn(column string) bool {
	for _, c := range s.IndexedColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Manager owns every table schema under one data directory.
type Manager struct {
	mu     sync.RWMutex
	dir    string
	tables map[string]TableSchema
	log    *logging.Logger
}

// New opens (creating if necessary) the catalog directory under dataDir
// and loads every schema file already present there.
func New(dataDir string, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Noop()
	}
	dir := filepath.Join(dataDir, "catalog")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to create catalog directory", err)
	}

	m := &Manager{dir: dir, tables: make(map[string]TableSchema), log: log.With("component", "catalog")}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to list catalog directory", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to read schema file %s", e.Name()), err)
		}
		var schema TableSchema
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, dberrors.Wrap(dberrors.KindIntegrity, fmt.Sprintf("failed to parse schema file %s", e.Name()), err)
		}
		m.tables[schema.Name] = schema
	}
	m.log.Infof("loaded %d table schemas from %s", len(m.tables), dir)
	return m, nil
}

func (m *Manager) schemaPath(table string) string {
	return filepath.Join(m.dir, table+".json")
}

func (m *Manager) persistLocked(schema TableSchema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return dberrors.Wrap(dberrors.KindIO, "failed to marshal table schema", err)
	}
	if err := os.WriteFile(m.schemaPath(schema.Name), data, 0644); err != nil {
		return dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to persist schema for table %q", schema.Name), err)
	}
	return nil
}

// Exists reports whether table is registered.
func (m *Manager) Exists(table string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[table]
	return ok
}

// Get returns table's schema.
func (m *Manager) Get(table string) (TableSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.tables[table]
	if !ok {
		return TableSchema{}, dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	return schema, nil
}

// Register persists a brand-new table schema. Returns AlreadyExists if
// the table is already registered.
func (m *Manager) Register(schema TableSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[schema.Name]; exists {
		return dberrors.Newf(dberrors.KindAlreadyExists, "table %q already exists", schema.Name)
	}
	if err := m.persistLocked(schema); err != nil {
		return err
	}
	m.tables[schema.Name] = schema
	m.log.Infof("registered table %q with %d columns", schema.Name, len(schema.Columns))
	return nil
}

// Unregister removes table's schema, both in memory and on disk.
func (m *Manager) Unregister(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[table]; !exists {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	delete(m.tables, table)
	if err := os.Remove(m.schemaPath(table)); err != nil && !os.IsNotExist(err) {
		return dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to remove schema file for table %q", table), err)
	}
	return nil
}

// MarkIndexed records that column now has a secondary index, persisting
// the updated schema so it survives a restart.
func (m *Manager) MarkIndexed(table, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, exists := m.tables[table]
	if !exists {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	if schema.hasIndexedColumn(column) {
		return nil
	}
	schema.IndexedColumns = append(schema.IndexedColumns, column)
	if err := m.persistLocked(schema); err != nil {
		return err
	}
	m.tables[table] = schema
	return nil
}

// UnmarkIndexed reverses MarkIndexed.
func (m *Manager) UnmarkIndexed(table, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, exists := m.tables[table]
	if !exists {
		return dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	filtered := schema.IndexedColumns[:0]
	for _, c := range schema.IndexedColumns {
		if c != column {
			filtered = append(filtered, c)
		}
	}
	schema.IndexedColumns = filtered
	if err := m.persistLocked(schema); err != nil {
		return err
	}
	m.tables[table] = schema
	return nil
}

// Tables lists every registered table name, sorted.
func (m *Manager) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tables))
	for name := range m.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ColumnIndex returns the zero-based position of column within table's
// schema.
func (m *Manager) ColumnIndex(table, column string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, exists := m.tables[table]
	if !exists {
		return -1, dberrors.Newf(dberrors.KindNotFound, "table %q does not exist", table)
	}
	for i, c := range schema.Columns {
		if c == column {
			return i, nil
		}
	}
	return -1, dberrors.Newf(dberrors.KindInvalidInput, "table %q has no column %q", table, column)
}
