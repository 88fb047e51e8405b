package catalog

import (
	"testing"

	"quiverdb/pkg/logging"
)

func TestRegisterGetPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, logging.Noop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Register(TableSchema{Name: "orders", Columns: []string{"id", "customer"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !m.Exists("orders") {
		t.Fatal("expected orders to exist")
	}

	m2, err := New(dir, logging.Noop())
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	schema, err := m2.Get("orders")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if len(schema.Columns) != 2 || schema.Columns[1] != "customer" {
		t.Fatalf("unexpected schema after reopen: %+v", schema)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	m, _ := New(t.TempDir(), logging.Noop())
	m.Register(TableSchema{Name: "t", Columns: []string{"a"}})
	if err := m.Register(TableSchema{Name: "t", Columns: []string{"a"}}); err == nil {
		t.Fatal("expected error registering a duplicate table")
	}
}

func TestUnregisterRemovesTable(t *testing.T) {
	m, _ := New(t.TempDir(), logging.Noop())
	m.Register(TableSchema{Name: "t", Columns: []string{"a"}})
	if err := m.Unregister("t"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if m.Exists("t") {
		t.Fatal("expected t to be gone")
	}
}

func TestMarkIndexedPersists(t *testing.T) {
	dir := t.TempDir()
	m, _ := New(dir, logging.Noop())
	m.Register(TableSchema{Name: "t", Columns: []string{"a", "b"}})
	if err := m.MarkIndexed("t", "b"); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}

	m2, _ := New(dir, logging.Noop())
	schema, _ := m2.Get("t")
	if len(schema.IndexedColumns) != 1 || schema.IndexedColumns[0] != "b" {
		t.Fatalf("expected indexed column b to persist, got %+v", schema)
	}
}

func TestColumnIndex(t *testing.T) {
	m, _ := New(t.TempDir(), logging.Noop())
	m.Register(TableSchema{Name: "t", Columns: []string{"id", "name", "email"}})
	idx, err := m.ColumnIndex("t", "email")
	if err != nil || idx != 2 {
		t.Fatalf("ColumnIndex = %d, %v; want 2, nil", idx, err)
	}
}
