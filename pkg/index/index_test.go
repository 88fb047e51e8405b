package index

import (
	"testing"

	"quiverdb/pkg/logging"
	"quiverdb/pkg/recordid"
)

func TestCreateInsertSearch(t *testing.T) {
	m := New(4, logging.Noop())
	if err := m.CreateIndex("users", "email"); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := m.CreateIndex("users", "email"); err == nil {
		t.Fatal("expected AlreadyExists on duplicate CreateIndex")
	}

	if err := m.Insert("users", "email", "a@x.com", recordid.ID(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ids, err := m.Search("users", "email", "a@x.com")
	if err != nil || len(ids) != 1 || ids[0] != recordid.ID(1) {
		t.Fatalf("Search = %v, %v", ids, err)
	}
}

func TestDropIndex(t *testing.T) {
	m := New(4, logging.Noop())
	m.CreateIndex("t", "c")
	if err := m.DropIndex("t", "c"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if m.HasIndex("t", "c") {
		t.Fatal("expected index to be gone")
	}
	if err := m.DropIndex("t", "c"); err == nil {
		t.Fatal("expected NotFound dropping again")
	}
}

func TestDropAllForTable(t *testing.T) {
	m := New(4, logging.Noop())
	m.CreateIndex("t1", "a")
	m.CreateIndex("t1", "b")
	m.CreateIndex("t2", "a")

	m.DropAllForTable("t1")
	if m.HasIndex("t1", "a") || m.HasIndex("t1", "b") {
		t.Fatal("expected t1's indexes to be gone")
	}
	if !m.HasIndex("t2", "a") {
		t.Fatal("expected t2's index to survive")
	}
}

func TestBulkLoadAndStats(t *testing.T) {
	m := New(4, logging.Noop())
	pairs := []struct {
		Value string
		ID    recordid.ID
	}{
		{"x", recordid.ID(1)},
		{"y", recordid.ID(2)},
	}
	if err := m.BulkLoad("t", "c", pairs); err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}
	ids, err := m.Search("t", "c", "x")
	if err != nil || len(ids) != 1 {
		t.Fatalf("Search after bulk load = %v, %v", ids, err)
	}

	stats := m.Stats()
	if len(stats) != 1 || stats[0].DistinctKeys != 2 {
		t.Fatalf("Stats = %+v", stats)
	}
	if stats[0].Height < 1 || stats[0].NodeCount < 1 {
		t.Fatalf("Stats = %+v, want Height>=1 and NodeCount>=1", stats)
	}
}
