package btree

import (
	"testing"

	"quiverdb/pkg/recordid"
)

func TestInsertSearch(t *testing.T) {
	tr := New(3)
	tr.Insert("alice", recordid.ID(1))
	tr.Insert("bob", recordid.ID(2))
	tr.Insert("carol", recordid.ID(3))

	ids, ok := tr.Search("bob")
	if !ok || len(ids) != 1 || ids[0] != recordid.ID(2) {
		t.Fatalf("Search(bob) = %v, %v", ids, ok)
	}
	if _, ok := tr.Search("dave"); ok {
		t.Fatal("expected dave to be absent")
	}
}

func TestInsertDuplicateKeyUnionsValues(t *testing.T) {
	tr := New(3)
	tr.Insert("x", recordid.ID(1))
	tr.Insert("x", recordid.ID(2))
	tr.Insert("x", recordid.ID(1)) // duplicate id, should not appear twice

	ids, ok := tr.Search("x")
	if !ok || len(ids) != 2 {
		t.Fatalf("Search(x) = %v, want 2 distinct ids", ids)
	}
}

func TestManyInsertsTriggerSplits(t *testing.T) {
	tr := New(2) // small degree forces frequent splits
	keys := []string{"m", "a", "z", "b", "y", "c", "x", "d", "w", "e", "v", "f", "u", "g"}
	for i, k := range keys {
		tr.Insert(k, recordid.ID(i))
	}

	if tr.Count() != len(keys) {
		t.Fatalf("Count() = %d, want %d", tr.Count(), len(keys))
	}
	for i, k := range keys {
		ids, ok := tr.Search(k)
		if !ok || len(ids) != 1 || ids[0] != recordid.ID(i) {
			t.Fatalf("Search(%q) = %v, %v, want [%d]", k, ids, ok, i)
		}
	}
}

func TestRemove(t *testing.T) {
	tr := New(3)
	tr.Insert("k", recordid.ID(1))
	tr.Insert("k", recordid.ID(2))

	if !tr.Remove("k", recordid.ID(1)) {
		t.Fatal("expected Remove to find id 1")
	}
	ids, ok := tr.Search("k")
	if !ok || len(ids) != 1 || ids[0] != recordid.ID(2) {
		t.Fatalf("Search(k) after remove = %v, %v", ids, ok)
	}
	if tr.Remove("k", recordid.ID(99)) {
		t.Fatal("expected Remove of absent id to return false")
	}
}

func TestHeightAndNodeCountGrowWithSplits(t *testing.T) {
	tr := New(2)
	if tr.Height() != 1 || tr.NodeCount() != 1 {
		t.Fatalf("empty tree: height=%d nodeCount=%d, want 1, 1", tr.Height(), tr.NodeCount())
	}

	keys := []string{"m", "a", "z", "b", "y", "c", "x", "d", "w", "e", "v", "f", "u", "g"}
	for i, k := range keys {
		tr.Insert(k, recordid.ID(i))
	}

	if h := tr.Height(); h <= 1 {
		t.Fatalf("Height() = %d, want > 1 after enough splits", h)
	}
	if n := tr.NodeCount(); n <= 1 {
		t.Fatalf("NodeCount() = %d, want > 1 after enough splits", n)
	}
}

func TestWalkOrdersByKey(t *testing.T) {
	tr := New(2)
	for _, k := range []string{"d", "b", "a", "c"} {
		tr.Insert(k, recordid.ID(0))
	}
	var seen []string
	tr.Walk(func(key string, ids []recordid.ID) {
		seen = append(seen, key)
	})
	want := []string{"a", "b", "c", "d"}
	if len(seen) != len(want) {
		t.Fatalf("Walk visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Walk order %v, want %v", seen, want)
		}
	}
}
