// Package btree implements the in-memory secondary-index structure named
// by spec.md §4.4: a textbook minimum-degree-t B-tree keyed by an
// indexed field's string value, with multimap (set-union) values since
// more than one record can share an indexed value.
//
// Grounded in original_source/core/src/btree.cpp's BTree<Key, Value>
// template: split_child/insert_non_full/search are ported directly,
// keeping the same recursive-descent shape original_source uses. Unlike
// original_source's single-Value-per-key tree, quiverdb's Value slot is
// a []recordid.ID so a duplicate indexed value accumulates record ids
// instead of overwriting the previous one (spec.md §4.4's multimap
// requirement).
package btree

import (
	"sort"

	"quiverdb/pkg/recordid"
)

const defaultDegree = 10

// node is one B-tree node. Non-leaf nodes have len(children) ==
// len(keys)+1; leaf nodes have no children.
type node struct {
	leaf     bool
	keys     []string
	values   [][]recordid.ID
	children []*node
}

func newNode(leaf bool) *node {
	return &node{leaf: leaf}
}

// Tree is an in-memory B-tree of minimum degree t. It is never persisted
// — spec.md §4.4 has IndexManager rebuild it from a full table scan on
// demand rather than keep it durable across restarts.
type Tree struct {
	degree int
	root   *node
	count  int // number of distinct keys
}

// New creates a Tree of minimum degree t. t must be >= 2; a value <2 is
// promoted to the project default of 10 (spec.md §6's btree_degree
// default).
func New(t int) *Tree {
	if t < 2 {
		t = defaultDegree
	}
	return &Tree{degree: t, root: newNode(true)}
}

// Insert adds id under key, appending to the existing value list if key
// is already present (set-union, no duplicate ids).
func (t *Tree) Insert(key string, id recordid.ID) {
	if n, idx, ok := t.find(t.root, key); ok {
		appendUnique(n, idx, id)
		return
	}

	t.count++
	if len(t.root.keys) == 2*t.degree-1 {
		newRoot := newNode(false)
		newRoot.children = append(newRoot.children, t.root)
		t.root = newRoot
		t.splitChild(newRoot, 0)
	}
	t.insertNonFull(t.root, key, id)
}

func appendUnique(n *node, idx int, id recordid.ID) {
	for _, existing := range n.values[idx] {
		if existing == id {
			return
		}
	}
	n.values[idx] = append(n.values[idx], id)
}

// find walks down from n searching for key, returning the node and index
// holding it if present.
func (t *Tree) find(n *node, key string) (*node, int, bool) {
	for n != nil {
		i := sort.SearchStrings(n.keys, key)
		if i < len(n.keys) && n.keys[i] == key {
			return n, i, true
		}
		if n.leaf {
			return nil, 0, false
		}
		n = n.children[i]
	}
	return nil, 0, false
}

// splitChild splits the full child at parent.children[i] into two nodes
// joined by a median key promoted into parent, following
// original_source's split_child exactly (1:1 translation of the index
// arithmetic, degree t).
func (t *Tree) splitChild(parent *node, i int) {
	child := parent.children[i]
	mid := t.degree - 1

	sibling := newNode(child.leaf)
	sibling.keys = append(sibling.keys, child.keys[mid+1:]...)
	sibling.values = append(sibling.values, child.values[mid+1:]...)
	if !child.leaf {
		sibling.children = append(sibling.children, child.children[mid+1:]...)
		child.children = child.children[:mid+1]
	}

	upKey, upValue := child.keys[mid], child.values[mid]
	child.keys = child.keys[:mid]
	child.values = child.values[:mid]

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = sibling

	parent.keys = append(parent.keys, "")
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = upKey

	parent.values = append(parent.values, nil)
	copy(parent.values[i+1:], parent.values[i:])
	parent.values[i] = upValue
}

// insertNonFull inserts (key, id) into the subtree rooted at n, which is
// guaranteed not to be full (original_source's insert_non_full).
func (t *Tree) insertNonFull(n *node, key string, id recordid.ID) {
	if n.leaf {
		i := sort.SearchStrings(n.keys, key)
		n.keys = append(n.keys, "")
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = key

		n.values = append(n.values, nil)
		copy(n.values[i+1:], n.values[i:])
		n.values[i] = []recordid.ID{id}
		return
	}

	i := sort.SearchStrings(n.keys, key)
	if len(n.children[i].keys) == 2*t.degree-1 {
		t.splitChild(n, i)
		if key > n.keys[i] {
			i++
		}
	}
	t.insertNonFull(n.children[i], key, id)
}

// Search returns the record ids stored under key, if any.
func (t *Tree) Search(key string) ([]recordid.ID, bool) {
	n, idx, ok := t.find(t.root, key)
	if !ok {
		return nil, false
	}
	out := make([]recordid.ID, len(n.values[idx]))
	copy(out, n.values[idx])
	return out, true
}

// Remove deletes id from key's value list. If the list becomes empty the
// key entry is left in place with an empty list rather than triggering a
// full B-tree node-merge rebalance — IndexManager rebuilds the tree from
// the table on demand (spec.md §4.4), so a temporarily under-filled node
// carries no correctness cost.
func (t *Tree) Remove(key string, id recordid.ID) bool {
	n, idx, ok := t.find(t.root, key)
	if !ok {
		return false
	}
	for i, existing := range n.values[idx] {
		if existing == id {
			n.values[idx] = append(n.values[idx][:i], n.values[idx][i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of distinct keys in the tree.
func (t *Tree) Count() int { return t.count }

// Height returns the number of levels in the tree, counting the root as
// level 1. An empty tree (bare leaf root) has height 1.
func (t *Tree) Height() int {
	h := 0
	for n := t.root; n != nil; {
		h++
		if n.leaf {
			break
		}
		n = n.children[0]
	}
	return h
}

// NodeCount returns the total number of nodes (internal and leaf) in the
// tree.
func (t *Tree) NodeCount() int {
	var count func(n *node) int
	count = func(n *node) int {
		if n == nil {
			return 0
		}
		total := 1
		for _, child := range n.children {
			total += count(child)
		}
		return total
	}
	return count(t.root)
}

// Walk visits every (key, ids) pair in ascending key order.
func (t *Tree) Walk(fn func(key string, ids []recordid.ID)) {
	var rec func(n *node)
	rec = func(n *node) {
		if n == nil {
			return
		}
		for i, key := range n.keys {
			if !n.leaf {
				rec(n.children[i])
			}
			fn(key, n.values[i])
		}
		if !n.leaf {
			rec(n.children[len(n.children)-1])
		}
	}
	rec(t.root)
}
