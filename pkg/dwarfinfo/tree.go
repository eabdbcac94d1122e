package dwarfinfo

import (
	"debug/dwarf"
)

// Tree owns a set of entries and resolves references between them.
// References may cross compilation units, so one Tree is shared by every unit
// loaded from the same DWARF data.
type Tree struct {
	nodes map[dwarf.Offset]*Node
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[dwarf.Offset]*Node)}
}

// Add creates an entry under parent (nil for a root) and registers it by
// offset. Adding a second entry with the same offset replaces the lookup
// target but keeps both in their parents' child lists.
func (t *Tree) Add(parent *Node, off dwarf.Offset, tag dwarf.Tag, fields ...dwarf.Field) *Node {
	n := &Node{tree: t, tag: tag, offset: off, fields: fields}
	t.nodes[off] = n
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	return n
}

// Lookup returns the entry at off.
func (t *Tree) Lookup(off dwarf.Offset) (*Node, bool) {
	n, ok := t.nodes[off]
	return n, ok
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node is the in-memory Entry implementation.
type Node struct {
	tree     *Tree
	tag      dwarf.Tag
	offset   dwarf.Offset
	fields   []dwarf.Field
	children []Entry

	// raw is the entry the node was loaded from, if any. Range lookups need
	// it because debug/dwarf resolves DW_AT_ranges from the original entry.
	raw *dwarf.Entry
}

func (n *Node) Tag() dwarf.Tag       { return n.tag }
func (n *Node) Offset() dwarf.Offset { return n.offset }
func (n *Node) Children() []Entry    { return n.children }

// Field returns the attribute, or nil.
func (n *Node) Field(attr dwarf.Attr) *dwarf.Field {
	for i := range n.fields {
		if n.fields[i].Attr == attr {
			return &n.fields[i]
		}
	}
	return nil
}

// Ref returns the entry referenced by attr.
func (n *Node) Ref(attr dwarf.Attr) Entry {
	f := n.Field(attr)
	if f == nil {
		return nil
	}
	off, ok := f.Val.(dwarf.Offset)
	if !ok {
		return nil
	}
	target, ok := n.tree.Lookup(off)
	if !ok {
		return nil
	}
	return target
}

// Set adds or replaces an attribute.
func (n *Node) Set(f dwarf.Field) {
	for i := range n.fields {
		if n.fields[i].Attr == f.Attr {
			n.fields[i] = f
			return
		}
	}
	n.fields = append(n.fields, f)
}

// Field constructors for building trees by hand.

// Const builds a constant attribute.
func Const(attr dwarf.Attr, v int64) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: v, Class: dwarf.ClassConstant}
}

// Addr builds an address attribute.
func Addr(attr dwarf.Attr, v uint64) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: v, Class: dwarf.ClassAddress}
}

// String builds a string attribute.
func String(attr dwarf.Attr, s string) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: s, Class: dwarf.ClassString}
}

// Ref builds a reference attribute.
func Ref(attr dwarf.Attr, off dwarf.Offset) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: off, Class: dwarf.ClassReference}
}

// Expr builds an expression (exprloc) attribute.
func Expr(attr dwarf.Attr, b []byte) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: b, Class: dwarf.ClassExprLoc}
}

// LocListPtr builds a location-list section offset attribute.
func LocListPtr(attr dwarf.Attr, off int64) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: off, Class: dwarf.ClassLocListPtr}
}

// FlagField builds a flag attribute.
func FlagField(attr dwarf.Attr) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: true, Class: dwarf.ClassFlag}
}
