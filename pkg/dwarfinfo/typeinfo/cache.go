package typeinfo

import (
	"debug/dwarf"
	"sort"
)

// Cache maps entry offsets to resolved types for one resolution session,
// normally one compilation unit. It is not safe for concurrent use; parallel
// workers each own a Cache.
type Cache struct {
	types map[dwarf.Offset]*Type
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{types: make(map[dwarf.Offset]*Type)}
}

// Lookup returns the type resolved for off.
func (c *Cache) Lookup(off dwarf.Offset) (*Type, bool) {
	t, ok := c.types[off]
	return t, ok
}

func (c *Cache) store(off dwarf.Offset, t *Type) {
	c.types[off] = t
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.types)
}

// Structs returns the distinct struct types in the cache ordered by the offset
// of the entry that defined them.
func (c *Cache) Structs() []*Type {
	offsets := make([]dwarf.Offset, 0, len(c.types))
	for off, t := range c.types {
		if t.Kind == KindStruct {
			offsets = append(offsets, off)
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	seen := make(map[*Type]bool, len(offsets))
	out := make([]*Type, 0, len(offsets))
	for _, off := range offsets {
		t := c.types[off]
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
