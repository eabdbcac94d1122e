package dwarfinfo

import (
	"debug/dwarf"
)

// Entry is one node of a debug-entry tree.
type Entry interface {
	// Tag returns the construct kind of the entry.
	Tag() dwarf.Tag
	// Offset returns the entry's identity within the debug-info section.
	Offset() dwarf.Offset
	// Field returns the attribute, or nil when the entry does not carry it.
	Field(attr dwarf.Attr) *dwarf.Field
	// Children returns the entry's children in declaration order.
	Children() []Entry
	// Ref returns the entry referenced by attr, or nil when the attribute is
	// absent or points outside the loaded tree.
	Ref(attr dwarf.Attr) Entry
}

// Name returns the DW_AT_name of e, or "" when it has none.
func Name(e Entry) string {
	if f := e.Field(dwarf.AttrName); f != nil {
		if s, ok := f.Val.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns a constant attribute as a signed value.
func Int(e Entry, attr dwarf.Attr) (int64, bool) {
	f := e.Field(attr)
	if f == nil {
		return 0, false
	}
	switch v := f.Val.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true // #nosec G115 -- DWARF constants are reinterpreted, not converted
	}
	return 0, false
}

// Uint returns a constant or address attribute as an unsigned value.
func Uint(e Entry, attr dwarf.Attr) (uint64, bool) {
	f := e.Field(attr)
	if f == nil {
		return 0, false
	}
	switch v := f.Val.(type) {
	case int64:
		return uint64(v), true // #nosec G115
	case uint64:
		return v, true
	}
	return 0, false
}

// Block returns an expression or block attribute.
func Block(e Entry, attr dwarf.Attr) ([]byte, bool) {
	f := e.Field(attr)
	if f == nil {
		return nil, false
	}
	b, ok := f.Val.([]byte)
	return b, ok
}

// Flag reports whether a flag attribute is present and set.
func Flag(e Entry, attr dwarf.Attr) bool {
	f := e.Field(attr)
	if f == nil {
		return false
	}
	b, ok := f.Val.(bool)
	return ok && b
}

// LowPC returns the entry's DW_AT_low_pc.
func LowPC(e Entry) (uint64, bool) {
	f := e.Field(dwarf.AttrLowpc)
	if f == nil {
		return 0, false
	}
	v, ok := f.Val.(uint64)
	return v, ok
}

// PCRange returns [low, high) from DW_AT_low_pc and DW_AT_high_pc. High PC may
// be an address or, from DWARF 4 on, a length relative to low PC.
func PCRange(e Entry) (low, high uint64, ok bool) {
	low, ok = LowPC(e)
	if !ok {
		return 0, 0, false
	}
	f := e.Field(dwarf.AttrHighpc)
	if f == nil {
		return 0, 0, false
	}
	switch v := f.Val.(type) {
	case uint64:
		return low, v, true
	case int64:
		return low, low + uint64(v), true // #nosec G115
	}
	return 0, 0, false
}

// Children returns the children of e carrying one of the given tags.
func Children(e Entry, tags ...dwarf.Tag) []Entry {
	var out []Entry
	for _, c := range e.Children() {
		for _, t := range tags {
			if c.Tag() == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
