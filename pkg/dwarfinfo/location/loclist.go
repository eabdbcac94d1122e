package location

import (
	"debug/dwarf"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
)

// DecodeLoc decodes a DWARF 2-4 location list starting at off in the
// .debug_loc section. Entry addresses are relative to base, which starts out
// as the unit's base address and may be replaced by base-address selection
// entries. Ranges come back in section order.
func (in *Interpreter) DecodeLoc(sec []byte, off uint64, base uint64, at dwarf.Offset) []Range {
	if off >= uint64(len(sec)) {
		in.diag.Add(dwarfinfo.KindMalformed, at, "location list offset 0x%x outside .debug_loc (%d bytes)", off, len(sec))
		return []Range{}
	}

	c := &cursor{data: sec, pos: int(off), order: in.order} // #nosec G115 -- bounded above
	maxAddr := ^uint64(0) >> (64 - 8*uint(in.addrSize))   // #nosec G115

	ranges := []Range{}
	for {
		start := c.fixed(in.addrSize)
		end := c.fixed(in.addrSize)
		if c.err {
			break
		}
		if start == 0 && end == 0 {
			return ranges
		}
		if start == maxAddr {
			base = end
			continue
		}

		n := int(c.u16())
		expr := c.bytes(n)
		if c.err {
			break
		}
		ranges = append(ranges, Range{
			Start: base + start,
			End:   base + end,
			Expr:  in.Interpret(expr, at),
		})
	}

	in.diag.Add(dwarfinfo.KindMalformed, at, "truncated location list at .debug_loc+0x%x", off)
	return ranges
}

// LocListsOffset resolves a DW_FORM_loclistx index through the offsets table
// that starts at listsBase in .debug_loclists.
func (in *Interpreter) LocListsOffset(sec []byte, listsBase, index uint64, at dwarf.Offset) (uint64, bool) {
	pos := listsBase + index*loclistsOffsetLen
	if listsBase == 0 || pos+loclistsOffsetLen > uint64(len(sec)) {
		in.diag.Add(dwarfinfo.KindMalformed, at, "location list index %d outside .debug_loclists", index)
		return 0, false
	}
	rel := in.order.Uint32(sec[pos : pos+loclistsOffsetLen])
	return listsBase + uint64(rel), true
}

// DecodeLocLists decodes a DWARF 5 location list starting at off in the
// .debug_loclists section. addrs is the unit's slice of .debug_addr, used by
// the indexed entry kinds.
func (in *Interpreter) DecodeLocLists(sec []byte, off uint64, base uint64, addrs []byte, at dwarf.Offset) []Range {
	if off >= uint64(len(sec)) {
		in.diag.Add(dwarfinfo.KindMalformed, at, "location list offset 0x%x outside .debug_loclists (%d bytes)", off, len(sec))
		return []Range{}
	}

	c := &cursor{data: sec, pos: int(off), order: in.order} // #nosec G115 -- bounded above
	addrx := func(i uint64) uint64 {
		a, ok := in.indexedAddress(addrs, i)
		if !ok {
			c.err = true
		}
		return a
	}
	counted := func(start, end uint64) Range {
		n := c.uleb()
		expr := c.bytes(int(n)) // #nosec G115 -- bytes rejects oversize lengths
		if c.err {
			return Range{}
		}
		return Range{Start: start, End: end, Expr: in.Interpret(expr, at)}
	}

	ranges := []Range{}
	for !c.done() {
		var r Range
		switch kind := c.u8(); kind {
		case lleEndOfList:
			return ranges
		case lleBaseAddressx:
			base = addrx(c.uleb())
			continue
		case lleBaseAddress:
			base = c.fixed(in.addrSize)
			continue
		case lleStartxEndx:
			start := addrx(c.uleb())
			end := addrx(c.uleb())
			r = counted(start, end)
		case lleStartxLength:
			start := addrx(c.uleb())
			r = counted(start, start+c.uleb())
		case lleOffsetPair:
			start := c.uleb()
			end := c.uleb()
			r = counted(base+start, base+end)
		case lleDefaultLoc:
			r = counted(0, ^uint64(0))
		case lleStartEnd:
			start := c.fixed(in.addrSize)
			end := c.fixed(in.addrSize)
			r = counted(start, end)
		case lleStartLength:
			start := c.fixed(in.addrSize)
			r = counted(start, start+c.uleb())
		default:
			in.diag.Add(dwarfinfo.KindUnsupported, at, "location list entry kind 0x%02x", kind)
			return ranges
		}
		if c.err {
			break
		}
		ranges = append(ranges, r)
	}

	in.diag.Add(dwarfinfo.KindMalformed, at, "truncated location list at .debug_loclists+0x%x", off)
	return ranges
}

func (in *Interpreter) indexedAddress(addrs []byte, i uint64) (uint64, bool) {
	size := uint64(in.addrSize) // #nosec G115
	pos := i * size
	if pos+size > uint64(len(addrs)) {
		return 0, false
	}
	c := &cursor{data: addrs, pos: int(pos), order: in.order} // #nosec G115 -- bounded above
	return c.fixed(in.addrSize), true
}

// Decode decodes the location attribute attr of e. It returns false when e
// has no such attribute. Expression blocks decode inline. Section offsets
// read .debug_loc or .debug_loclists depending on the unit version, and list
// indexes always go through .debug_loclists.
func (in *Interpreter) Decode(u *dwarfinfo.Unit, e dwarfinfo.Entry, attr dwarf.Attr) (Location, bool) {
	f := e.Field(attr)
	if f == nil {
		return Location{}, false
	}
	at := e.Offset()

	switch v := f.Val.(type) {
	case []byte:
		return Location{Expr: in.Interpret(v, at)}, true

	case int64:
		// DW_FORM_sec_offset, reported as ClassLocListPtr in every version.
		off := uint64(v) // #nosec G115
		if u.UsesLocLists() {
			return Location{Ranges: in.DecodeLocLists(u.LocLists, off, u.BaseAddress, u.AddrTable, at)}, true
		}
		return Location{Ranges: in.DecodeLoc(u.Loc, off, u.BaseAddress, at)}, true

	case uint64:
		// DW_FORM_loclistx
		off, ok := in.LocListsOffset(u.LocLists, u.LocListsBase, v, at)
		if !ok {
			return Location{Ranges: []Range{}}, true
		}
		return Location{Ranges: in.DecodeLocLists(u.LocLists, off, u.BaseAddress, u.AddrTable, at)}, true
	}

	in.diag.Add(dwarfinfo.KindMalformed, at, "location attribute of class %s", f.Class)
	return Location{Expr: sentinel(StatusUnrecognized)}, true
}
