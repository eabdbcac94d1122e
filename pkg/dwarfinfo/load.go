package dwarfinfo

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrEntryBudget is returned by Load when the data holds more entries than
// the caller allowed.
var ErrEntryBudget = errors.New("dwarfinfo: entry budget exceeded")

// Sections carries the raw debug sections that debug/dwarf does not expose.
type Sections struct {
	Info     []byte // .debug_info, read for unit header versions
	Loc      []byte // .debug_loc
	LocLists []byte // .debug_loclists
	Addr     []byte // .debug_addr
}

// LoadOptions bounds loading.
type LoadOptions struct {
	// MaxEntries stops loading once the tree holds more entries. Zero means
	// unlimited.
	MaxEntries int
}

// Load reads every unit of d into one Tree and returns the units in section
// order.
func Load(d *dwarf.Data, sec Sections, opts LoadOptions) ([]*Unit, error) {
	tree := NewTree()
	r := d.Reader()
	headers := parseUnitHeaders(sec.Info, r.ByteOrder())

	var (
		units []*Unit
		stack []*Node
		count int
	)

	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("read entry: %w", err)
		}
		if e == nil {
			break
		}

		// A null entry closes the current sibling chain.
		if e.Tag == 0 {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		count++
		if opts.MaxEntries > 0 && count > opts.MaxEntries {
			return nil, fmt.Errorf("%w: more than %d entries", ErrEntryBudget, opts.MaxEntries)
		}

		var parent *Node
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		n := tree.Add(parent, e.Offset, e.Tag, e.Field...)
		n.raw = e

		if parent == nil {
			u := newUnit(d, n, e, r.AddressSize(), r.ByteOrder(), sec)
			u.Version = headers.version(e.Offset)
			units = append(units, u)
		}

		if e.Children {
			stack = append(stack, n)
		}
	}

	return units, nil
}

func newUnit(d *dwarf.Data, root *Node, e *dwarf.Entry, addrSize int, order binary.ByteOrder, sec Sections) *Unit {
	u := &Unit{
		Root:        root,
		Name:        Name(root),
		AddressSize: addrSize,
		ByteOrder:   order,
		Loc:         sec.Loc,
		LocLists:    sec.LocLists,
	}
	if dir, ok := e.Val(dwarf.AttrCompDir).(string); ok {
		u.CompDir = dir
	}
	if low, ok := LowPC(root); ok {
		u.BaseAddress = low
	}
	if base, ok := e.Val(dwarf.AttrLoclistsBase).(int64); ok && base >= 0 {
		u.LocListsBase = uint64(base)
	}
	if base, ok := e.Val(dwarf.AttrAddrBase).(int64); ok && base >= 0 && base <= int64(len(sec.Addr)) {
		u.AddrTable = sec.Addr[base:]
	}

	// The line table is optional; variables simply get no source position
	// without it.
	if lr, err := d.LineReader(e); err == nil && lr != nil {
		for _, f := range lr.Files() {
			if f == nil {
				u.Files = append(u.Files, "")
				continue
			}
			u.Files = append(u.Files, f.Name)
		}
	}

	u.Ranges = func(x Entry) ([][2]uint64, error) {
		n, ok := x.(*Node)
		if !ok || n.raw == nil {
			return nil, fmt.Errorf("entry 0x%x was not loaded from DWARF data", uint64(x.Offset()))
		}
		return d.Ranges(n.raw)
	}

	return u
}

// unitHeader is the extent and version of one unit in .debug_info.
type unitHeader struct {
	start, end uint64
	version    int
}

type unitHeaders []unitHeader

// parseUnitHeaders walks the unit headers of .debug_info. debug/dwarf reads
// them too but does not export the version. Walking stops at the first
// header that does not fit.
func parseUnitHeaders(info []byte, order binary.ByteOrder) unitHeaders {
	var out unitHeaders
	size := uint64(len(info))
	for off := uint64(0); off+4 <= size; {
		length := uint64(order.Uint32(info[off:]))
		hdr := uint64(4)
		switch {
		case length == 0xffffffff:
			if off+12 > size {
				return out
			}
			length = order.Uint64(info[off+4:])
			hdr = 12
		case length >= 0xfffffff0:
			return out
		}
		if length == 0 {
			off += hdr
			continue
		}
		if length < 2 || length > size-off-hdr {
			return out
		}
		end := off + hdr + length
		out = append(out, unitHeader{
			start:   off,
			end:     end,
			version: int(order.Uint16(info[off+hdr:])),
		})
		off = end
	}
	return out
}

// version returns the version of the unit containing off, or 0.
func (h unitHeaders) version(off dwarf.Offset) int {
	o := uint64(off)
	i := sort.Search(len(h), func(i int) bool { return h[i].end > o })
	if i < len(h) && h[i].start <= o {
		return h[i].version
	}
	return 0
}
