package dwarfinfo

import (
	"debug/dwarf"
	"encoding/binary"
	"path/filepath"
)

// DefaultAddressSize is used when a unit does not state its address size.
const DefaultAddressSize = 8

// RangesFunc returns the PC ranges covered by an entry.
type RangesFunc func(e Entry) ([][2]uint64, error)

// Unit is one compilation unit: its root entry plus the unit-level tables the
// extractors need.
type Unit struct {
	// Root is the DW_TAG_compile_unit (or partial/skeleton unit) entry.
	Root Entry

	Name    string
	CompDir string

	// Version is the DWARF version from the unit header, 0 when unknown.
	Version int

	AddressSize int
	ByteOrder   binary.ByteOrder

	// BaseAddress is the unit's DW_AT_low_pc, the default base for
	// location-list entries.
	BaseAddress uint64

	// Files is the line-table file name list, indexed by DW_AT_decl_file.
	Files []string

	// Loc is the .debug_loc section (DWARF 4 and earlier location lists).
	Loc []byte
	// LocLists is the .debug_loclists section (DWARF 5) and LocListsBase the
	// unit's DW_AT_loclists_base into it.
	LocLists     []byte
	LocListsBase uint64

	// AddrTable is .debug_addr starting at the unit's DW_AT_addr_base.
	AddrTable []byte

	// Ranges resolves DW_AT_ranges. May be nil.
	Ranges RangesFunc
}

// Offset returns the offset of the unit's root entry.
func (u *Unit) Offset() dwarf.Offset {
	if u.Root == nil {
		return 0
	}
	return u.Root.Offset()
}

// FilePath translates a DW_AT_decl_file index into a path. Relative names are
// joined with the compilation directory. It returns "" when the index cannot
// be resolved.
func (u *Unit) FilePath(index int64) string {
	if index < 0 || index >= int64(len(u.Files)) {
		return ""
	}
	name := u.Files[index]
	if name == "" {
		return ""
	}
	if !filepath.IsAbs(name) && u.CompDir != "" {
		name = filepath.Join(u.CompDir, name)
	}
	return name
}

// UsesLocLists reports whether section-offset location lists point into
// .debug_loclists rather than .debug_loc. DWARF 5 moved the lists but kept
// DW_FORM_sec_offset, so the unit version decides. Without a version the
// sections that are present decide.
func (u *Unit) UsesLocLists() bool {
	if u.Version != 0 {
		return u.Version >= 5
	}
	return len(u.Loc) == 0 && len(u.LocLists) > 0
}

// AddrSize returns the unit's address size, defaulting to 8 bytes.
func (u *Unit) AddrSize() int {
	if u.AddressSize <= 0 {
		return DefaultAddressSize
	}
	return u.AddressSize
}

// Order returns the unit's byte order, defaulting to little endian.
func (u *Unit) Order() binary.ByteOrder {
	if u.ByteOrder == nil {
		return binary.LittleEndian
	}
	return u.ByteOrder
}

// EntryRanges returns the PC ranges of e from low/high PC, falling back to the
// unit's ranges resolver for DW_AT_ranges. ok is false when the entry carries
// no range information at all.
func (u *Unit) EntryRanges(e Entry) (ranges [][2]uint64, ok bool) {
	if low, high, found := PCRange(e); found {
		return [][2]uint64{{low, high}}, true
	}
	if e.Field(dwarf.AttrRanges) == nil || u.Ranges == nil {
		return nil, false
	}
	r, err := u.Ranges(e)
	if err != nil {
		return nil, false
	}
	return r, true
}
