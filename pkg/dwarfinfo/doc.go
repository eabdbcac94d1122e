// Package dwarfinfo models the debug-entry tree that the type and variable
// extractors walk.
//
// The tree is built from DWARF data read with the standard debug/dwarf
// package, but the extractors only see the Entry interface and the Unit
// description, so they can be driven by synthetic trees as well:
//
//	tree := dwarfinfo.NewTree()
//	cu := tree.Add(nil, 0x0b, dwarf.TagCompileUnit)
//	tree.Add(cu, 0x2d, dwarf.TagBaseType,
//	    dwarfinfo.Const(dwarf.AttrByteSize, 4),
//	    dwarfinfo.Const(dwarf.AttrEncoding, 5))
//
// Problems found while walking the tree are not returned as errors. They are
// recorded as Diagnostics so a single malformed or unfamiliar construct never
// stops extraction of the rest of a compilation unit.
package dwarfinfo
