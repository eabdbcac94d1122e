// Package variables walks the scopes of a compilation unit and collects every
// variable, parameter and constant that has storage, together with its
// resolved type, location and declaration position.
package variables

import (
	"debug/dwarf"
	"fmt"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/location"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/typeinfo"
)

// Function is the enclosing function of a local variable.
type Function struct {
	Name    string
	Address uint64
	// FrameRegister is the DWARF register DW_OP_fbreg resolves against.
	FrameRegister uint64
}

// Source is a declaration position. Column 0 means not recorded.
type Source struct {
	File   string
	Line   int64
	Column int64
}

// IsZero reports whether no position could be resolved.
func (s Source) IsZero() bool {
	return s.File == ""
}

// String renders "path:line[:column]", or "" for an unresolved position.
func (s Source) String() string {
	if s.IsZero() {
		return ""
	}
	if s.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Variable is one collected variable, parameter or constant.
type Variable struct {
	Name     string
	Type     *typeinfo.Type
	Location location.Location
	// Function is nil for file-scope variables.
	Function    *Function
	Source      Source
	IsParameter bool
	// Offset is the entry the variable was collected from.
	Offset dwarf.Offset
}

// IsLocal reports whether the variable lives inside a function with a known
// address.
func (v Variable) IsLocal() bool {
	return v.Function != nil && v.Function.Address != 0
}

// Result holds the variables of one traversal in declaration order.
type Result struct {
	Locals  []Variable
	Globals []Variable
}

// Len returns the total number of variables.
func (r Result) Len() int {
	return len(r.Locals) + len(r.Globals)
}

func (r *Result) add(v Variable) {
	if v.IsLocal() {
		r.Locals = append(r.Locals, v)
		return
	}
	r.Globals = append(r.Globals, v)
}
