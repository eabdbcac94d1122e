// Package typeinfo resolves debug type entries into canonical, deduplicated
// Type values.
//
// Resolution is memoized by entry offset within a Cache, so every reference
// to the same struct entry shares one *Type. Struct types are registered in
// the cache before their members are resolved, which lets self-referential
// types (a list node pointing to itself) resolve to the in-progress value
// instead of recursing forever.
package typeinfo

import (
	"fmt"
	"strings"
)

// UnknownSize marks a size that cannot be determined: incomplete or flexible
// arrays, function types, declarations without a layout.
const UnknownSize = ^uint64(0)

// UnknownOffset marks a struct field whose offset cannot be determined. It
// must never be read as offset zero.
const UnknownOffset = ^uint64(0)

// Kind is the shape of a Type.
type Kind int

const (
	KindUnknown Kind = iota
	KindScalar
	KindPointer
	KindArray
	KindStruct
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Type is a canonical type description. Values are owned by the Cache that
// produced them; treat them as read-only.
type Type struct {
	Kind Kind
	// Name is set for scalars and structs. Pointer, array and function names
	// are derived from their components by String.
	Name string
	Size uint64

	// Elem is the pointee (pointer) or element type (array).
	Elem *Type
	// Dims holds array extents, outer to inner. Zero is a flexible dimension.
	Dims []uint64
	// Fields lists struct members and base classes in declaration order.
	Fields []Field

	// Return, Params and Variadic describe function types.
	Return   *Type
	Params   []*Type
	Variadic bool

	// member marks a C++ pointer to member.
	member bool
}

// Field is one struct member.
type Field struct {
	Name   string
	Offset uint64
	Type   *Type
}

// HasSize reports whether t has a known size.
func (t *Type) HasSize() bool {
	return t != nil && t.Size != UnknownSize
}

// IsVoid reports whether t is the void type.
func (t *Type) IsVoid() bool {
	return t != nil && t.Kind == KindScalar && t.Name == voidName
}

// String returns the canonical type name. Composite names are built on
// demand, so a pointer that was still resolving when an array or function
// referenced it is named the same as one resolved up front.
func (t *Type) String() string {
	var b strings.Builder
	t.writeName(&b, 0)
	return b.String()
}

// maxNameDepth bounds composite names. Cycles always pass through a struct,
// which is named by offset, so only malformed input gets this deep.
const maxNameDepth = 64

func (t *Type) writeName(b *strings.Builder, depth int) {
	switch {
	case t == nil:
		b.WriteString("<nil>")
		return
	case depth > maxNameDepth:
		b.WriteString("<unknown>")
		return
	}

	switch t.Kind {
	case KindPointer:
		if t.Elem != nil {
			t.Elem.writeName(b, depth+1)
			if t.member {
				b.WriteString(" T::*")
			} else {
				b.WriteByte('*')
			}
			return
		}
	case KindArray:
		if t.Elem != nil {
			t.Elem.writeName(b, depth+1)
			for _, d := range t.Dims {
				fmt.Fprintf(b, "[%d]", d)
			}
			return
		}
	case KindFunction:
		if t.Return != nil {
			t.writeFunction(b, depth)
			return
		}
	}

	if t.Name == "" {
		b.WriteString("<unknown>")
		return
	}
	b.WriteString(t.Name)
}

func (t *Type) writeFunction(b *strings.Builder, depth int) {
	t.Return.writeName(b, depth+1)
	b.WriteByte('(')
	for i, p := range t.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		p.writeName(b, depth+1)
	}
	if t.Variadic {
		if len(t.Params) > 0 {
			b.WriteByte(',')
		}
		b.WriteString("...")
	}
	b.WriteByte(')')
}

const voidName = "void"

// Unknown is the sentinel for absent or unresolvable types.
func Unknown() *Type {
	return &Type{Kind: KindUnknown, Size: UnknownSize}
}

// Void is the type of nothing: missing return types, untyped pointers,
// typedefs without a target.
func Void() *Type {
	return &Type{Kind: KindScalar, Name: voidName, Size: UnknownSize}
}

// structName derives a struct's canonical name from its entry offset, since
// source names may be absent or repeated.
func structName(off uint64) string {
	return fmt.Sprintf("struct%08x", off)
}
