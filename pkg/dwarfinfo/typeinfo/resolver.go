package typeinfo

import (
	"debug/dwarf"
	"fmt"
	"math"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
)

const opPlusUconst = 0x23

// Resolver turns type entries into canonical Types. One Resolver serves one
// compilation unit and is not safe for concurrent use.
type Resolver struct {
	arch  arch.Arch
	cache *Cache
	diag  *dwarfinfo.Diagnostics

	// active maps the entries currently being resolved to the number of
	// placeholders (structs, pointers) open when they were entered. Meeting
	// an entry again with no new placeholder in between is a cycle that
	// nothing can break.
	active   map[dwarf.Offset]int
	barriers int
}

// NewResolver creates a resolver with an empty cache. Pointer widths come
// from a; problems are reported to diag, which may be nil.
func NewResolver(a arch.Arch, diag *dwarfinfo.Diagnostics) *Resolver {
	return &Resolver{
		arch:   a,
		cache:  NewCache(),
		diag:   diag,
		active: make(map[dwarf.Offset]int),
	}
}

// Cache returns the resolver's type cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the canonical Type for a type entry. A nil entry resolves
// to the unknown sentinel.
func (r *Resolver) Resolve(e dwarfinfo.Entry) *Type {
	if e == nil {
		return Unknown()
	}
	off := e.Offset()
	if t, ok := r.cache.Lookup(off); ok {
		return t
	}

	// These store their own placeholder before descending.
	switch e.Tag() {
	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType:
		return r.resolveStruct(e)
	case dwarf.TagPointerType, dwarf.TagReferenceType, dwarf.TagRvalueReferenceType:
		return r.resolvePointer(e)
	case dwarf.TagPtrToMemberType:
		return r.memberPointer(e)
	}

	prev, nested := r.active[off]
	if nested && prev == r.barriers {
		r.diag.Add(dwarfinfo.KindMalformed, off, "type reference cycle through %s", e.Tag())
		return Unknown()
	}
	r.active[off] = r.barriers
	t := r.resolveTransparent(e)
	if nested {
		r.active[off] = prev
	} else {
		delete(r.active, off)
	}

	r.cache.store(off, t)
	return t
}

// descend resolves fn with a placeholder open, so entries met again inside
// it are not mistaken for unbreakable cycles.
func (r *Resolver) descend(fn func()) {
	r.barriers++
	fn()
	r.barriers--
}

// ResolveAttr resolves the DW_AT_type of e. A missing attribute yields the
// unknown sentinel without a diagnostic.
func (r *Resolver) ResolveAttr(e dwarfinfo.Entry) *Type {
	if e == nil {
		return Unknown()
	}
	if t := r.typeAttr(e); t != nil {
		return t
	}
	return Unknown()
}

// typeAttr resolves DW_AT_type, returning nil when e has none.
func (r *Resolver) typeAttr(e dwarfinfo.Entry) *Type {
	f := e.Field(dwarf.AttrType)
	if f == nil {
		return nil
	}
	target := e.Ref(dwarf.AttrType)
	if target == nil {
		if f.Class == dwarf.ClassReferenceSig {
			r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "type unit signature %v", f.Val)
		} else {
			r.diag.Add(dwarfinfo.KindMalformed, e.Offset(), "unresolvable type reference %v", f.Val)
		}
		return Unknown()
	}
	return r.Resolve(target)
}

func (r *Resolver) resolveTransparent(e dwarfinfo.Entry) *Type {
	switch e.Tag() {
	case dwarf.TagBaseType:
		return r.baseType(e)
	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType, dwarf.TagAtomicType,
		dwarf.TagTypedef:
		if t := r.typeAttr(e); t != nil {
			return t
		}
		return Void()
	case dwarf.TagEnumerationType:
		return r.enumType(e)
	case dwarf.TagArrayType:
		return r.arrayType(e)
	case dwarf.TagSubroutineType:
		return r.functionType(e)
	case dwarf.TagUnspecifiedType:
		return Void()
	}

	r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "unsupported type tag %s", e.Tag())
	return Unknown()
}

func (r *Resolver) resolvePointer(e dwarfinfo.Entry) *Type {
	t := &Type{Kind: KindPointer, Size: r.pointerSize()}
	r.cache.store(e.Offset(), t)

	r.descend(func() { t.Elem = r.pointee(e) })
	return t
}

func (r *Resolver) pointerSize() uint64 {
	return uint64(r.arch.PointerSize) // #nosec G115 -- always positive
}

func (r *Resolver) pointee(e dwarfinfo.Entry) *Type {
	t := r.typeAttr(e)
	if t == nil || t.Kind == KindUnknown {
		return Void()
	}
	return t
}

// baseType names a scalar by encoding and bit width. A scalar without a
// byte size keeps the bare encoding prefix and an unknown size.
func (r *Resolver) baseType(e dwarfinfo.Entry) *Type {
	enc, ok := dwarfinfo.Int(e, dwarf.AttrEncoding)
	if !ok {
		enc = ateUnsigned
	}
	prefix, ok := EncodingPrefix(enc)
	if !ok {
		r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "base type encoding 0x%x", enc)
		return Unknown()
	}

	size, ok := dwarfinfo.Uint(e, dwarf.AttrByteSize)
	if !ok {
		r.diag.Add(dwarfinfo.KindMalformed, e.Offset(), "base type %q has no byte size", dwarfinfo.Name(e))
		return &Type{Kind: KindScalar, Name: prefix, Size: UnknownSize}
	}

	return &Type{Kind: KindScalar, Name: fmt.Sprintf("%s%d", prefix, 8*size), Size: size}
}

// enumType loses enumerator names and keeps only the storage width.
func (r *Resolver) enumType(e dwarfinfo.Entry) *Type {
	size, ok := dwarfinfo.Uint(e, dwarf.AttrByteSize)
	if !ok {
		if under := r.typeAttr(e); under.HasSize() {
			size, ok = under.Size, true
		}
	}
	if !ok {
		if !dwarfinfo.Flag(e, dwarf.AttrDeclaration) {
			r.diag.Add(dwarfinfo.KindMalformed, e.Offset(), "enumeration %q has no size", dwarfinfo.Name(e))
		}
		return Unknown()
	}
	return &Type{Kind: KindScalar, Name: fmt.Sprintf("u%d", 8*size), Size: size}
}

func (r *Resolver) resolveStruct(e dwarfinfo.Entry) *Type {
	size, ok := dwarfinfo.Uint(e, dwarf.AttrByteSize)
	if !ok {
		size = UnknownSize
	}
	t := &Type{
		Kind: KindStruct,
		Name: structName(uint64(e.Offset())),
		Size: size,
	}
	r.cache.store(e.Offset(), t)

	r.descend(func() {
		for _, c := range e.Children() {
			switch c.Tag() {
			case dwarf.TagMember:
				// Static data members have no storage in the object layout.
				if dwarfinfo.Flag(c, dwarf.AttrDeclaration) {
					continue
				}
				t.Fields = append(t.Fields, r.field(c))
			case dwarf.TagInheritance:
				t.Fields = append(t.Fields, r.field(c))
			case dwarf.TagVariantPart:
				r.diag.Add(dwarfinfo.KindUnsupported, c.Offset(), "variant part in %s", t.Name)
			}
		}
	})
	return t
}

func (r *Resolver) field(e dwarfinfo.Entry) Field {
	return Field{
		Name:   dwarfinfo.Name(e),
		Offset: r.memberOffset(e),
		Type:   r.ResolveAttr(e),
	}
}

func (r *Resolver) memberOffset(e dwarfinfo.Entry) uint64 {
	if bits, ok := dwarfinfo.Uint(e, dwarf.AttrDataBitOffset); ok {
		return bits / 8
	}

	f := e.Field(dwarf.AttrDataMemberLoc)
	if f == nil {
		return UnknownOffset
	}
	switch v := f.Val.(type) {
	case int64:
		return uint64(v) // #nosec G115
	case uint64:
		return v
	case []byte:
		// Older producers wrap the offset in DW_OP_plus_uconst.
		if len(v) > 1 && v[0] == opPlusUconst {
			if n, size := dwarfinfo.ULEB128(v[1:]); size > 0 {
				return n
			}
		}
		r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "member location expression % x", v)
		return UnknownOffset
	}
	r.diag.Add(dwarfinfo.KindMalformed, e.Offset(), "member location of class %s", f.Class)
	return UnknownOffset
}

func (r *Resolver) arrayType(e dwarfinfo.Entry) *Type {
	elem := r.ResolveAttr(e)

	var dims []uint64
	for _, c := range dwarfinfo.Children(e, dwarf.TagSubrangeType) {
		dims = append(dims, r.extent(c))
	}
	if len(dims) == 0 {
		dims = []uint64{0}
	}

	size := elem.Size
	for _, d := range dims {
		if d == 0 || size == UnknownSize {
			size = UnknownSize
			continue
		}
		size *= d
	}

	return &Type{Kind: KindArray, Size: size, Elem: elem, Dims: dims}
}

// extent computes one array dimension. Zero means flexible or unbounded.
func (r *Resolver) extent(e dwarfinfo.Entry) uint64 {
	if f := e.Field(dwarf.AttrCount); f != nil {
		if n, ok := dwarfinfo.Int(e, dwarf.AttrCount); ok && n >= 0 {
			return uint64(n) // #nosec G115
		}
		r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "non-constant array count")
		return 0
	}

	f := e.Field(dwarf.AttrUpperBound)
	if f == nil {
		return 0
	}
	upper, ok := dwarfinfo.Int(e, dwarf.AttrUpperBound)
	if !ok {
		r.diag.Add(dwarfinfo.KindUnsupported, e.Offset(), "non-constant array bound")
		return 0
	}
	lower, _ := dwarfinfo.Int(e, dwarf.AttrLowerBound)

	// GCC encodes zero-length arrays as an upper bound of -1, sometimes
	// through an unsigned 4-byte form.
	if upper < lower || upper == math.MaxUint32 {
		return 0
	}
	return uint64(upper-lower) + 1 // #nosec G115
}

func (r *Resolver) functionType(e dwarfinfo.Entry) *Type {
	ret := r.typeAttr(e)
	if ret == nil {
		ret = Void()
	}

	t := &Type{Kind: KindFunction, Size: UnknownSize, Return: ret}
	for _, c := range e.Children() {
		switch c.Tag() {
		case dwarf.TagFormalParameter:
			t.Params = append(t.Params, r.ResolveAttr(c))
		case dwarf.TagUnspecifiedParameters:
			t.Variadic = true
		}
	}
	return t
}

// memberPointer approximates C++ pointers to members with the Itanium ABI
// layout: one pointer for data members, two for member functions.
func (r *Resolver) memberPointer(e dwarfinfo.Entry) *Type {
	t := &Type{Kind: KindPointer, Size: r.pointerSize(), member: true}
	r.cache.store(e.Offset(), t)

	r.descend(func() { t.Elem = r.pointee(e) })
	if t.Elem.Kind == KindFunction {
		t.Size *= 2
	}
	return t
}
