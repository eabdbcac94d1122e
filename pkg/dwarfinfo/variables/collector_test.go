package variables

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/location"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/typeinfo"
)

func addrExpr(v uint64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{0x03}, v)
}

func locRecord(start, end uint64, expr []byte) []byte {
	b := binary.LittleEndian.AppendUint64(nil, start)
	b = binary.LittleEndian.AppendUint64(b, end)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(expr)))
	return append(b, expr...)
}

// newUnit builds:
//
//	int counter;                     // main.c:3:5, global
//	extern int ext;                  // declaration only
//	int main(int argc) {             // frame base %rbp
//	    int x; int bad; int y; long z (location list);
//	    { int inner; }
//	    int opt;                     // optimized out
//	    inl(n) inlined at 0x1050
//	}
//	static int spec_var;             // defined through DW_AT_specification
//	void helper(void) { static int in_helper; }   // no address
func newUnit(t *testing.T) *dwarfinfo.Unit {
	t.Helper()

	loc := locRecord(0x1000, 0x1008, []byte{0x56})
	loc = append(loc, locRecord(0x1008, 0x1100, []byte{0x91, 0x60})...)
	loc = append(loc, make([]byte, 16)...)

	tree := dwarfinfo.NewTree()
	cu := tree.Add(nil, 0x0b, dwarf.TagCompileUnit,
		dwarfinfo.String(dwarf.AttrName, "main.c"),
		dwarfinfo.String(dwarf.AttrCompDir, "/src"),
	)
	tree.Add(cu, 0x10, dwarf.TagBaseType,
		dwarfinfo.Const(dwarf.AttrByteSize, 4),
		dwarfinfo.Const(dwarf.AttrEncoding, 0x05),
	)
	tree.Add(cu, 0x18, dwarf.TagBaseType,
		dwarfinfo.Const(dwarf.AttrByteSize, 8),
		dwarfinfo.Const(dwarf.AttrEncoding, 0x05),
	)
	tree.Add(cu, 0x20, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "counter"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Const(dwarf.AttrDeclFile, 1),
		dwarfinfo.Const(dwarf.AttrDeclLine, 3),
		dwarfinfo.Const(dwarf.AttrDeclColumn, 5),
		dwarfinfo.Expr(dwarf.AttrLocation, addrExpr(0x601040)),
	)
	tree.Add(cu, 0x28, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "ext"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.FlagField(dwarf.AttrDeclaration),
	)

	main := tree.Add(cu, 0x30, dwarf.TagSubprogram,
		dwarfinfo.String(dwarf.AttrName, "main"),
		dwarfinfo.Addr(dwarf.AttrLowpc, 0x1000),
		dwarfinfo.Const(dwarf.AttrHighpc, 0x100),
		dwarfinfo.Expr(dwarf.AttrFrameBase, []byte{0x56}),
	)
	tree.Add(main, 0x38, dwarf.TagFormalParameter,
		dwarfinfo.String(dwarf.AttrName, "argc"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x91, 0x6c}),
	)
	tree.Add(main, 0x40, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "x"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Const(dwarf.AttrDeclFile, 1),
		dwarfinfo.Const(dwarf.AttrDeclLine, 10),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x91, 0x70}),
	)
	tree.Add(main, 0x44, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "bad"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0xff}),
	)
	tree.Add(main, 0x46, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "y"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x91, 0x68}),
	)
	tree.Add(main, 0x47, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "z"),
		dwarfinfo.Ref(dwarf.AttrType, 0x18),
		dwarfinfo.LocListPtr(dwarf.AttrLocation, 0),
	)
	block := tree.Add(main, 0x48, dwarf.TagLexDwarfBlock,
		dwarfinfo.Addr(dwarf.AttrLowpc, 0x1010),
		dwarfinfo.Const(dwarf.AttrHighpc, 0x10),
	)
	tree.Add(block, 0x4a, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "inner"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x50}),
	)
	tree.Add(main, 0x4c, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "opt"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
	)
	inlined := tree.Add(main, 0x80, dwarf.TagInlinedSubroutine,
		dwarfinfo.Ref(dwarf.AttrAbstractOrigin, 0x70),
		dwarfinfo.Addr(dwarf.AttrLowpc, 0x1050),
		dwarfinfo.Const(dwarf.AttrHighpc, 0x8),
	)
	tree.Add(inlined, 0x82, dwarf.TagFormalParameter,
		dwarfinfo.Ref(dwarf.AttrAbstractOrigin, 0x72),
		dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x91, 0x64}),
	)

	inl := tree.Add(cu, 0x70, dwarf.TagSubprogram,
		dwarfinfo.String(dwarf.AttrName, "inl"),
		dwarfinfo.Const(dwarf.AttrInline, 3),
	)
	tree.Add(inl, 0x72, dwarf.TagFormalParameter,
		dwarfinfo.String(dwarf.AttrName, "n"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Const(dwarf.AttrDeclFile, 1),
		dwarfinfo.Const(dwarf.AttrDeclLine, 20),
	)

	tree.Add(cu, 0x90, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "spec_var"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.FlagField(dwarf.AttrDeclaration),
	)
	tree.Add(cu, 0x94, dwarf.TagVariable,
		dwarfinfo.Ref(dwarf.AttrSpecification, 0x90),
		dwarfinfo.Expr(dwarf.AttrLocation, addrExpr(0x601050)),
	)

	helper := tree.Add(cu, 0xa0, dwarf.TagSubprogram,
		dwarfinfo.String(dwarf.AttrName, "helper"),
	)
	tree.Add(helper, 0xa4, dwarf.TagVariable,
		dwarfinfo.String(dwarf.AttrName, "in_helper"),
		dwarfinfo.Ref(dwarf.AttrType, 0x10),
		dwarfinfo.Expr(dwarf.AttrLocation, addrExpr(0x601060)),
	)

	return &dwarfinfo.Unit{
		Root:        cu,
		Name:        "main.c",
		CompDir:     "/src",
		AddressSize: 8,
		Files:       []string{"", "main.c"},
		Loc:         loc,
	}
}

func names(vars []Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name)
	}
	return out
}

func find(t *testing.T, vars []Variable, name string) Variable {
	t.Helper()
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	require.Failf(t, "variable not collected", "%q", name)
	return Variable{}
}

func collect(t *testing.T, opts Options) (Result, *dwarfinfo.Diagnostics, *Collector) {
	t.Helper()
	u := newUnit(t)
	diag := dwarfinfo.NewDiagnostics(zerolog.Nop(), u.Name)
	c := NewCollector(u, arch.AMD64, opts, diag, zerolog.Nop())
	return c.Collect(), diag, c
}

func TestCollect_Classification(t *testing.T) {
	res, _, _ := collect(t, Options{})

	assert.Equal(t, []string{"argc", "x", "bad", "y", "z", "inner", "n"}, names(res.Locals))
	assert.Equal(t, []string{"counter", "spec_var", "in_helper"}, names(res.Globals))
	assert.Equal(t, 10, res.Len())
}

func TestCollect_Variables(t *testing.T) {
	res, _, _ := collect(t, Options{})

	counter := find(t, res.Globals, "counter")
	assert.Equal(t, "s32", counter.Type.Name)
	assert.Equal(t, "(0x00601040)", counter.Location.Expr.Text)
	assert.Nil(t, counter.Function)
	assert.Equal(t, "/src/main.c:3:5", counter.Source.String())
	assert.False(t, counter.IsParameter)
	assert.Equal(t, dwarf.Offset(0x20), counter.Offset)

	argc := find(t, res.Locals, "argc")
	assert.True(t, argc.IsParameter)
	assert.Equal(t, "-20(%rbp)", argc.Location.Expr.Text, "frame base register from DW_AT_frame_base")
	require.NotNil(t, argc.Function)
	assert.Equal(t, "main", argc.Function.Name)
	assert.Equal(t, uint64(0x1000), argc.Function.Address)

	x := find(t, res.Locals, "x")
	assert.Equal(t, "-16(%rbp)", x.Location.Expr.Text)
	assert.Equal(t, "/src/main.c:10", x.Source.String())

	y := find(t, res.Locals, "y")
	assert.True(t, y.Source.IsZero())
	assert.Empty(t, y.Source.String())

	z := find(t, res.Locals, "z")
	assert.Equal(t, "s64", z.Type.Name)
	require.True(t, z.Location.IsList())
	require.Len(t, z.Location.Ranges, 2)
	assert.Equal(t, "%rbp", z.Location.Ranges[0].Expr.Text)
	assert.Equal(t, "-32(%rbp)", z.Location.Ranges[1].Expr.Text)

	spec := find(t, res.Globals, "spec_var")
	assert.Equal(t, "s32", spec.Type.Name)

	helper := find(t, res.Globals, "in_helper")
	require.NotNil(t, helper.Function, "function context is kept even without an address")
	assert.Equal(t, "helper", helper.Function.Name)
	assert.False(t, helper.IsLocal())
}

func TestCollect_InlinedOrigin(t *testing.T) {
	res, _, _ := collect(t, Options{})

	n := find(t, res.Locals, "n")
	assert.True(t, n.IsParameter)
	assert.Equal(t, "s32", n.Type.Name)
	assert.Equal(t, "/src/main.c:20", n.Source.String())
	assert.Equal(t, "-28(%rbp)", n.Location.Expr.Text, "inlined code uses the caller's frame")
	require.NotNil(t, n.Function)
	assert.Equal(t, "inl", n.Function.Name)
	assert.Equal(t, uint64(0x1050), n.Function.Address)
}

func TestCollect_UnrecognizedExpressionIsContained(t *testing.T) {
	res, diag, _ := collect(t, Options{})

	bad := find(t, res.Locals, "bad")
	assert.Equal(t, location.StatusUnrecognized, bad.Location.Expr.Status)
	assert.Equal(t, location.UnrecognizedText, bad.Location.Expr.Text)

	// Neighbours are unaffected.
	assert.Equal(t, "-16(%rbp)", find(t, res.Locals, "x").Location.Expr.Text)
	assert.Equal(t, "-24(%rbp)", find(t, res.Locals, "y").Location.Expr.Text)

	require.Equal(t, 1, diag.Len())
	assert.Equal(t, dwarfinfo.KindUnsupported, diag.Items()[0].Kind)
	assert.Equal(t, dwarf.Offset(0x44), diag.Items()[0].Offset)
}

func TestCollect_PCFilter(t *testing.T) {
	res, _, _ := collect(t, Options{PC: 0x1005, FilterPC: true})

	assert.Equal(t, []string{"argc", "x", "bad", "y", "z"}, names(res.Locals))
	assert.Equal(t, []string{"counter", "spec_var", "in_helper"}, names(res.Globals))

	z := find(t, res.Locals, "z")
	require.Len(t, z.Location.Ranges, 1)
	assert.Equal(t, uint64(0x1000), z.Location.Ranges[0].Start)

	res, _, _ = collect(t, Options{PC: 0x1012, FilterPC: true})
	assert.Equal(t, []string{"argc", "x", "bad", "y", "z", "inner"}, names(res.Locals))

	res, _, _ = collect(t, Options{PC: 0x5000, FilterPC: true})
	assert.Empty(t, res.Locals)
	assert.Len(t, res.Globals, 3)
}

func TestCollect_Types(t *testing.T) {
	_, _, c := collect(t, Options{})

	cache := c.Types()
	int32T, ok := cache.Lookup(0x10)
	require.True(t, ok)
	assert.Equal(t, "s32", int32T.Name)
	assert.Empty(t, cache.Structs())
	assert.Equal(t, typeinfo.KindScalar, int32T.Kind)
}

func TestFrameBase(t *testing.T) {
	tests := []struct {
		name string
		expr []byte
		want string
	}{
		{"register", []byte{0x56}, "-16(%rbp)"},
		{"base register", []byte{0x77, 0x08}, "-16(%rsp)"},
		{"register x", []byte{0x90, 0x06}, "-16(%rbp)"},
		{"call frame cfa", []byte{0x9c}, "-16(%rsp)"},
		{"absent", nil, "-16(%rsp)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := dwarfinfo.NewTree()
			cu := tree.Add(nil, 0x0b, dwarf.TagCompileUnit)
			fields := []dwarf.Field{dwarfinfo.Addr(dwarf.AttrLowpc, 0x1000)}
			if tt.expr != nil {
				fields = append(fields, dwarfinfo.Expr(dwarf.AttrFrameBase, tt.expr))
			}
			fn := tree.Add(cu, 0x10, dwarf.TagSubprogram, fields...)
			tree.Add(fn, 0x20, dwarf.TagVariable, dwarfinfo.Expr(dwarf.AttrLocation, []byte{0x91, 0x70}))

			u := &dwarfinfo.Unit{Root: cu}
			res := NewCollector(u, arch.AMD64, Options{}, nil, zerolog.Nop()).Collect()
			require.Len(t, res.Locals, 1)
			assert.Equal(t, tt.want, res.Locals[0].Location.Expr.Text)
		})
	}
}

func TestCollectScope(t *testing.T) {
	u := newUnit(t)
	c := NewCollector(u, arch.AMD64, Options{}, nil, zerolog.Nop())

	main, ok := u.Root.(*dwarfinfo.Node).Children()[4].(*dwarfinfo.Node)
	require.True(t, ok)
	require.Equal(t, dwarf.Offset(0x30), main.Offset())

	fn := &Function{Name: "main", Address: 0x1000, FrameRegister: 6}
	res := c.CollectScope(main, fn)
	assert.Equal(t, []string{"argc", "x", "bad", "y", "z", "inner", "n"}, names(res.Locals))
	assert.Empty(t, res.Globals)

	assert.Zero(t, c.CollectScope(nil, nil).Len())
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "", Source{Line: 4}.String())
	assert.Equal(t, "/a.c:4", Source{File: "/a.c", Line: 4}.String())
	assert.Equal(t, "/a.c:4:2", Source{File: "/a.c", Line: 4, Column: 2}.String())
}
