package location

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
)

func newDiag() *dwarfinfo.Diagnostics {
	return dwarfinfo.NewDiagnostics(zerolog.Nop(), "test.c")
}

func addr64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestInterpret_FrameRelative(t *testing.T) {
	diag := newDiag()
	in := NewInterpreter(arch.AMD64, 8, binary.LittleEndian, diag)

	// DW_OP_fbreg -16
	expr := []byte{opFbreg, 0x70}

	got := in.Interpret(expr, 0x42)
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, "-16(%rsp)", got.Text)

	got = in.WithFrameRegister(6).Interpret(expr, 0x42)
	assert.Equal(t, "-16(%rbp)", got.String())
	assert.Equal(t, KindMemory, got.Kind)
	assert.Equal(t, "rbp", got.Register)
	assert.Equal(t, int64(-16), got.Offset)

	assert.Equal(t, uint64(7), in.FrameRegister(), "copy must not change the original")
	assert.Zero(t, diag.Len())
}

func TestInterpret_Rendering(t *testing.T) {
	tests := []struct {
		name string
		expr []byte
		want string
		kind Kind
	}{
		{"register", []byte{opReg0}, "%rax", KindRegister},
		{"register x", []byte{opRegx, 0x11}, "%xmm0", KindRegister},
		{"base register", []byte{opBreg0 + 6, 0x08}, "8(%rbp)", KindMemory},
		{"base register x", []byte{opBregx, 0x07, 0x10}, "16(%rsp)", KindMemory},
		{"address", join([]byte{opAddr}, addr64(0x601040)), "(0x00601040)", KindAddress},
		{"deref", []byte{opFbreg, 0x68, opDeref}, "-24(%rsp) [deref]", KindMemory},
		{"plus uconst", []byte{opFbreg, 0x00, opPlusUconst, 0x10}, "0(%rsp) + 16", KindMemory},
		{
			"pieces",
			[]byte{opReg0, opPiece, 0x08, opReg0 + 1, opPiece, 0x08},
			"%rax [8-byte chunk] %rdx [8-byte chunk]",
			KindComposite,
		},
		{"stack value", []byte{opLit0 + 1, opStackValue}, "1 [known constant value]", KindConstant},
		{"const1s", []byte{opConst1s, 0xff}, "-1", KindConstant},
		{"const2u", []byte{opConst2u, 0x34, 0x12}, "4660", KindConstant},
		{"const4s", []byte{opConst4s, 0xfe, 0xff, 0xff, 0xff}, "-2", KindConstant},
		{"constu", []byte{opConstu, 0xe5, 0x8e, 0x26}, "624485", KindConstant},
		{"consts", []byte{opConsts, 0x7f}, "-1", KindConstant},
		{"and", []byte{opLit0, opLit0 + 1, opAnd}, "0 1 &", KindConstant},
		{"minus plus", []byte{opLit0 + 3, opLit0 + 2, opMinus, opLit0 + 1, opPlus}, "3 2 - 1 +", KindConstant},
		{"gnu tls", join([]byte{opConst8u}, addr64(16), []byte{opGNUPushTLS}), "16 [tls index]", KindTLS},
		{"form tls", []byte{opConstu, 0x20, opFormTLS}, "32 [tls index]", KindTLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := newDiag()
			got := NewInterpreter(arch.AMD64, 8, binary.LittleEndian, diag).Interpret(tt.expr, 0x10)

			assert.Equal(t, StatusOK, got.Status)
			assert.True(t, got.OK())
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Zero(t, diag.Len())
		})
	}
}

func TestInterpret_AddressWidth(t *testing.T) {
	in := NewInterpreter(arch.I386, 4, binary.LittleEndian, nil)
	got := in.Interpret([]byte{opAddr, 0x40, 0x10, 0x60, 0x00}, 0x10)
	assert.Equal(t, "(0x601040)", got.Text)
	assert.Equal(t, uint64(0x601040), got.Address)

	in = NewInterpreter(arch.AMD64, 0, nil, nil)
	assert.Equal(t, 8, in.AddressSize(), "zero falls back to the pointer width")
}

func TestInterpret_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		expr     []byte
		status   Status
		text     string
		diagKind dwarfinfo.Kind
	}{
		{"empty", nil, StatusEmpty, "", 0},
		{"gnu entry value", []byte{opGNUEntryVal, 0x01, opReg0 + 5, opStackValue}, StatusEntryValue, EntryValueText, 0},
		{"entry value", []byte{opFbreg, 0x70, opEntryValue, 0x01, opReg0 + 5}, StatusEntryValue, EntryValueText, 0},
		{"unknown opcode", []byte{opReg0, 0xff}, StatusUnrecognized, UnrecognizedText, dwarfinfo.KindUnsupported},
		{"unknown opcode before stack value", []byte{0xff, 0x01, opStackValue}, StatusSynthetic, SyntheticText, dwarfinfo.KindUnsupported},
		{"call frame cfa", []byte{0x9c}, StatusUnrecognized, UnrecognizedText, dwarfinfo.KindUnsupported},
		{"truncated operand", []byte{opFbreg}, StatusUnrecognized, UnrecognizedText, dwarfinfo.KindMalformed},
		{"truncated address", []byte{opAddr, 0x01, 0x02}, StatusUnrecognized, UnrecognizedText, dwarfinfo.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := newDiag()
			got := NewInterpreter(arch.AMD64, 8, binary.LittleEndian, diag).Interpret(tt.expr, 0x77)

			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.text, got.Text)
			assert.False(t, got.OK())

			if tt.diagKind == 0 {
				assert.Zero(t, diag.Len())
				return
			}
			require.Equal(t, 1, diag.Len())
			assert.Equal(t, tt.diagKind, diag.Items()[0].Kind)
			assert.Equal(t, dwarf.Offset(0x77), diag.Items()[0].Offset)
		})
	}
}

func TestInterpret_UnknownArchitecture(t *testing.T) {
	diag := newDiag()
	in := NewInterpreter(arch.Unknown, 8, binary.LittleEndian, diag)

	got := in.Interpret([]byte{opBreg0 + 6, 0x70}, 0x10)
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, "-16(%reg6)", got.Text)
	require.Equal(t, 1, diag.Len())
	assert.Equal(t, dwarfinfo.KindAmbiguousArch, diag.Items()[0].Kind)

	got = in.Interpret(join([]byte{opAddr}, addr64(0x1000)), 0x11)
	assert.Equal(t, "(0x00001000)", got.Text)
	assert.Equal(t, 1, diag.Len(), "addresses need no register names")
}

func TestInterpret_AddressDigits(t *testing.T) {
	tests := []struct {
		name     string
		addrSize int
		expr     []byte
		want     string
	}{
		{"8-byte small", 8, join([]byte{opAddr}, addr64(0x4018)), "(0x00004018)"},
		{"8-byte wide", 8, join([]byte{opAddr}, addr64(0x7fff12345678)), "(0x7fff12345678)"},
		{"4-byte", 4, join([]byte{opAddr}, binary.LittleEndian.AppendUint32(nil, 0x804a01c)), "(0x804a01c)"},
		{"4-byte small", 4, join([]byte{opAddr}, binary.LittleEndian.AppendUint32(nil, 0x10)), "(0x0010)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInterpreter(arch.I386, tt.addrSize, binary.LittleEndian, newDiag())
			assert.Equal(t, tt.want, in.Interpret(tt.expr, 0x10).Text)
		})
	}
}

func TestInterpret_ContinuesAfterUnsupported(t *testing.T) {
	diag := newDiag()
	in := NewInterpreter(arch.AMD64, 8, binary.LittleEndian, diag)

	bad := in.Interpret([]byte{0xff}, 0x20)
	good := in.Interpret([]byte{opFbreg, 0x70}, 0x30)

	assert.Equal(t, StatusUnrecognized, bad.Status)
	assert.Equal(t, "-16(%rsp)", good.Text)
	assert.Equal(t, 1, diag.Len())
}

func TestLocation_At(t *testing.T) {
	single := Location{Expr: Expr{Status: StatusOK, Text: "%rax"}}
	e, ok := single.At(0x1234)
	assert.True(t, ok)
	assert.Equal(t, "%rax", e.Text)
	assert.False(t, single.IsList())

	list := Location{Ranges: []Range{
		{Start: 0x10, End: 0x20, Expr: Expr{Text: "a"}},
		{Start: 0x20, End: 0x30, Expr: Expr{Text: "b"}},
	}}
	e, ok = list.At(0x20)
	assert.True(t, ok)
	assert.Equal(t, "b", e.Text)

	_, ok = list.At(0x30)
	assert.False(t, ok, "ranges are half-open")

	narrowed := list.Narrow(0x1f)
	require.Len(t, narrowed.Ranges, 1)
	assert.Equal(t, "a", narrowed.Ranges[0].Expr.Text)

	empty := list.Narrow(0x40)
	assert.True(t, empty.IsList())
	assert.Empty(t, empty.Ranges)
}
