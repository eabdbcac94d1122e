package dwarfinfo

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/dwarf-type-reader/internal/testutil"
)

func TestUnit_FilePath(t *testing.T) {
	u := &Unit{
		CompDir: "/src/project",
		Files:   []string{"", "main.c", "/usr/include/stdio.h", ""},
	}

	assert.Equal(t, "/src/project/main.c", u.FilePath(1))
	assert.Equal(t, "/usr/include/stdio.h", u.FilePath(2))
	assert.Empty(t, u.FilePath(0))
	assert.Empty(t, u.FilePath(3))
	assert.Empty(t, u.FilePath(4))
	assert.Empty(t, u.FilePath(-1))

	u.CompDir = ""
	assert.Equal(t, "main.c", u.FilePath(1))
}

func TestUnit_Defaults(t *testing.T) {
	u := &Unit{}
	assert.Equal(t, DefaultAddressSize, u.AddrSize())
	assert.Equal(t, binary.LittleEndian, u.Order())
	assert.Equal(t, dwarf.Offset(0), u.Offset())

	u = &Unit{AddressSize: 4, ByteOrder: binary.BigEndian}
	assert.Equal(t, 4, u.AddrSize())
	assert.Equal(t, binary.BigEndian, u.Order())
}

func TestUnit_EntryRanges(t *testing.T) {
	tree := NewTree()
	withPC := tree.Add(nil, 0x10, dwarf.TagSubprogram,
		Addr(dwarf.AttrLowpc, 0x1000),
		Const(dwarf.AttrHighpc, 0x20),
	)
	withRanges := tree.Add(nil, 0x20, dwarf.TagLexDwarfBlock,
		dwarf.Field{Attr: dwarf.AttrRanges, Val: int64(0), Class: dwarf.ClassRangeListPtr},
	)
	bare := tree.Add(nil, 0x30, dwarf.TagLexDwarfBlock)

	u := &Unit{Ranges: func(e Entry) ([][2]uint64, error) {
		if e.Offset() == 0x20 {
			return [][2]uint64{{0x2000, 0x2010}, {0x3000, 0x3004}}, nil
		}
		return nil, errors.New("no ranges")
	}}

	r, ok := u.EntryRanges(withPC)
	assert.True(t, ok)
	assert.Equal(t, [][2]uint64{{0x1000, 0x1020}}, r)

	r, ok = u.EntryRanges(withRanges)
	assert.True(t, ok)
	assert.Len(t, r, 2)

	_, ok = u.EntryRanges(bare)
	assert.False(t, ok)

	_, ok = (&Unit{}).EntryRanges(withRanges)
	assert.False(t, ok, "no resolver")
}

func TestDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiagnostics(zerolog.New(&buf), "main.c")

	assert.NoError(t, d.Err())

	d.Add(KindUnsupported, 0x2a, "opcode 0x%02x", 0xff)
	d.Add(KindMalformed, 0x30, "missing size")

	require.Equal(t, 2, d.Len())
	first := d.Items()[0]
	assert.Equal(t, KindUnsupported, first.Kind)
	assert.Equal(t, "main.c", first.Unit)
	assert.Equal(t, dwarf.Offset(0x2a), first.Offset)
	assert.Equal(t, "opcode 0xff", first.Message)

	err := d.Err()
	var diagErr *DiagnosticError
	require.ErrorAs(t, err, &diagErr)
	assert.Equal(t, first, diagErr.Diagnostic)
	assert.Equal(t, `unsupported-construct: unit "main.c" entry 0x2a: opcode 0xff`, err.Error())

	logged := buf.String()
	assert.Contains(t, logged, `"level":"warn"`)
	assert.Contains(t, logged, `"kind":"unsupported-construct"`)
	assert.Contains(t, logged, `"offset":"0x2a"`)
	assert.Contains(t, logged, `"unit":"main.c"`)
}

func TestDiagnostics_Nil(t *testing.T) {
	var d *Diagnostics
	d.Add(KindMalformed, 1, "ignored")
	assert.Zero(t, d.Len())
	assert.Nil(t, d.Items())
	assert.NoError(t, d.Err())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "malformed-debug-info", KindMalformed.String())
	assert.Equal(t, "unsupported-construct", KindUnsupported.String())
	assert.Equal(t, "ambiguous-architecture", KindAmbiguousArch.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

// selfDWARF loads the debug info of the running test binary.
func selfDWARF(t *testing.T) *dwarf.Data {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	f, err := elf.Open(exe)
	if err != nil {
		t.Skipf("test binary is not ELF: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	d, err := f.DWARF()
	if err != nil {
		t.Skipf("test binary has no DWARF: %v", err)
	}
	return d
}

func TestLoad(t *testing.T) {
	d := selfDWARF(t)

	units, err := Load(d, Sections{}, LoadOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, units)

	for _, u := range units {
		require.NotNil(t, u.Root)
		assert.Contains(t, []dwarf.Tag{dwarf.TagCompileUnit, dwarf.TagPartialUnit, dwarf.TagSkeletonUnit}, u.Root.Tag())
		assert.Equal(t, u.Root.Offset(), u.Offset())
		assert.Greater(t, u.AddrSize(), 0)
	}

	// Every unit hangs off the same tree, so references resolve across units.
	var found bool
	for _, u := range units {
		for _, c := range u.Root.Children() {
			if c.Field(dwarf.AttrType) != nil && c.Ref(dwarf.AttrType) != nil {
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	assert.True(t, found, "expected at least one resolvable type reference")
}

func TestLoad_EntryBudget(t *testing.T) {
	d := selfDWARF(t)

	_, err := Load(d, Sections{}, LoadOptions{MaxEntries: 10})
	assert.ErrorIs(t, err, ErrEntryBudget)
}

func TestLoad_DWARF5Version(t *testing.T) {
	fx := testutil.NewDWARF5()
	d := fx.Data(t)

	units, err := Load(d, Sections{Info: fx.Info, LocLists: fx.LocLists}, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 5, units[0].Version)
	assert.True(t, units[0].UsesLocLists())
	assert.Equal(t, uint64(testutil.DWARF5MainPC), units[0].BaseAddress)

	// Without .debug_info bytes the version is unknown and the sections
	// present decide.
	units, err = Load(d, Sections{LocLists: fx.LocLists}, LoadOptions{})
	require.NoError(t, err)
	assert.Zero(t, units[0].Version)
	assert.True(t, units[0].UsesLocLists())
}

func TestUnit_UsesLocLists(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
		want bool
	}{
		{"dwarf 4", Unit{Version: 4, Loc: []byte{0}, LocLists: []byte{0}}, false},
		{"dwarf 4 without .debug_loc", Unit{Version: 4, LocLists: []byte{0}}, false},
		{"dwarf 5", Unit{Version: 5, Loc: []byte{0}, LocLists: []byte{0}}, true},
		{"unknown with both", Unit{Loc: []byte{0}, LocLists: []byte{0}}, false},
		{"unknown with loclists only", Unit{LocLists: []byte{0}}, true},
		{"unknown with neither", Unit{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.unit.UsesLocLists())
		})
	}
}

func TestParseUnitHeaders(t *testing.T) {
	le := binary.LittleEndian

	// A DWARF 4 unit, a zero-length pad, a 64-bit DWARF 5 unit and a
	// truncated header.
	var info []byte
	info = le.AppendUint32(info, 7)
	info = le.AppendUint16(info, 4)
	info = append(info, make([]byte, 5)...)
	info = le.AppendUint32(info, 0)
	second := len(info)
	info = le.AppendUint32(info, 0xffffffff)
	info = le.AppendUint64(info, 10)
	info = le.AppendUint16(info, 5)
	info = append(info, make([]byte, 8)...)
	info = le.AppendUint32(info, 100)

	h := parseUnitHeaders(info, le)
	require.Len(t, h, 2)
	assert.Equal(t, unitHeader{start: 0, end: 11, version: 4}, h[0])
	assert.Equal(t, unitHeader{start: uint64(second), end: uint64(second) + 22, version: 5}, h[1])

	assert.Equal(t, 4, h.version(0x0b-1))
	assert.Equal(t, 5, h.version(dwarf.Offset(second+12)))
	assert.Zero(t, h.version(0x1000))
	assert.Empty(t, parseUnitHeaders(nil, le))
}
