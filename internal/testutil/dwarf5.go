package testutil

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"testing"
)

// Addresses used by the DWARF 5 fixture.
const (
	DWARF5MainPC      = 0x401000
	DWARF5CounterAddr = 0x404028
)

// DWARF5 holds the debug sections of a small DWARF 5 unit laid out the way
// GCC 11+ emits it by default: location lists live in .debug_loclists and
// are referenced with DW_FORM_sec_offset, without DW_AT_loclists_base.
//
//	int counter;                  // global at DWARF5CounterAddr
//	int main(void) { int i; ... } // i in %rax, then at -20(%rbp)
type DWARF5 struct {
	Abbrev   []byte
	Info     []byte
	LocLists []byte
}

// NewDWARF5 builds the fixture sections.
func NewDWARF5() DWARF5 {
	le := binary.LittleEndian

	abbrev := []byte{
		1, 0x11, 1, // compile_unit, children
		0x03, 0x08, // name, string
		0x11, 0x01, // low_pc, addr
		0, 0,
		2, 0x24, 0, // base_type
		0x03, 0x08,
		0x0b, 0x0b, // byte_size, data1
		0x3e, 0x0b, // encoding, data1
		0, 0,
		3, 0x34, 0, // variable
		0x03, 0x08,
		0x49, 0x13, // type, ref4
		0x02, 0x18, // location, exprloc
		0, 0,
		4, 0x2e, 1, // subprogram, children
		0x03, 0x08,
		0x11, 0x01,
		0x12, 0x06, // high_pc, data4
		0x40, 0x18, // frame_base, exprloc
		0, 0,
		5, 0x34, 0, // variable
		0x03, 0x08,
		0x49, 0x13,
		0x02, 0x17, // location, sec_offset
		0, 0,
		0,
	}

	// unit_length, version 5, DW_UT_compile, address size 8, abbrev offset.
	info := []byte{0, 0, 0, 0, 5, 0, 0x01, 8, 0, 0, 0, 0}

	info = append(info, 1)
	info = append(info, "loop.c\x00"...)
	info = le.AppendUint64(info, DWARF5MainPC)

	intOff := uint32(len(info)) // #nosec G115 -- fixture is tiny
	info = append(info, 2)
	info = append(info, "int\x00"...)
	info = append(info, 4, 0x05)

	info = append(info, 3)
	info = append(info, "counter\x00"...)
	info = le.AppendUint32(info, intOff)
	info = append(info, 9, 0x03) // DW_OP_addr
	info = le.AppendUint64(info, DWARF5CounterAddr)

	info = append(info, 4)
	info = append(info, "main\x00"...)
	info = le.AppendUint64(info, DWARF5MainPC)
	info = le.AppendUint32(info, 0x40)
	info = append(info, 1, 0x56) // DW_OP_reg6

	info = append(info, 5)
	info = append(info, "i\x00"...)
	info = le.AppendUint32(info, intOff)
	info = le.AppendUint32(info, 12) // first list, right after the header

	info = append(info, 0, 0)
	le.PutUint32(info, uint32(len(info)-4)) // #nosec G115

	// Header: unit_length, version 5, address size 8, no segment selector,
	// no offsets table.
	loclists := []byte{0, 0, 0, 0, 5, 0, 8, 0, 0, 0, 0, 0}
	loclists = append(loclists,
		0x04, 0x00, 0x10, 1, 0x50, // offset_pair [0, 0x10): DW_OP_reg0
		0x04, 0x10, 0x20, 2, 0x76, 0x6c, // offset_pair [0x10, 0x20): DW_OP_breg6 -20
		0x00, // end_of_list
	)
	le.PutUint32(loclists, uint32(len(loclists)-4)) // #nosec G115

	return DWARF5{Abbrev: abbrev, Info: info, LocLists: loclists}
}

// Data parses the fixture with debug/dwarf.
func (d DWARF5) Data(t *testing.T) *dwarf.Data {
	t.Helper()

	data, err := dwarf.New(d.Abbrev, nil, nil, d.Info, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("failed to parse DWARF 5 fixture: %v", err)
	}
	return data
}

// WriteDWARF5ELF writes the fixture as an x86-64 ELF executable and returns
// its path.
func WriteDWARF5ELF(t *testing.T) string {
	t.Helper()

	d := NewDWARF5()
	sections := []struct {
		name string
		data []byte
	}{
		{".debug_abbrev", d.Abbrev},
		{".debug_info", d.Info},
		{".debug_loclists", d.LocLists},
	}

	le := binary.LittleEndian
	shstrtab := []byte{0}
	var body bytes.Buffer
	headers := []elf.Section64{{}}
	const dataStart = 64 // ELF header size

	add := func(name string, typ elf.SectionType, data []byte) {
		headers = append(headers, elf.Section64{
			Name:      uint32(len(shstrtab)), // #nosec G115
			Type:      uint32(typ),
			Off:       uint64(dataStart + body.Len()), // #nosec G115
			Size:      uint64(len(data)),
			Addralign: 1,
		})
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		body.Write(data)
	}
	for _, s := range sections {
		add(s.name, elf.SHT_PROGBITS, s.data)
	}
	// The name must be in the table before the table is written.
	shstrndx := len(headers)
	name := uint32(len(shstrtab)) // #nosec G115
	shstrtab = append(shstrtab, ".shstrtab\x00"...)
	headers = append(headers, elf.Section64{
		Name:      name,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       uint64(dataStart + body.Len()), // #nosec G115
		Size:      uint64(len(shstrtab)),
		Addralign: 1,
	})
	body.Write(shstrtab)
	for body.Len()%8 != 0 {
		body.WriteByte(0)
	}

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	hdr := elf.Header64{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(dataStart + body.Len()), // #nosec G115
		Ehsize:    dataStart,
		Shentsize: 64,
		Shnum:     uint16(len(headers)), // #nosec G115
		Shstrndx:  uint16(shstrndx),     // #nosec G115
	}

	var out bytes.Buffer
	if err := binary.Write(&out, le, hdr); err != nil {
		t.Fatalf("failed to encode ELF header: %v", err)
	}
	out.Write(body.Bytes())
	for _, h := range headers {
		if err := binary.Write(&out, le, h); err != nil {
			t.Fatalf("failed to encode section header: %v", err)
		}
	}

	return WriteFile(t, "loop", out.Bytes())
}
