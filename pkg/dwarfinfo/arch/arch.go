// Package arch describes the target architecture of a binary: pointer width,
// byte order, and how DWARF register numbers map to register names.
//
// An Arch is an immutable value handed to the type resolver and the location
// interpreter at construction time.
package arch

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"strings"
)

// Arch is an immutable target description.
type Arch struct {
	// Name is the canonical architecture name (amd64, 386, arm64, unknown).
	Name string
	// PointerSize is the width of a pointer in bytes.
	PointerSize int
	// ByteOrder is the target byte order.
	ByteOrder binary.ByteOrder
	// FrameRegister is the DWARF register used for DW_OP_fbreg when a
	// function does not name its frame base register.
	FrameRegister uint64

	registers func(n uint64) (string, bool)
}

var (
	AMD64 = Arch{
		Name:          "amd64",
		PointerSize:   8,
		ByteOrder:     binary.LittleEndian,
		FrameRegister: 7, // rsp
		registers:     amd64Register,
	}
	I386 = Arch{
		Name:          "386",
		PointerSize:   4,
		ByteOrder:     binary.LittleEndian,
		FrameRegister: 4, // esp
		registers:     i386Register,
	}
	ARM64 = Arch{
		Name:          "arm64",
		PointerSize:   8,
		ByteOrder:     binary.LittleEndian,
		FrameRegister: 31, // sp
		registers:     arm64Register,
	}
	// Unknown is used when the architecture cannot be determined. Register
	// names are unavailable; pointers default to 8 bytes.
	Unknown = Arch{
		Name:          "unknown",
		PointerSize:   8,
		ByteOrder:     binary.LittleEndian,
		FrameRegister: 7,
	}
)

var aliases = map[string]Arch{
	"amd64":   AMD64,
	"x86_64":  AMD64,
	"x86-64":  AMD64,
	"386":     I386,
	"i386":    I386,
	"i686":    I386,
	"x86":     I386,
	"arm64":   ARM64,
	"aarch64": ARM64,
}

// Lookup returns the architecture for a user-supplied name. Triples such as
// "x86_64-unknown-linux-gnu" are accepted; only the first component counts.
func Lookup(name string) (Arch, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '-'); i > 0 && name != "x86-64" {
		name = name[:i]
	}
	a, ok := aliases[name]
	return a, ok
}

// Names returns the accepted architecture names.
func Names() []string {
	return []string{"amd64", "x86_64", "386", "i386", "arm64", "aarch64"}
}

// FromELF maps an ELF header to an architecture.
func FromELF(m elf.Machine, order binary.ByteOrder) Arch {
	var a Arch
	switch m {
	case elf.EM_X86_64:
		a = AMD64
	case elf.EM_386:
		a = I386
	case elf.EM_AARCH64:
		a = ARM64
	default:
		a = Unknown
	}
	if order != nil {
		a.ByteOrder = order
	}
	return a
}

// FromMachO maps a Mach-O CPU type to an architecture.
func FromMachO(cpu macho.Cpu) Arch {
	switch cpu {
	case macho.CpuAmd64:
		return AMD64
	case macho.Cpu386:
		return I386
	case macho.CpuArm64:
		return ARM64
	default:
		return Unknown
	}
}

// FromPE maps a PE machine type to an architecture.
func FromPE(machine uint16) Arch {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return AMD64
	case pe.IMAGE_FILE_MACHINE_I386:
		return I386
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return ARM64
	default:
		return Unknown
	}
}

// Known reports whether register names can be resolved.
func (a Arch) Known() bool {
	return a.registers != nil
}

// WithPointerSize returns a copy of a with a different pointer width. Zero
// keeps the current width.
func (a Arch) WithPointerSize(n int) Arch {
	if n > 0 {
		a.PointerSize = n
	}
	return a
}

// RegisterName returns the display name of DWARF register n. When the name
// cannot be resolved it returns a numeric identifier and false.
func (a Arch) RegisterName(n uint64) (string, bool) {
	if a.registers != nil {
		if name, ok := a.registers(n); ok {
			return name, true
		}
	}
	return fmt.Sprintf("reg%d", n), false
}

func (a Arch) String() string {
	return a.Name
}
