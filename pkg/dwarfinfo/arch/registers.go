package arch

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// DWARF register numbering follows the psABI of each target.

var amd64GPR = [...]x86asm.Reg{
	x86asm.RAX, x86asm.RDX, x86asm.RCX, x86asm.RBX,
	x86asm.RSI, x86asm.RDI, x86asm.RBP, x86asm.RSP,
	x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11,
	x86asm.R12, x86asm.R13, x86asm.R14, x86asm.R15,
	x86asm.RIP,
}

var i386GPR = [...]x86asm.Reg{
	x86asm.EAX, x86asm.ECX, x86asm.EDX, x86asm.EBX,
	x86asm.ESP, x86asm.EBP, x86asm.ESI, x86asm.EDI,
	x86asm.EIP,
}

func amd64Register(n uint64) (string, bool) {
	switch {
	case n < uint64(len(amd64GPR)):
		return strings.ToLower(amd64GPR[n].String()), true
	case n >= 17 && n <= 32:
		return x86Vector(x86asm.X0 + x86asm.Reg(n-17)), true
	case n >= 33 && n <= 40:
		return x87(x86asm.F0 + x86asm.Reg(n-33)), true
	case n >= 41 && n <= 48:
		return mmx(x86asm.M0 + x86asm.Reg(n-41)), true
	}
	return "", false
}

func i386Register(n uint64) (string, bool) {
	switch {
	case n < uint64(len(i386GPR)):
		return strings.ToLower(i386GPR[n].String()), true
	case n >= 11 && n <= 18:
		return x87(x86asm.F0 + x86asm.Reg(n-11)), true
	case n >= 21 && n <= 28:
		return x86Vector(x86asm.X0 + x86asm.Reg(n-21)), true
	case n >= 29 && n <= 36:
		return mmx(x86asm.M0 + x86asm.Reg(n-29)), true
	}
	return "", false
}

func arm64Register(n uint64) (string, bool) {
	switch {
	case n <= 30:
		return strings.ToLower((arm64asm.X0 + arm64asm.Reg(n)).String()), true
	case n == 31:
		return strings.ToLower(arm64asm.RegSP(arm64asm.SP).String()), true
	case n >= 64 && n <= 95:
		return strings.ToLower((arm64asm.V0 + arm64asm.Reg(n-64)).String()), true
	}
	return "", false
}

// x86asm spells vector and x87 registers X0, F0, M0.

func x86Vector(r x86asm.Reg) string {
	return "xmm" + strings.TrimPrefix(r.String(), "X")
}

func x87(r x86asm.Reg) string {
	return "st" + strings.TrimPrefix(r.String(), "F")
}

func mmx(r x86asm.Reg) string {
	return fmt.Sprintf("mm%s", strings.TrimPrefix(r.String(), "M"))
}
