package location

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
)

// Interpreter decodes location expressions for one compilation unit.
type Interpreter struct {
	arch     arch.Arch
	addrSize int
	order    binary.ByteOrder
	frameReg uint64
	diag     *dwarfinfo.Diagnostics
}

// NewInterpreter creates an interpreter. addrSize is the unit's address
// width; zero falls back to the target pointer width. diag may be nil.
func NewInterpreter(a arch.Arch, addrSize int, order binary.ByteOrder, diag *dwarfinfo.Diagnostics) *Interpreter {
	if addrSize <= 0 {
		addrSize = a.PointerSize
	}
	if order == nil {
		order = a.ByteOrder
	}
	return &Interpreter{
		arch:     a,
		addrSize: addrSize,
		order:    order,
		frameReg: a.FrameRegister,
		diag:     diag,
	}
}

// WithFrameRegister returns a copy that resolves DW_OP_fbreg against reg.
func (in *Interpreter) WithFrameRegister(reg uint64) *Interpreter {
	c := *in
	c.frameReg = reg
	return &c
}

// FrameRegister returns the register DW_OP_fbreg is relative to.
func (in *Interpreter) FrameRegister() uint64 {
	return in.frameReg
}

// AddressSize returns the width of addresses in expressions and lists.
func (in *Interpreter) AddressSize() int {
	return in.addrSize
}

// Interpret decodes one expression. at is the entry that owns it and is used
// only for diagnostics.
func (in *Interpreter) Interpret(expr []byte, at dwarf.Offset) Expr {
	if len(expr) == 0 {
		return sentinel(StatusEmpty)
	}

	var (
		out Expr
		txt strings.Builder
	)
	c := &cursor{data: expr, order: in.order}

	// Operands are separated by spaces; annotations carry their own.
	emit := func(tok string) {
		if txt.Len() > 0 && !strings.HasPrefix(tok, " ") {
			txt.WriteByte(' ')
		}
		txt.WriteString(tok)
	}
	base := func(k Kind) {
		if out.Kind == KindNone {
			out.Kind = k
		}
	}
	constant := func(v int64) {
		if out.Kind == KindNone {
			out.Kind = KindConstant
			out.Offset = v
		}
		emit(fmt.Sprintf("%d", v))
	}
	register := func(n uint64) {
		name := in.registerName(n, at)
		base(KindRegister)
		if out.Register == "" {
			out.Register = name
		}
		emit("%" + name)
	}
	relative := func(n uint64, off int64) {
		name := in.registerName(n, at)
		if out.Kind == KindNone {
			out.Kind = KindMemory
			out.Register = name
			out.Offset = off
		}
		emit(fmt.Sprintf("%d(%%%s)", off, name))
	}

	for !c.done() {
		op := c.u8()
		switch {
		case op >= opLit0 && op <= opLit31:
			constant(int64(op - opLit0))

		case op >= opReg0 && op <= opReg31:
			register(uint64(op - opReg0))

		case op >= opBreg0 && op <= opBreg31:
			relative(uint64(op-opBreg0), c.sleb())

		case op == opRegx:
			register(c.uleb())

		case op == opBregx:
			reg := c.uleb()
			relative(reg, c.sleb())

		case op == opFbreg:
			relative(in.frameReg, c.sleb())

		case op == opAddr:
			addr := c.fixed(in.addrSize)
			if out.Kind == KindNone {
				out.Kind = KindAddress
				out.Address = addr
			}
			emit(fmt.Sprintf("(0x%0*x)", in.addrSize, addr))

		case op >= opConst1u && op <= opConst8s:
			size := 1 << ((op - opConst1u) / 2)
			v := c.fixed(size)
			if (op-opConst1u)%2 == 1 {
				constant(signExtend(v, size))
			} else {
				constant(int64(v)) // #nosec G115 -- rendered, not used as a size
			}

		case op == opConstu:
			constant(int64(c.uleb())) // #nosec G115

		case op == opConsts:
			constant(c.sleb())

		case op == opDeref:
			emit(" [deref]")

		case op == opPlusUconst:
			emit(fmt.Sprintf(" + %d", c.uleb()))

		case op == opPiece:
			out.Kind = KindComposite
			emit(fmt.Sprintf(" [%d-byte chunk]", c.uleb()))

		case op == opStackValue:
			emit(" [known constant value]")

		case op == opGNUPushTLS || op == opFormTLS:
			out.Kind = KindTLS
			emit(" [tls index]")

		case op == opAnd:
			emit(" &")

		case op == opMinus:
			emit(" -")

		case op == opPlus:
			emit(" +")

		case op == opEntryValue || op == opGNUEntryVal:
			return sentinel(StatusEntryValue)

		default:
			status := StatusUnrecognized
			if expr[len(expr)-1] == opStackValue {
				status = StatusSynthetic
			}
			in.diag.Add(dwarfinfo.KindUnsupported, at, "location opcode 0x%02x in expression % x", op, expr)
			return sentinel(status)
		}

		if c.err {
			in.diag.Add(dwarfinfo.KindMalformed, at, "truncated location expression % x", expr)
			return sentinel(StatusUnrecognized)
		}
	}

	out.Status = StatusOK
	out.Text = txt.String()
	return out
}

func (in *Interpreter) registerName(n uint64, at dwarf.Offset) string {
	name, ok := in.arch.RegisterName(n)
	if ok {
		return name
	}
	if !in.arch.Known() {
		in.diag.Add(dwarfinfo.KindAmbiguousArch, at, "no register name for DWARF register %d", n)
	} else {
		in.diag.Add(dwarfinfo.KindUnsupported, at, "DWARF register %d has no %s name", n, in.arch.Name)
	}
	return name
}

func signExtend(v uint64, size int) int64 {
	shift := uint(64 - 8*size) // #nosec G115 -- size is 1, 2, 4 or 8
	return int64(v<<shift) >> shift // #nosec G115
}

// cursor reads little pieces of a byte slice and latches truncation.
type cursor struct {
	data  []byte
	pos   int
	order binary.ByteOrder
	err   bool
}

func (c *cursor) done() bool {
	return c.err || c.pos >= len(c.data)
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) u8() byte {
	if c.remaining() < 1 {
		c.err = true
		return 0
	}
	b := c.data[c.pos]
	c.pos++
	return b
}

func (c *cursor) u16() uint16 {
	return uint16(c.fixed(2)) // #nosec G115
}

func (c *cursor) fixed(size int) uint64 {
	if size <= 0 || c.remaining() < size {
		c.err = true
		c.pos = len(c.data)
		return 0
	}
	b := c.data[c.pos : c.pos+size]
	c.pos += size
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(c.order.Uint16(b))
	case 4:
		return uint64(c.order.Uint32(b))
	case 8:
		return c.order.Uint64(b)
	}
	// Odd widths are assembled byte by byte.
	var v uint64
	if c.order == binary.BigEndian {
		for _, x := range b {
			v = v<<8 | uint64(x)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) uleb() uint64 {
	v, n := dwarfinfo.ULEB128(c.data[c.pos:])
	if n == 0 {
		c.err = true
		c.pos = len(c.data)
		return 0
	}
	c.pos += n
	return v
}

func (c *cursor) sleb() int64 {
	v, n := dwarfinfo.SLEB128(c.data[c.pos:])
	if n == 0 {
		c.err = true
		c.pos = len(c.data)
		return 0
	}
	c.pos += n
	return v
}

func (c *cursor) bytes(n int) []byte {
	if n < 0 || c.remaining() < n {
		c.err = true
		c.pos = len(c.data)
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}
