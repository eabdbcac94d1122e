package variables

import (
	"debug/dwarf"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/location"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/typeinfo"
)

// maxOriginDepth bounds abstract-origin and specification chains.
const maxOriginDepth = 8

// DW_OP codes that name a frame base register.
const (
	opReg0   = 0x50
	opReg31  = 0x6f
	opBreg0  = 0x70
	opBreg31 = 0x8f
	opRegx   = 0x90
)

// Options tunes a collection.
type Options struct {
	// PC restricts collection to variables valid at this program counter
	// when FilterPC is set.
	PC       uint64
	FilterPC bool
}

// Collector gathers the variables of one compilation unit. It owns the unit's
// type cache and is not safe for concurrent use.
type Collector struct {
	unit   *dwarfinfo.Unit
	arch   arch.Arch
	opts   Options
	types  *typeinfo.Resolver
	interp *location.Interpreter
	diag   *dwarfinfo.Diagnostics
	logger zerolog.Logger
}

// scope is the function context handed down the traversal.
type scope struct {
	fn     *Function
	interp *location.Interpreter
}

// NewCollector prepares a collector for u. diag may be nil.
func NewCollector(u *dwarfinfo.Unit, a arch.Arch, opts Options, diag *dwarfinfo.Diagnostics, logger zerolog.Logger) *Collector {
	return &Collector{
		unit:   u,
		arch:   a,
		opts:   opts,
		types:  typeinfo.NewResolver(a, diag),
		interp: location.NewInterpreter(a, u.AddrSize(), u.Order(), diag),
		diag:   diag,
		logger: logger.With().Str("component", "collector").Str("unit", u.Name).Logger(),
	}
}

// Types returns the type cache filled by the collection.
func (c *Collector) Types() *typeinfo.Cache {
	return c.types.Cache()
}

// Collect walks the whole unit.
func (c *Collector) Collect() Result {
	res := c.CollectScope(c.unit.Root, nil)
	c.logger.Debug().
		Int("locals", len(res.Locals)).
		Int("globals", len(res.Globals)).
		Int("types", c.types.Cache().Len()).
		Int("diagnostics", c.diag.Len()).
		Msg("Collected unit")
	return res
}

// CollectScope walks the children of root. fn is the enclosing function, or
// nil at file scope.
func (c *Collector) CollectScope(root dwarfinfo.Entry, fn *Function) Result {
	var res Result
	if root == nil {
		return res
	}
	sc := scope{fn: fn, interp: c.interp}
	if fn != nil {
		sc.interp = c.interp.WithFrameRegister(fn.FrameRegister)
	}
	c.walk(root, sc, &res)
	return res
}

func (c *Collector) walk(e dwarfinfo.Entry, sc scope, res *Result) {
	for _, child := range e.Children() {
		switch child.Tag() {
		case dwarf.TagVariable, dwarf.TagFormalParameter, dwarf.TagConstant:
			if v, ok := c.variable(child, sc); ok {
				res.add(v)
			}
		case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
			if !c.covers(child) {
				continue
			}
			c.walk(child, c.enter(child, sc), res)
		case dwarf.TagLexDwarfBlock:
			if !c.covers(child) {
				continue
			}
			c.walk(child, sc, res)
		default:
			c.walk(child, sc, res)
		}
	}
}

// covers applies the PC filter to a scope. Scopes without range information
// are always entered.
func (c *Collector) covers(e dwarfinfo.Entry) bool {
	if !c.opts.FilterPC {
		return true
	}
	ranges, ok := c.unit.EntryRanges(e)
	if !ok {
		return true
	}
	for _, r := range ranges {
		if c.opts.PC >= r[0] && c.opts.PC < r[1] {
			return true
		}
	}
	return false
}

// enter builds the function context for a subprogram or inlined instance.
func (c *Collector) enter(e dwarfinfo.Entry, outer scope) scope {
	fn := &Function{
		Name:          dwarfinfo.Name(c.carrier(e, dwarf.AttrName)),
		FrameRegister: c.arch.FrameRegister,
	}
	if low, ok := dwarfinfo.LowPC(e); ok {
		fn.Address = low
	} else if ranges, ok := c.unit.EntryRanges(e); ok && len(ranges) > 0 {
		fn.Address = ranges[0][0]
	}

	if e.Tag() == dwarf.TagInlinedSubroutine && outer.fn != nil {
		// Inlined code shares the frame of the function it was inlined into.
		fn.FrameRegister = outer.fn.FrameRegister
	} else if reg, ok := c.frameBase(e); ok {
		fn.FrameRegister = reg
	}

	return scope{fn: fn, interp: c.interp.WithFrameRegister(fn.FrameRegister)}
}

// frameBase extracts the register named by DW_AT_frame_base. Anything more
// involved than a plain register, such as DW_OP_call_frame_cfa, keeps the
// architecture default.
func (c *Collector) frameBase(e dwarfinfo.Entry) (uint64, bool) {
	b, ok := dwarfinfo.Block(e, dwarf.AttrFrameBase)
	if !ok || len(b) == 0 {
		return 0, false
	}
	switch op := b[0]; {
	case op >= opReg0 && op <= opReg31:
		return uint64(op - opReg0), true
	case op >= opBreg0 && op <= opBreg31:
		return uint64(op - opBreg0), true
	case op == opRegx:
		if reg, n := dwarfinfo.ULEB128(b[1:]); n > 0 {
			return reg, true
		}
	}
	return 0, false
}

func (c *Collector) variable(e dwarfinfo.Entry, sc scope) (Variable, bool) {
	loc, ok := sc.interp.Decode(c.unit, e, dwarf.AttrLocation)
	if !ok {
		// No storage: a declaration or an optimized-out variable.
		return Variable{}, false
	}
	if c.opts.FilterPC && loc.IsList() {
		loc = loc.Narrow(c.opts.PC)
		if len(loc.Ranges) == 0 {
			return Variable{}, false
		}
	}

	return Variable{
		Name:        dwarfinfo.Name(c.carrier(e, dwarf.AttrName)),
		Type:        c.types.ResolveAttr(c.carrier(e, dwarf.AttrType)),
		Location:    loc,
		Function:    sc.fn,
		Source:      c.source(c.carrier(e, dwarf.AttrDeclFile)),
		IsParameter: e.Tag() == dwarf.TagFormalParameter,
		Offset:      e.Offset(),
	}, true
}

// carrier returns the entry that holds attr: e itself, or the first entry up
// its abstract-origin or specification chain that has it. It returns e when
// nobody does.
func (c *Collector) carrier(e dwarfinfo.Entry, attr dwarf.Attr) dwarfinfo.Entry {
	cur := e
	for i := 0; i < maxOriginDepth; i++ {
		if cur.Field(attr) != nil {
			return cur
		}
		next := cur.Ref(dwarf.AttrAbstractOrigin)
		if next == nil {
			next = cur.Ref(dwarf.AttrSpecification)
		}
		if next == nil {
			break
		}
		cur = next
	}
	return e
}

func (c *Collector) source(e dwarfinfo.Entry) Source {
	file, ok := dwarfinfo.Int(e, dwarf.AttrDeclFile)
	if !ok {
		return Source{}
	}
	path := c.unit.FilePath(file)
	if path == "" {
		return Source{}
	}
	line, _ := dwarfinfo.Int(e, dwarf.AttrDeclLine)
	col, _ := dwarfinfo.Int(e, dwarf.AttrDeclColumn)
	return Source{File: path, Line: line, Column: col}
}
