package dwarfinfo

import (
	"debug/dwarf"
	"fmt"

	"github.com/rs/zerolog"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// KindMalformed covers missing required attributes and invalid or
	// unreachable references.
	KindMalformed Kind = iota + 1
	// KindUnsupported covers tags, opcodes and attribute combinations the
	// extractors do not model.
	KindUnsupported
	// KindAmbiguousArch is reported when a register name is needed but the
	// target architecture is unknown.
	KindAmbiguousArch
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed-debug-info"
	case KindUnsupported:
		return "unsupported-construct"
	case KindAmbiguousArch:
		return "ambiguous-architecture"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Diagnostic locates one problem in the debug info.
type Diagnostic struct {
	Kind    Kind
	Unit    string
	Offset  dwarf.Offset
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: unit %q entry 0x%x: %s", d.Kind, d.Unit, uint64(d.Offset), d.Message)
}

// DiagnosticError turns a diagnostic into an error for strict callers.
type DiagnosticError struct {
	Diagnostic Diagnostic
}

func (e *DiagnosticError) Error() string {
	return e.Diagnostic.String()
}

// Diagnostics collects the diagnostics of one compilation unit. A nil
// *Diagnostics discards everything.
type Diagnostics struct {
	logger zerolog.Logger
	unit   string
	items  []Diagnostic
}

// NewDiagnostics creates a sink for the named unit. Each diagnostic is also
// logged at warn level.
func NewDiagnostics(logger zerolog.Logger, unit string) *Diagnostics {
	return &Diagnostics{
		logger: logger.With().Str("unit", unit).Logger(),
		unit:   unit,
	}
}

// Add records a diagnostic for the entry at off.
func (d *Diagnostics) Add(kind Kind, off dwarf.Offset, format string, args ...any) {
	if d == nil {
		return
	}
	diag := Diagnostic{
		Kind:    kind,
		Unit:    d.unit,
		Offset:  off,
		Message: fmt.Sprintf(format, args...),
	}
	d.items = append(d.items, diag)

	d.logger.Warn().
		Str("kind", kind.String()).
		Str("offset", fmt.Sprintf("0x%x", uint64(off))).
		Msg(diag.Message)
}

// Items returns the recorded diagnostics in order.
func (d *Diagnostics) Items() []Diagnostic {
	if d == nil {
		return nil
	}
	return d.items
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

// Err returns the first diagnostic as an error, or nil.
func (d *Diagnostics) Err() error {
	if d.Len() == 0 {
		return nil
	}
	return &DiagnosticError{Diagnostic: d.items[0]}
}
