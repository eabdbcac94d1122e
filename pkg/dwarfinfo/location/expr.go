// Package location decodes DWARF location expressions and location lists into
// human-readable descriptions of where a variable lives.
//
// Decoding never fails outright. Expressions the interpreter cannot model
// degrade to one of the sentinel results and leave a diagnostic behind.
package location

// Status tells whether an expression decoded to a real description.
type Status int

const (
	StatusOK Status = iota
	// StatusEmpty is an expression with no operations: the variable has no
	// storage over the described range.
	StatusEmpty
	// StatusEntryValue means the value is only known on entry to the
	// enclosing call.
	StatusEntryValue
	// StatusSynthetic is an unmodeled expression that ends in a stack value,
	// which is most likely a computed value.
	StatusSynthetic
	// StatusUnrecognized is an unmodeled or truncated expression.
	StatusUnrecognized
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusEntryValue:
		return "entry-value"
	case StatusSynthetic:
		return "synthetic"
	default:
		return "unrecognized"
	}
}

// Sentinel descriptions.
const (
	EntryValueText   = "[value known only at entry]"
	SyntheticText    = "[synthetic value, probably]"
	UnrecognizedText = "[unrecognized expression]"
)

// Kind is the storage class named by the first operation of an expression.
type Kind int

const (
	KindNone Kind = iota
	// KindRegister: the value is in Register.
	KindRegister
	// KindMemory: the value is at Offset bytes from Register.
	KindMemory
	// KindAddress: the value is at the absolute Address.
	KindAddress
	// KindConstant: the expression starts from a literal held in Offset.
	KindConstant
	// KindTLS: Address or Offset is an index into thread-local storage.
	KindTLS
	// KindComposite: the value is split into pieces.
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindMemory:
		return "memory"
	case KindAddress:
		return "address"
	case KindConstant:
		return "constant"
	case KindTLS:
		return "tls"
	case KindComposite:
		return "composite"
	default:
		return "none"
	}
}

// Expr is one decoded location expression.
type Expr struct {
	Status   Status
	Kind     Kind
	Register string
	Offset   int64
	Address  uint64
	// Text is the rendered description, or the sentinel for non-OK results.
	Text string
}

func (e Expr) String() string {
	return e.Text
}

// OK reports whether the expression decoded to a real description.
func (e Expr) OK() bool {
	return e.Status == StatusOK
}

func sentinel(s Status) Expr {
	switch s {
	case StatusEntryValue:
		return Expr{Status: s, Text: EntryValueText}
	case StatusSynthetic:
		return Expr{Status: s, Text: SyntheticText}
	case StatusEmpty:
		return Expr{Status: s}
	default:
		return Expr{Status: StatusUnrecognized, Text: UnrecognizedText}
	}
}

// Range is one entry of a location list, valid for Start <= pc < End.
type Range struct {
	Start uint64
	End   uint64
	Expr  Expr
}

// Contains reports whether pc falls inside the range.
func (r Range) Contains(pc uint64) bool {
	return pc >= r.Start && pc < r.End
}

// Location is either a single expression or, when Ranges is non-nil, a
// PC-dependent location list.
type Location struct {
	Expr   Expr
	Ranges []Range
}

// IsList reports whether l is a location list.
func (l Location) IsList() bool {
	return l.Ranges != nil
}

// At returns the expression valid at pc. Single expressions are valid
// everywhere.
func (l Location) At(pc uint64) (Expr, bool) {
	if !l.IsList() {
		return l.Expr, true
	}
	for _, r := range l.Ranges {
		if r.Contains(pc) {
			return r.Expr, true
		}
	}
	return Expr{}, false
}

// Narrow keeps only the ranges covering pc. A list that does not cover pc
// becomes empty but stays a list.
func (l Location) Narrow(pc uint64) Location {
	if !l.IsList() {
		return l
	}
	out := Location{Ranges: []Range{}}
	for _, r := range l.Ranges {
		if r.Contains(pc) {
			out.Ranges = append(out.Ranges, r)
		}
	}
	return out
}
