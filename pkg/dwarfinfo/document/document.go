// Package document defines the output document of an extraction: the
// collected locals and globals plus a table of struct layouts keyed by type
// name, and the codecs that write it as JSON, YAML or protobuf wire format.
package document

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/location"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/typeinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/variables"
)

// Document is the result of one or more extractions.
type Document struct {
	Locals  []VariableRecord      `json:"locals" yaml:"locals" jsonschema:"description=Variables owned by a function with a known address"`
	Globals []VariableRecord      `json:"globals" yaml:"globals" jsonschema:"description=File-scope variables and variables of address-less functions"`
	Types   map[string]TypeRecord `json:"types" yaml:"types" jsonschema:"description=Struct layouts keyed by canonical type name"`
}

// VariableRecord is one variable, parameter or constant.
type VariableRecord struct {
	Name     string       `json:"name" yaml:"name"`
	Type     string       `json:"type" yaml:"type"`
	Location LocationRepr `json:"location" yaml:"location"`
	// Function is the entry address of the enclosing function.
	Function          *uint64 `json:"function,omitempty" yaml:"function,omitempty"`
	Source            string  `json:"source,omitempty" yaml:"source,omitempty" jsonschema:"description=path:line[:column]"`
	IsFormalParameter bool    `json:"isFormalParameter" yaml:"isFormalParameter"`
}

// TypeRecord is the layout of one struct, class or union.
type TypeRecord struct {
	Size uint64 `json:"size" yaml:"size"`
	// Hash fingerprints the field layout so documents can be compared without
	// walking the fields.
	Hash   string        `json:"hash,omitempty" yaml:"hash,omitempty"`
	Fields []FieldRecord `json:"fields" yaml:"fields"`
}

// FieldRecord is one member of a TypeRecord. Offsets and sizes that could not
// be determined hold typeinfo.UnknownOffset and typeinfo.UnknownSize.
type FieldRecord struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
	Type   string `json:"type" yaml:"type"`
}

// New returns an empty document.
func New() *Document {
	return &Document{
		Locals:  []VariableRecord{},
		Globals: []VariableRecord{},
		Types:   map[string]TypeRecord{},
	}
}

// Len returns the number of variable records.
func (d *Document) Len() int {
	return len(d.Locals) + len(d.Globals)
}

// AddUnit appends the variables collected from one compilation unit and
// tabulates the structs of its type cache. types may be nil. It returns the
// names of structs whose layout disagrees with one already in the table.
func (d *Document) AddUnit(res variables.Result, types *typeinfo.Cache) []string {
	for _, v := range res.Locals {
		d.Locals = append(d.Locals, FromVariable(v))
	}
	for _, v := range res.Globals {
		d.Globals = append(d.Globals, FromVariable(v))
	}
	if types == nil {
		return nil
	}

	var conflicts []string
	for _, t := range types.Structs() {
		if d.addType(t.Name, FromType(t)) {
			conflicts = append(conflicts, t.Name)
		}
	}
	return conflicts
}

// Merge appends other into d. Types merge by name; on a layout mismatch the
// record already in d wins and the name is reported. Conflicts are returned
// sorted.
func (d *Document) Merge(other *Document) []string {
	if other == nil {
		return nil
	}
	d.Locals = append(d.Locals, other.Locals...)
	d.Globals = append(d.Globals, other.Globals...)

	var conflicts []string
	for name, rec := range other.Types {
		if d.addType(name, rec) {
			conflicts = append(conflicts, name)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// structRef matches a struct name inside a rendered type such as
// struct0000002e*[4] or void(struct0000002e*).
var structRef = regexp.MustCompile(`\bstruct[0-9a-f]{8,}\b`)

// Namespaced returns a copy of d with prefix put in front of every struct
// name: the type table keys and every variable or field type that refers to
// one. Layout hashes are left unchanged.
func (d *Document) Namespaced(prefix string) *Document {
	rename := func(typ string) string {
		return structRef.ReplaceAllString(typ, prefix+"$0")
	}
	renameVars := func(vars []VariableRecord) []VariableRecord {
		out := make([]VariableRecord, len(vars))
		for i, v := range vars {
			v.Type = rename(v.Type)
			out[i] = v
		}
		return out
	}

	out := &Document{
		Locals:  renameVars(d.Locals),
		Globals: renameVars(d.Globals),
		Types:   make(map[string]TypeRecord, len(d.Types)),
	}
	for name, rec := range d.Types {
		fields := make([]FieldRecord, len(rec.Fields))
		for i, f := range rec.Fields {
			f.Type = rename(f.Type)
			fields[i] = f
		}
		rec.Fields = fields
		out.Types[rename(name)] = rec
	}
	return out
}

func (d *Document) addType(name string, rec TypeRecord) bool {
	if d.Types == nil {
		d.Types = map[string]TypeRecord{}
	}
	prev, ok := d.Types[name]
	if !ok {
		d.Types[name] = rec
		return false
	}
	return prev.Hash != rec.Hash
}

// normalize replaces nil collections left by decoders with empty ones.
func (d *Document) normalize() {
	if d.Locals == nil {
		d.Locals = []VariableRecord{}
	}
	if d.Globals == nil {
		d.Globals = []VariableRecord{}
	}
	if d.Types == nil {
		d.Types = map[string]TypeRecord{}
	}
	for name, rec := range d.Types {
		if rec.Fields == nil {
			rec.Fields = []FieldRecord{}
			d.Types[name] = rec
		}
	}
}

// FromVariable converts a collected variable.
func FromVariable(v variables.Variable) VariableRecord {
	rec := VariableRecord{
		Name:              v.Name,
		Type:              v.Type.String(),
		Location:          FromLocation(v.Location),
		Source:            v.Source.String(),
		IsFormalParameter: v.IsParameter,
	}
	if v.Function != nil && v.Function.Address != 0 {
		addr := v.Function.Address
		rec.Function = &addr
	}
	return rec
}

// FromLocation converts a decoded location.
func FromLocation(l location.Location) LocationRepr {
	if !l.IsList() {
		return LocationRepr{Text: l.Expr.String()}
	}
	ranges := make([]RangeRecord, 0, len(l.Ranges))
	for _, r := range l.Ranges {
		ranges = append(ranges, RangeRecord{Start: r.Start, End: r.End, Location: r.Expr.String()})
	}
	return LocationRepr{Ranges: ranges}
}

// FromType converts a resolved struct type.
func FromType(t *typeinfo.Type) TypeRecord {
	rec := TypeRecord{Size: t.Size, Fields: make([]FieldRecord, 0, len(t.Fields))}
	for _, f := range t.Fields {
		size := typeinfo.UnknownSize
		if f.Type != nil {
			size = f.Type.Size
		}
		rec.Fields = append(rec.Fields, FieldRecord{
			Name:   f.Name,
			Offset: f.Offset,
			Size:   size,
			Type:   f.Type.String(),
		})
	}
	rec.Hash = LayoutHash(rec)
	return rec
}

// LayoutHash fingerprints the size and the offset, size and type name of every
// field. Field names do not take part.
func LayoutHash(rec TypeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", rec.Size)
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, ";%d:%d:%s", f.Offset, f.Size, f.Type)
	}
	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}
