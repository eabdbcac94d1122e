package document

import (
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of document.proto.
const (
	docLocals  protowire.Number = 1
	docGlobals protowire.Number = 2
	docTypes   protowire.Number = 3

	varName              protowire.Number = 1
	varType              protowire.Number = 2
	varLocation          protowire.Number = 3
	varFunction          protowire.Number = 4
	varSource            protowire.Number = 5
	varIsFormalParameter protowire.Number = 6

	locText   protowire.Number = 1
	locRanges protowire.Number = 2

	rangeListRanges protowire.Number = 1

	rangeStart    protowire.Number = 1
	rangeEnd      protowire.Number = 2
	rangeLocation protowire.Number = 3

	mapKey   protowire.Number = 1
	mapValue protowire.Number = 2

	typeSize   protowire.Number = 1
	typeHash   protowire.Number = 2
	typeFields protowire.Number = 3

	fieldName   protowire.Number = 1
	fieldOffset protowire.Number = 2
	fieldSize   protowire.Number = 3
	fieldType   protowire.Number = 4
)

func appendDocument(b []byte, d *Document) []byte {
	for _, v := range d.Locals {
		b = appendMessage(b, docLocals, appendVariable(nil, v))
	}
	for _, v := range d.Globals {
		b = appendMessage(b, docGlobals, appendVariable(nil, v))
	}

	names := make([]string, 0, len(d.Types))
	for name := range d.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var entry []byte
		entry = appendString(entry, mapKey, name)
		entry = appendMessage(entry, mapValue, appendType(nil, d.Types[name]))
		b = appendMessage(b, docTypes, entry)
	}
	return b
}

func appendVariable(b []byte, v VariableRecord) []byte {
	b = appendString(b, varName, v.Name)
	b = appendString(b, varType, v.Type)
	b = appendMessage(b, varLocation, appendLocation(nil, v.Location))
	if v.Function != nil {
		b = protowire.AppendTag(b, varFunction, protowire.VarintType)
		b = protowire.AppendVarint(b, *v.Function)
	}
	b = appendString(b, varSource, v.Source)
	if v.IsFormalParameter {
		b = protowire.AppendTag(b, varIsFormalParameter, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}

// appendLocation writes the oneof: the chosen member is emitted even when
// empty so that an empty list stays a list.
func appendLocation(b []byte, l LocationRepr) []byte {
	if !l.IsList() {
		b = protowire.AppendTag(b, locText, protowire.BytesType)
		return protowire.AppendString(b, l.Text)
	}
	var list []byte
	for _, r := range l.Ranges {
		var rb []byte
		rb = appendUint(rb, rangeStart, r.Start)
		rb = appendUint(rb, rangeEnd, r.End)
		rb = appendString(rb, rangeLocation, r.Location)
		list = appendMessage(list, rangeListRanges, rb)
	}
	return appendMessage(b, locRanges, list)
}

func appendType(b []byte, t TypeRecord) []byte {
	b = appendUint(b, typeSize, t.Size)
	b = appendString(b, typeHash, t.Hash)
	for _, f := range t.Fields {
		var fb []byte
		fb = appendString(fb, fieldName, f.Name)
		fb = appendUint(fb, fieldOffset, f.Offset)
		fb = appendUint(fb, fieldSize, f.Size)
		fb = appendString(fb, fieldType, f.Type)
		b = appendMessage(b, typeFields, fb)
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// appendString and appendUint skip zero values as proto3 does.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// fieldFunc consumes the value of one field and returns the number of bytes
// used, 0 to have the field skipped, or a negative protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeDocument(b []byte, d *Document) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case docLocals, docGlobals:
			var v VariableRecord
			if err := consumeVariable(msg, &v); err != nil {
				return 0, err
			}
			if num == docLocals {
				d.Locals = append(d.Locals, v)
			} else {
				d.Globals = append(d.Globals, v)
			}
		case docTypes:
			name, t, err := consumeTypeEntry(msg)
			if err != nil {
				return 0, err
			}
			if d.Types == nil {
				d.Types = map[string]TypeRecord{}
			}
			d.Types[name] = t
		}
		return n, nil
	})
}

func consumeVariable(b []byte, v *VariableRecord) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == varName:
			return consumeString(typ, b, &v.Name), nil
		case num == varType:
			return consumeString(typ, b, &v.Type), nil
		case num == varSource:
			return consumeString(typ, b, &v.Source), nil
		case num == varFunction:
			var addr uint64
			n := consumeUint(typ, b, &addr)
			if n > 0 {
				v.Function = &addr
			}
			return n, nil
		case num == varIsFormalParameter:
			var flag uint64
			n := consumeUint(typ, b, &flag)
			v.IsFormalParameter = protowire.DecodeBool(flag)
			return n, nil
		case num == varLocation && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, consumeLocation(msg, &v.Location)
		}
		return 0, nil
	})
}

func consumeLocation(b []byte, l *LocationRepr) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case locText:
			var text string
			n := consumeString(typ, b, &text)
			*l = LocationRepr{Text: text}
			return n, nil
		case locRanges:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			ranges := []RangeRecord{}
			err := consumeMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != rangeListRanges || typ != protowire.BytesType {
					return 0, nil
				}
				rmsg, n := protowire.ConsumeBytes(b)
				if n < 0 {
					return n, nil
				}
				var r RangeRecord
				if err := consumeRange(rmsg, &r); err != nil {
					return 0, err
				}
				ranges = append(ranges, r)
				return n, nil
			})
			if err != nil {
				return 0, err
			}
			*l = LocationRepr{Ranges: ranges}
			return n, nil
		}
		return 0, nil
	})
}

func consumeRange(b []byte, r *RangeRecord) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case rangeStart:
			return consumeUint(typ, b, &r.Start), nil
		case rangeEnd:
			return consumeUint(typ, b, &r.End), nil
		case rangeLocation:
			return consumeString(typ, b, &r.Location), nil
		}
		return 0, nil
	})
}

func consumeTypeEntry(b []byte) (string, TypeRecord, error) {
	var (
		name string
		t    = TypeRecord{Fields: []FieldRecord{}}
	)
	err := consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == mapKey:
			return consumeString(typ, b, &name), nil
		case num == mapValue && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, consumeType(msg, &t)
		}
		return 0, nil
	})
	return name, t, err
}

func consumeType(b []byte, t *TypeRecord) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == typeSize:
			return consumeUint(typ, b, &t.Size), nil
		case num == typeHash:
			return consumeString(typ, b, &t.Hash), nil
		case num == typeFields && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var f FieldRecord
			err := consumeMessage(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case fieldName:
					return consumeString(typ, b, &f.Name), nil
				case fieldOffset:
					return consumeUint(typ, b, &f.Offset), nil
				case fieldSize:
					return consumeUint(typ, b, &f.Size), nil
				case fieldType:
					return consumeString(typ, b, &f.Type), nil
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			t.Fields = append(t.Fields, f)
			return n, nil
		}
		return 0, nil
	})
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	s, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = s
	}
	return n
}

func consumeUint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}
