package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatProtobuf Format = "protobuf"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatJSON, FormatYAML, FormatProtobuf}

// ParseFormat accepts a format name, case-insensitively. "yml" and "proto"
// are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "protobuf", "proto", "pb":
		return FormatProtobuf, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: json, yaml, protobuf)", s)
	}
}

// Extension is appended to ".debuginfo" for per-file output. Protobuf output
// keeps the bare ".debuginfo" name.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ""
	}
}

// Marshal encodes d.
func Marshal(d *Document, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a document.
func Unmarshal(data []byte, f Format) (*Document, error) {
	return Decode(bytes.NewReader(data), f)
}

// Encode writes d to w.
func Encode(w io.Writer, d *Document, f Format) error {
	if d == nil {
		d = New()
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		// Type names such as <unknown> are not markup.
		enc.SetEscapeHTML(false)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode JSON document: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode YAML document: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode YAML document: %w", err)
		}
		return nil
	case FormatProtobuf:
		if _, err := w.Write(appendDocument(nil, d)); err != nil {
			return fmt.Errorf("failed to write protobuf document: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// Decode reads a document from r.
func Decode(r io.Reader, f Format) (*Document, error) {
	d := &Document{}
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(d); err != nil {
			return nil, fmt.Errorf("failed to decode JSON document: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(d); err != nil {
			return nil, fmt.Errorf("failed to decode YAML document: %w", err)
		}
	case FormatProtobuf:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read protobuf document: %w", err)
		}
		if err := consumeDocument(data, d); err != nil {
			return nil, fmt.Errorf("failed to decode protobuf document: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
	d.normalize()
	return d, nil
}

// Schema returns the JSON Schema of the document with every definition
// inlined.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := reflector.Reflect(&Document{})
	s.Title = "dwarf-type-reader document"
	return s
}
