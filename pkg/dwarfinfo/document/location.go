package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// RangeRecord is one entry of a location list.
type RangeRecord struct {
	Start    uint64 `json:"start" yaml:"start"`
	End      uint64 `json:"end" yaml:"end"`
	Location string `json:"location" yaml:"location"`
}

// LocationRepr is a rendered location: a plain description, or a list of
// PC ranges when Ranges is non-nil. It encodes as a string or an array.
type LocationRepr struct {
	Text   string
	Ranges []RangeRecord
}

// IsList reports whether l is the list form.
func (l LocationRepr) IsList() bool {
	return l.Ranges != nil
}

func (l LocationRepr) MarshalJSON() ([]byte, error) {
	if l.IsList() {
		return json.Marshal(l.Ranges)
	}
	return json.Marshal(l.Text)
}

func (l *LocationRepr) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		ranges := []RangeRecord{}
		if err := json.Unmarshal(data, &ranges); err != nil {
			return fmt.Errorf("location list: %w", err)
		}
		*l = LocationRepr{Ranges: ranges}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = LocationRepr{Text: text}
	return nil
}

func (l LocationRepr) MarshalYAML() (interface{}, error) {
	if l.IsList() {
		return l.Ranges, nil
	}
	return l.Text, nil
}

func (l *LocationRepr) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		ranges := []RangeRecord{}
		if err := value.Decode(&ranges); err != nil {
			return fmt.Errorf("location list: %w", err)
		}
		*l = LocationRepr{Ranges: ranges}
		return nil
	}
	var text string
	if err := value.Decode(&text); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = LocationRepr{Text: text}
	return nil
}

// JSONSchema describes the string-or-array encoding.
func (LocationRepr) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("start", &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")})
	props.Set("end", &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")})
	props.Set("location", &jsonschema.Schema{Type: "string"})

	return &jsonschema.Schema{
		Description: "Location description, or PC ranges for a location list",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{
				Type: "array",
				Items: &jsonschema.Schema{
					Type:       "object",
					Properties: props,
					Required:   []string{"start", "end", "location"},
				},
			},
		},
	}
}
