package tokko

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed property.schema.json
var propertySchemaJSON string

var propertySchema = jsonschema.MustCompileString("property.schema.json", propertySchemaJSON)

// Parse validates one raw API object and decodes it into a Property.
func Parse(raw json.RawMessage) (*Property, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	if err := propertySchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid property: %w", err)
	}

	var p Property
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	attrs, err := scalarAttributes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	p.Attributes = attrs
	return &p, nil
}

// PeekID extracts the identifier from an object that may not pass Parse,
// so failures can still be reported against it.
func PeekID(raw json.RawMessage) string {
	var head struct {
		ID stringNumber `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.ID.String()
}
