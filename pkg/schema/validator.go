// Package schema wraps a JSON-schema-shaped map with the small set of
// query helpers the tool-call transducer needs: looking up declared
// properties, checking whether a property is array-typed (for element-XML
// repeated-tag coercion, spec.md §4.5), and checking whether unknown keys
// are allowed (for the arguments-only heuristic, spec.md §4.9).
//
// Trimmed from the teacher's pkg/schema/validator.go: the struct-tag-based
// Validator (StructValidator/SimpleStructSchema, reflect-driven) is dropped
// entirely — nothing in this system maps Go structs to schemas, every tool
// descriptor carries a JSON-schema map already.
package schema

// JSONSchema wraps a JSON-schema-shaped map (as would be sent to a model
// provider) with read-only query helpers.
type JSONSchema struct {
	raw map[string]interface{}
}

// New wraps a raw JSON Schema map. A nil map is treated as an empty,
// permissive object schema.
func New(raw map[string]interface{}) JSONSchema {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return JSONSchema{raw: raw}
}

// Raw returns the underlying map.
func (s JSONSchema) Raw() map[string]interface{} { return s.raw }

// Properties returns the schema's "properties" map, or nil if absent or
// not object-shaped.
func (s JSONSchema) Properties() map[string]interface{} {
	props, _ := s.raw["properties"].(map[string]interface{})
	return props
}

// HasProperty reports whether name is declared under "properties".
func (s JSONSchema) HasProperty(name string) bool {
	_, ok := s.Properties()[name]
	return ok
}

// IsArrayProperty reports whether the named property's schema declares
// type "array".
func (s JSONSchema) IsArrayProperty(name string) bool {
	prop, ok := s.Properties()[name].(map[string]interface{})
	if !ok {
		return false
	}
	t, _ := prop["type"].(string)
	return t == "array"
}

// AdditionalPropertiesFalse reports whether the schema explicitly forbids
// keys beyond "properties" (additionalProperties: false).
func (s JSONSchema) AdditionalPropertiesFalse() bool {
	v, ok := s.raw["additionalProperties"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && !b
}

// MatchesObjectKeys reports whether candidate's keys are compatible with
// this schema for the arguments-only heuristic (spec.md §4.9): at least one
// key must be a declared property, and if additionalProperties is false,
// every key must be declared.
func (s JSONSchema) MatchesObjectKeys(candidate map[string]interface{}) bool {
	props := s.Properties()
	if len(props) == 0 {
		return false
	}
	matched := false
	for k := range candidate {
		if _, ok := props[k]; ok {
			matched = true
		} else if s.AdditionalPropertiesFalse() {
			return false
		}
	}
	return matched
}
