package jsonprefix

import (
	"encoding/json"
	"strings"
)

// OrderedObject is a JSON object serializer that preserves insertion order
// instead of the alphabetical order encoding/json imposes on map keys.
//
// The XML-family protocol parsers (element-XML, YAML-in-XML, shorthand-XML,
// outer-container) synthesize JSON objects from markup that has no native
// JSON text to borrow key order from, so they build the object field by
// field as children are discovered. Re-marshaling a map[string]interface{}
// at each progress step would re-sort keys alphabetically on every call,
// which can silently violate delta prefix-monotonicity (spec.md §3
// invariant 4) whenever a later-discovered key sorts before an
// already-emitted one. OrderedObject keeps insertion order so a prefix
// emitted after N children is always a byte-prefix of the serialization
// after N+1 children.
type OrderedObject struct {
	keys   []string
	values map[string]interface{}
}

// NewOrderedObject returns an empty OrderedObject.
func NewOrderedObject() *OrderedObject {
	return &OrderedObject{values: map[string]interface{}{}}
}

// Set assigns value to key, appending key to the insertion order the first
// time it is seen; a repeated Set on an existing key updates the value in
// place without moving its position.
func (o *OrderedObject) Set(key string, value interface{}) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Has reports whether key has been set.
func (o *OrderedObject) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Len returns the number of distinct keys set so far.
func (o *OrderedObject) Len() int { return len(o.keys) }

// Keys returns the keys in insertion order. The caller must not mutate the
// returned slice.
func (o *OrderedObject) Keys() []string { return o.keys }

// MarshalJSON implements json.Marshaler, writing fields in insertion order.
func (o *OrderedObject) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// ToJSON marshals the object to its string form.
func (o *OrderedObject) ToJSON() (string, error) {
	data, err := o.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
