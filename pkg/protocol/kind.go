// Package protocol defines the shared enum and factory contract the five
// wire-format parsers (tagged-JSON, element-XML, YAML-in-XML, shorthand-XML,
// outer-container) all implement, so a host can select one by name without
// importing any parser package directly (spec.md §9: "model as a small enum
// of protocol kinds or an interface with five concrete implementations").
//
// Grounded on the teacher's pkg/provider kind-enum pattern (small string-typed
// enums with a package-level registry), adapted here into a protocol registry
// instead of a provider registry.
package protocol

import (
	"fmt"

	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// Kind identifies one of the five supported tool-call wire protocols.
type Kind string

const (
	TaggedJSON     Kind = "tagged-json"
	ElementXML     Kind = "element-xml"
	YAMLInXML      Kind = "yaml-in-xml"
	ShorthandXML   Kind = "shorthand-xml"
	OuterContainer Kind = "outer-container"
)

// Descriptor describes one registered protocol: its kind, a human-readable
// name, and the factory that builds a fresh Transducer for it.
type Descriptor struct {
	Kind Kind
	Name string

	// New constructs a fresh Transducer bound to tools and opts. Called once
	// per stream; the returned Transducer owns its own mutable state.
	New func(tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) toolstream.Transducer
}

var registry = map[Kind]Descriptor{}

// Register adds a protocol descriptor to the package registry. Called from
// each protocol package's init, so importing a protocol package for side
// effect is enough to make it available to Lookup/New without the protocol
// package itself importing any of the five parser packages (which would be
// a cycle: each parser package imports protocol for Kind).
func Register(d Descriptor) {
	registry[d.Kind] = d
}

// Lookup returns the descriptor registered for kind, or false if none has
// been registered (the caller forgot to import the parser package).
func Lookup(kind Kind) (Descriptor, bool) {
	d, ok := registry[kind]
	return d, ok
}

// New constructs a fresh Transducer for kind using its registered factory.
func New(kind Kind, tools []toolstream.ToolDescriptor, opts toolstream.ParserOptions) (toolstream.Transducer, error) {
	d, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("protocol: no parser registered for kind %q", kind)
	}
	return d.New(tools, opts), nil
}

// Kinds returns every currently-registered protocol kind, in a fixed
// canonical order, for hosts that want to present a selection list.
func Kinds() []Kind {
	all := []Kind{TaggedJSON, ElementXML, YAMLInXML, ShorthandXML, OuterContainer}
	out := make([]Kind, 0, len(all))
	for _, k := range all {
		if _, ok := registry[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
