package yamlxml

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lanehollow/toolstream/pkg/jsonprefix"
)

// completeLines splits text into newline-terminated lines, dropping a
// final fragment that has not yet seen its terminating "\n" — spec.md
// §4.6's "tokens that currently parse as plain scalars whose text is
// unterminated are treated as unstable" rule, applied uniformly to
// whatever kind of line is still being typed.
func completeLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	return lines
}

// isUnstableTrailingLine reports whether line, as the last line of an
// otherwise-complete buffer, represents one of spec.md §4.6's named
// unstable constructs: a bare mapping key with no value yet, a bare
// sequence item marker with no value yet, or a block scalar header whose
// content hasn't started.
func isUnstableTrailingLine(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, ":") {
		return true
	}
	if t == "-" {
		return true
	}
	switch {
	case strings.HasSuffix(t, "|"), strings.HasSuffix(t, ">"),
		strings.HasSuffix(t, "|-"), strings.HasSuffix(t, "|+"),
		strings.HasSuffix(t, ">-"), strings.HasSuffix(t, ">+"):
		return true
	}
	return false
}

// stableYAMLPrefix implements spec.md §4.6's retry loop: starting from the
// full set of newline-terminated lines, drop the trailing line whenever it
// is a named-unstable construct or the whole remainder fails to parse, and
// retry, until a clean parse is found or no lines remain.
func stableYAMLPrefix(text string) (*yaml.Node, bool) {
	lines := completeLines(text)
	for len(lines) > 0 {
		last := lines[len(lines)-1]
		if isUnstableTrailingLine(last) {
			lines = lines[:len(lines)-1]
			continue
		}
		joined := strings.Join(lines, "")
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(joined), &doc); err == nil && len(doc.Content) > 0 {
			root := doc.Content[0]
			if root.Kind == yaml.MappingNode {
				return root, true
			}
		}
		lines = lines[:len(lines)-1]
	}
	return nil, false
}

// nodeToValue converts a parsed YAML node into a value jsonprefix can
// serialize: nested mappings become *jsonprefix.OrderedObject (preserving
// document key order), sequences become []interface{}, and every scalar
// leaf is kept as its literal string form — spec.md §4.5's "numeric/
// boolean strings are preserved as strings at parse time" rule, carried
// over unchanged to YAML leaves.
func nodeToValue(n *yaml.Node) interface{} {
	switch n.Kind {
	case yaml.MappingNode:
		obj := jsonprefix.NewOrderedObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			obj.Set(n.Content[i].Value, nodeToValue(n.Content[i+1]))
		}
		return obj
	case yaml.SequenceNode:
		out := make([]interface{}, len(n.Content))
		for i, c := range n.Content {
			out[i] = nodeToValue(c)
		}
		return out
	case yaml.AliasNode:
		if n.Alias != nil {
			return nodeToValue(n.Alias)
		}
		return ""
	default:
		return n.Value
	}
}
