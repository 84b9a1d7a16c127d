package yamlxml

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lanehollow/toolstream/pkg/toolstream"
)

// matchOpeningTag mirrors pkg/elementxml's tag matcher: the outer
// `<toolName>`/`<toolName/>` wrapper grammar is identical between the two
// protocols, only the body differs.
func matchOpeningTag(buf string, tools []toolstream.ToolDescriptor) (tool toolstream.ToolDescriptor, tagLen int, selfClosing, wait, matched bool) {
	lower := strings.ToLower(buf)
	for _, t := range tools {
		sentinel := "<" + strings.ToLower(t.Name)
		if len(lower) < len(sentinel) {
			if strings.HasPrefix(sentinel, lower) {
				wait = true
			}
			continue
		}
		if !strings.HasPrefix(lower, sentinel) {
			continue
		}
		if len(buf) == len(sentinel) {
			wait = true
			continue
		}
		delim := buf[len(sentinel)]
		if delim != '>' && delim != '/' && delim != ' ' && delim != '\t' && delim != '\n' && delim != '\r' {
			continue
		}
		end := strings.IndexByte(buf[len(sentinel):], '>')
		if end < 0 {
			wait = true
			continue
		}
		endIdx := len(sentinel) + end
		self := endIdx > 0 && buf[endIdx-1] == '/'
		return t, endIdx + 1, self, false, true
	}
	return toolstream.ToolDescriptor{}, 0, false, wait, false
}

// indexTagClose finds closeTag (e.g. "</get_weather") in lowerRest, requiring
// it to be followed by optional whitespace and '>' so a longer tag name
// never false-matches a shorter search.
func indexTagClose(lowerRest, closeTag string) int {
	from := 0
	for {
		idx := strings.Index(lowerRest[from:], closeTag)
		if idx < 0 {
			return -1
		}
		abs := from + idx
		k := abs + len(closeTag)
		for k < len(lowerRest) && (lowerRest[k] == ' ' || lowerRest[k] == '\t' || lowerRest[k] == '\n' || lowerRest[k] == '\r') {
			k++
		}
		if k < len(lowerRest) && lowerRest[k] == '>' {
			return abs
		}
		from = abs + 1
		if from >= len(lowerRest) {
			return -1
		}
	}
}

// parseStrict parses s as a single complete YAML document and returns its
// root mapping node. Anything other than a top-level mapping is rejected.
func parseStrict(s string) (*yaml.Node, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, false
	}
	if len(doc.Content) == 0 {
		// Empty body: a tool call with no arguments.
		empty := &yaml.Node{Kind: yaml.MappingNode}
		return empty, true
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, false
	}
	return root, true
}
