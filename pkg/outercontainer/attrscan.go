package outercontainer

import "strings"

// openTag is a parsed `<name attr="value" ...>` or self-closing
// `<name attr="value" .../>` start tag.
type openTag struct {
	Name        string
	Attrs       map[string]string
	SelfClosing bool
	// Len is the number of bytes consumed from the scanned string,
	// including the trailing '>'.
	Len int
}

// parseOpenTag parses one open tag starting at s[0] == '<'. ok is false
// when s does not yet contain a complete tag (more data may be needed) or
// s does not start a tag at all.
func parseOpenTag(s string) (tag openTag, ok bool) {
	if len(s) == 0 || s[0] != '<' {
		return openTag{}, false
	}
	i := 1
	nameStart := i
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	if i == nameStart {
		return openTag{}, false
	}
	name := s[nameStart:i]
	attrs := map[string]string{}
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return openTag{}, false
		}
		if s[i] == '/' {
			if i+1 < len(s) && s[i+1] == '>' {
				return openTag{Name: name, Attrs: attrs, SelfClosing: true, Len: i + 2}, true
			}
			return openTag{}, false
		}
		if s[i] == '>' {
			return openTag{Name: name, Attrs: attrs, Len: i + 1}, true
		}
		attrNameStart := i
		for i < len(s) && isNameChar(s[i]) {
			i++
		}
		if i == attrNameStart {
			return openTag{}, false
		}
		attrName := s[attrNameStart:i]
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return openTag{}, false
		}
		if s[i] != '=' {
			attrs[attrName] = ""
			continue
		}
		i++
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != '"' {
			return openTag{}, false
		}
		i++
		valStart := i
		for i < len(s) && s[i] != '"' {
			i++
		}
		if i >= len(s) {
			return openTag{}, false
		}
		attrs[attrName] = s[valStart:i]
		i++
	}
}

// matchClosingTag reports whether rest begins with `</name` optionally
// followed by whitespace and `>`. incomplete is true when rest is still a
// strict prefix of the closing tag (caller should wait for more text).
func matchClosingTag(rest, name string) (tagLen int, incomplete, matched bool) {
	sentinel := "</" + strings.ToLower(name)
	lower := strings.ToLower(rest)
	if len(lower) < len(sentinel) {
		if strings.HasPrefix(sentinel, lower) {
			return 0, true, false
		}
		return 0, false, false
	}
	if !strings.HasPrefix(lower, sentinel) {
		return 0, false, false
	}
	i := len(sentinel)
	for i < len(rest) && isSpace(rest[i]) {
		i++
	}
	if i >= len(rest) {
		return 0, true, false
	}
	if rest[i] != '>' {
		return 0, false, false
	}
	return i + 1, false, true
}

// scanTextElement looks for the earliest well-formed `</tagName>` (tolerant
// of interior whitespace before '>') in after, returning the text preceding
// it. Used for the `<name>T</name>` element, whose content is plain text,
// not nested markup.
func scanTextElement(after, tagName string) (value string, tagLen int, found bool) {
	lower := strings.ToLower(after)
	sentinel := "</" + strings.ToLower(tagName)
	from := 0
	for {
		idx := strings.Index(lower[from:], sentinel)
		if idx < 0 {
			return "", 0, false
		}
		abs := from + idx
		k := abs + len(sentinel)
		for k < len(after) && isSpace(after[k]) {
			k++
		}
		if k < len(after) && after[k] == '>' {
			return after[:abs], k + 1, true
		}
		from = abs + 1
		if from >= len(after) {
			return "", 0, false
		}
	}
}

func isNameChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isCallAlias(name string) bool {
	switch strings.ToLower(name) {
	case "call", "function", "tool", "invoke":
		return true
	default:
		return false
	}
}
