package elementxml

import "strings"

// childOcc is one occurrence of a child element inside a tool's body.
type childOcc struct {
	Key   string
	Value string
}

// scanChildren walks inner (the raw text between a tool's opening and, if
// present, closing tag) and returns every fully-closed or self-closing
// child element in order, plus the name and partial text of a still-open
// trailing child, if any (spec.md §4.5's streaming progress rules).
// Attributes on any tag are tolerated and discarded (spec.md §9's open
// question: ignore, never surface as keys).
func scanChildren(inner string) (closed []childOcc, openKey, openText string, openIncomplete bool) {
	pos := 0
	for pos < len(inner) {
		if inner[pos] != '<' {
			pos++
			continue
		}
		nameStart := pos + 1
		j := nameStart
		for j < len(inner) && isNameChar(inner[j]) {
			j++
		}
		if j == nameStart {
			// "<" followed by something that isn't a name char (e.g. "</").
			// Not a child open tag at this position; skip past it.
			pos++
			continue
		}
		name := inner[nameStart:j]

		closeAngle := strings.IndexByte(inner[j:], '>')
		if closeAngle < 0 {
			openKey, openText, openIncomplete = "", "", true
			return closed, openKey, openText, openIncomplete
		}
		tagEnd := j + closeAngle
		selfClosing := tagEnd > j && inner[tagEnd-1] == '/'
		pos = tagEnd + 1

		if selfClosing {
			closed = append(closed, childOcc{Key: name, Value: ""})
			continue
		}

		closeTag := "</" + strings.ToLower(name)
		lowerRest := strings.ToLower(inner[pos:])
		ci := indexTagClose(lowerRest, closeTag)
		if ci < 0 {
			openKey = name
			openText = strings.TrimSpace(inner[pos:])
			openIncomplete = true
			return closed, openKey, openText, openIncomplete
		}
		value := strings.TrimSpace(inner[pos : pos+ci])
		closed = append(closed, childOcc{Key: name, Value: value})

		after := pos + ci + len(closeTag)
		gt := strings.IndexByte(inner[after:], '>')
		if gt < 0 {
			return closed, "", "", false
		}
		pos = after + gt + 1
	}
	return closed, "", "", false
}

// indexTagClose finds closeTag (e.g. "</location") in lowerRest, requiring
// it to be followed by optional whitespace and '>' so that "</locationx"
// never matches a search for "</location".
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

func isNameChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
