package outercontainer

import "strings"

// paramOcc is one completed `<parameter name="K">V</parameter>` (or
// self-closing `<parameter name="K"/>`) occurrence.
type paramOcc struct {
	Key   string
	Value string
}

// scanParamElements walks body for completed `<parameter name="K">V</parameter>`
// / `<parameter name="K"/>` occurrences in document order, stopping at the
// first tag that is not a `<parameter ...>`. stopped reports whether such a
// stopping point was reached (stopPos is its byte offset, pointing at the
// first non-whitespace byte of whatever comes next — ordinarily the call's
// own closing tag); stopped is false when body runs out mid-tag or
// mid-value, meaning the caller should wait for more text.
func scanParamElements(body string) (closed []paramOcc, stopPos int, stopped bool) {
	pos := 0
	for {
		for pos < len(body) && isSpace(body[pos]) {
			pos++
		}
		if pos >= len(body) {
			return closed, pos, false
		}
		if body[pos] != '<' {
			return closed, pos, true
		}
		if pos+1 >= len(body) {
			return closed, pos, false
		}
		if body[pos+1] == '/' {
			// A closing tag (</parameter>, </call>, </tool_call>, ...):
			// parseOpenTag never matches these (its name scan starts right
			// after '<' and '/' isn't a name character), so recognize the
			// stop here rather than misreading it as an incomplete open tag.
			return closed, pos, true
		}
		tag, ok := parseOpenTag(body[pos:])
		if !ok {
			return closed, pos, false
		}
		if !strings.EqualFold(tag.Name, "parameter") {
			return closed, pos, true
		}
		key := tag.Attrs["name"]
		tagEnd := pos + tag.Len
		if tag.SelfClosing {
			closed = append(closed, paramOcc{Key: key, Value: ""})
			pos = tagEnd
			continue
		}
		lowerRest := strings.ToLower(body[tagEnd:])
		const closeSentinel = "</parameter"
		ci := indexCloseSentinel(lowerRest, closeSentinel)
		if ci < 0 {
			return closed, pos, false
		}
		value := body[tagEnd : tagEnd+ci]
		after := tagEnd + ci + len(closeSentinel)
		gt := strings.IndexByte(body[after:], '>')
		if gt < 0 {
			return closed, pos, false
		}
		closed = append(closed, paramOcc{Key: key, Value: strings.TrimSpace(value)})
		pos = after + gt + 1
	}
}

// indexCloseSentinel finds the earliest occurrence of sentinel (e.g.
// "</parameter") in lowerRest that is immediately followed by optional
// whitespace and then '>', retrying past any occurrence that fails that
// check (e.g. "</parameters>" is not a match for "</parameter").
func indexCloseSentinel(lowerRest, sentinel string) int {
	from := 0
	for {
		idx := strings.Index(lowerRest[from:], sentinel)
		if idx < 0 {
			return -1
		}
		abs := from + idx
		k := abs + len(sentinel)
		for k < len(lowerRest) && isSpace(lowerRest[k]) {
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
