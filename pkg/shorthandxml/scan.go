package shorthandxml

import "strings"

// paramOcc is one completed <parameter=K>V</parameter> occurrence.
type paramOcc struct {
	Key   string
	Value string
}

// scanFunctionOpen looks for the earliest `<function=NAME>` or `<call=NAME>`
// marker (the legacy synonym, spec.md §4.7) in inner. It returns found=false
// whenever no complete marker is present yet; nothing is ever flushed as
// text while waiting, so there is no partial-sentinel leakage risk to guard
// against the way pkg/boundary does for the outer scan.
func scanFunctionOpen(inner string) (name string, bodyStart int, found bool) {
	lower := strings.ToLower(inner)
	const funcMarker = "<function="
	const callMarker = "<call="

	fIdx := strings.Index(lower, funcMarker)
	cIdx := strings.Index(lower, callMarker)
	idx, markerLen := fIdx, len(funcMarker)
	if idx < 0 || (cIdx >= 0 && cIdx < idx) {
		idx, markerLen = cIdx, len(callMarker)
	}
	if idx < 0 {
		return "", 0, false
	}
	after := inner[idx+markerLen:]
	gt := strings.IndexByte(after, '>')
	if gt < 0 {
		return "", 0, false
	}
	return after[:gt], idx + markerLen + gt + 1, true
}

// scanParams walks body (everything after `<function=NAME>` consumed so
// far) for completed `<parameter=K>V</parameter>` occurrences, in document
// order, stopping at the first `</function>` marker. VALUE is literal text
// that may itself contain '<' characters (spec.md §4.7): the scanner only
// ever looks for the literal marker strings `<parameter=` and `</function>`
// at the current scan position, never generic tag syntax, so a value like
// "How to use </tool> tag" passes through untouched.
func scanParams(body string) (closed []paramOcc, openKey, openText string, functionClosed bool, leftover string) {
	pos := 0
	for {
		rest := body[pos:]
		lower := strings.ToLower(rest)
		pIdx := strings.Index(lower, "<parameter=")
		fIdx := strings.Index(lower, "</function>")

		if fIdx >= 0 && (pIdx < 0 || fIdx < pIdx) {
			return closed, "", "", true, rest[fIdx+len("</function>"):]
		}
		if pIdx < 0 {
			return closed, "", "", false, ""
		}

		afterMarker := rest[pIdx+len("<parameter="):]
		gt := strings.IndexByte(afterMarker, '>')
		if gt < 0 {
			return closed, "", "", false, ""
		}
		key := afterMarker[:gt]
		valueStart := pIdx + len("<parameter=") + gt + 1
		valueRest := rest[valueStart:]
		vLower := strings.ToLower(valueRest)
		closeIdx := strings.Index(vLower, "</parameter>")
		if closeIdx < 0 {
			return closed, key, valueRest, false, ""
		}
		closed = append(closed, paramOcc{Key: key, Value: valueRest[:closeIdx]})
		pos += valueStart + closeIdx + len("</parameter>")
	}
}
