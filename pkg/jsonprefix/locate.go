package jsonprefix

// LocateTopLevelValue scans objText (expected to begin, after whitespace,
// with `{`) for the first top-level occurrence of `"key":` and returns the
// raw text span of its value, unparsed.
//
// This exists so the tagged-JSON protocol parser (spec.md §4.4) can derive
// its streaming progress candidate directly from the model's own raw
// "arguments" text — a literal substring, in the model's original key
// order and formatting — rather than decoding into a Go map and
// re-marshaling it (which would alphabetize keys and risk breaking delta
// prefix-monotonicity, see OrderedObject's doc comment). complete reports
// whether the value's closing terminator (matching brace/bracket/quote, or
// a following comma/`}` for a bare literal) was found before objText ran
// out; found reports whether the key was located at all.
func LocateTopLevelValue(objText, key string) (value string, complete bool, found bool) {
	i := skipWhitespace(objText, 0)
	if i >= len(objText) || objText[i] != '{' {
		return "", false, false
	}
	i++

	for i < len(objText) {
		i = skipWhitespace(objText, i)
		if i >= len(objText) {
			return "", false, false
		}
		if objText[i] == '}' {
			return "", false, false
		}
		if objText[i] != '"' {
			return "", false, false
		}
		keyStart := i
		keyEnd, ok := scanString(objText, keyStart)
		if !ok {
			return "", false, false
		}
		candidateKey := objText[keyStart+1 : keyEnd-1]

		i = skipWhitespace(objText, keyEnd)
		if i >= len(objText) || objText[i] != ':' {
			return "", false, false
		}
		i++
		i = skipWhitespace(objText, i)
		if i >= len(objText) {
			return "", false, false
		}

		valStart := i
		valEnd, _, ok := scanValueSpan(objText, valStart)
		isTarget := candidateKey == key
		if !ok {
			if isTarget {
				return objText[valStart:], false, true
			}
			return "", false, false
		}
		if isTarget {
			return objText[valStart:valEnd], true, true
		}

		i = skipWhitespace(objText, valEnd)
		if i >= len(objText) || objText[i] != ',' {
			return "", false, false
		}
		i++
	}
	return "", false, false
}

func skipWhitespace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// scanString returns the index just past the closing quote of the string
// starting at s[start] (which must be '"'). ok is false if the string is
// unterminated within s.
func scanString(s string, start int) (end int, ok bool) {
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1, true
		}
		i++
	}
	return len(s), false
}

// scanValueSpan returns the end offset of the JSON value starting at
// s[start] and how it terminated. ok is false if the value runs off the end
// of s before a terminator is found (an in-progress value).
func scanValueSpan(s string, start int) (end int, term byte, ok bool) {
	if start >= len(s) {
		return start, 0, false
	}
	switch s[start] {
	case '"':
		e, ok := scanString(s, start)
		return e, '"', ok
	case '{', '[':
		open := s[start]
		closer := byte('}')
		if open == '[' {
			closer = ']'
		}
		depth := 1
		i := start + 1
		inString := false
		for i < len(s) {
			c := s[i]
			if inString {
				if c == '\\' {
					i += 2
					continue
				}
				if c == '"' {
					inString = false
				}
				i++
				continue
			}
			switch c {
			case '"':
				inString = true
			case open:
				depth++
			case closer:
				depth--
				if depth == 0 {
					return i + 1, closer, true
				}
			}
			i++
		}
		return len(s), 0, false
	default:
		// Bare literal (number, true, false, null): ends at the next
		// structural character.
		i := start
		for i < len(s) {
			switch s[i] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return i, 0, true
			}
			i++
		}
		return len(s), 0, false
	}
}
