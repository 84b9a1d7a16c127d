// Package jsonprefix projects a complete JSON value back down to a stable
// streaming prefix, and repairs incomplete JSON text into something the
// standard library can parse.
package jsonprefix

import (
	"strings"

	"github.com/lanehollow/toolstream/pkg/jsonparser"
)

// ToIncompleteJSONPrefix converts a complete, serialized JSON value into a
// prefix that is safe to reuse as a growing streaming delta.
//
// Given `{"a":"Seo"}` it returns `{"a":"Seo`: the trailing closers are
// stripped so that a later, longer value (e.g. `{"a":"Seoul"}`) still
// extends the previously emitted text. Given a bare literal like `true` or
// `42` it returns the input unchanged — there is nothing to strip.
func ToIncompleteJSONPrefix(full string) string {
	s := full
	for {
		s = strings.TrimRight(s, " \t\n\r")
		if s == "" {
			break
		}
		last := s[len(s)-1]
		switch last {
		case '}', ']':
			s = s[:len(s)-1]
			continue
		case '"':
			// Only strip a single trailing quote, and only once: a
			// string value's closing quote. A second pass must not eat
			// into the string's content.
			s = stripTrailingQuoteOnce(s)
		}
		break
	}

	s = strings.TrimRight(s, " \t\n\r")
	if s != "" {
		return s
	}

	return canonicalOpener(full)
}

// stripTrailingQuoteOnce removes exactly one trailing unescaped quote.
func stripTrailingQuoteOnce(s string) string {
	if s == "" || s[len(s)-1] != '"' {
		return s
	}
	// Count trailing backslashes immediately before the quote; an odd
	// count means the quote itself is escaped and not a real closer.
	i := len(s) - 2
	backslashes := 0
	for i >= 0 && s[i] == '\\' {
		backslashes++
		i--
	}
	if backslashes%2 == 1 {
		return s
	}
	return s[:len(s)-1]
}

// canonicalOpener returns the opening token matching full's leading
// non-whitespace character, per spec.md §4.2.
func canonicalOpener(full string) string {
	trimmed := strings.TrimLeft(full, " \t\n\r")
	if trimmed == "" {
		return "{"
	}
	switch trimmed[0] {
	case '{', '}':
		return "{"
	case '[', ']':
		return "["
	case '"':
		return "\""
	default:
		return "{"
	}
}

// RepairAndParse attempts to parse potentially incomplete JSON text,
// repairing it with jsonparser.FixJSON when a direct parse fails. It is a
// thin re-export of jsonparser.ParsePartialJSON; no package in this module
// calls it.
func RepairAndParse(text string) jsonparser.ParseResult {
	return jsonparser.ParsePartialJSON(text)
}
