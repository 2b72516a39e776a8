// Package jsonscan pulls individual fields out of JSON-shaped text by
// scanning for delimiters. It is deliberately not a parser: there is no
// grammar, no escape-sequence decoding, and no notion of nesting beyond
// what Objects pre-slices. Callers working with nested structures must
// bound the substring to the relevant object before extracting.
package jsonscan

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Value returns the raw span of the first occurrence of key, and whether
// the key was found at all. String values are returned without their
// surrounding quotes; the span of an unquoted value runs to the next ','
// or '}'. A quoted value containing an escaped quote is cut short at the
// backslash; the scanner does not process escapes.
func Value(text, key string) (string, bool) {
	keyPos := strings.Index(text, `"`+key+`"`)
	if keyPos < 0 {
		return "", false
	}
	colon := strings.IndexByte(text[keyPos:], ':')
	if colon < 0 {
		return "", false
	}
	start := keyPos + colon + 1
	for start < len(text) && (text[start] == ' ' || text[start] == '\t') {
		start++
	}
	if start >= len(text) {
		return "", false
	}
	if text[start] == '"' {
		start++
		end := strings.IndexByte(text[start:], '"')
		if end < 0 {
			return strings.TrimSpace(text[start:]), true
		}
		return text[start : start+end], true
	}
	end := strings.IndexAny(text[start:], ",}")
	if end < 0 {
		return strings.TrimSpace(text[start:]), true
	}
	return strings.TrimSpace(text[start : start+end]), true
}

// String returns the field's value with quotes stripped, or "" when the
// key is absent. An empty result is ambiguous with an empty string value;
// callers that need to distinguish use Value.
func String(text, key string) string {
	v, _ := Value(text, key)
	return v
}

// Float parses the field as a number. ok reports whether the key was
// present and parseable, so a missing field is distinguishable from a
// genuine zero.
func Float(text, key string) (float64, bool) {
	v, ok := Value(text, key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FloatOr is the best-effort form of Float: absent or unparsable fields
// collapse to the fallback. Callers must treat a fallback of 0 as
// ambiguous with a genuine zero value.
func FloatOr(text, key string, fallback float64) float64 {
	f, ok := Float(text, key)
	if !ok {
		return fallback
	}
	return f
}

// Decimal parses the field as an exact decimal, quoted or not.
func Decimal(text, key string) (decimal.Decimal, bool) {
	v, ok := Value(text, key)
	if !ok || v == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DecimalOr is the best-effort form of Decimal.
func DecimalOr(text, key string, fallback decimal.Decimal) decimal.Decimal {
	d, ok := Decimal(text, key)
	if !ok {
		return fallback
	}
	return d
}

// Int parses the field as an integer, truncating a fractional part.
func Int(text, key string) (int, bool) {
	f, ok := Float(text, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool reports whether the field's value is the literal "true". An absent
// field reads as false.
func Bool(text, key string) bool {
	v, _ := Value(text, key)
	return v == "true"
}

// Has reports whether the key occurs in the text at all.
func Has(text, key string) bool {
	_, ok := Value(text, key)
	return ok
}

// Objects splits the JSON array named arrayKey into its top-level object
// elements by counting braces, so each element can be scanned in
// isolation. Nested objects and arrays inside an element stay part of
// that element. Returns nil when the array is absent.
func Objects(text, arrayKey string) []string {
	arrPos := strings.Index(text, `"`+arrayKey+`":[`)
	if arrPos < 0 {
		arrPos = strings.Index(text, `"`+arrayKey+`": [`)
		if arrPos < 0 {
			return nil
		}
	}
	rest := text[arrPos:]
	open := strings.IndexByte(rest, '[')
	if open < 0 {
		return nil
	}
	var out []string
	i := open + 1
	for i < len(rest) {
		switch rest[i] {
		case ']':
			return out
		case '{':
			end, ok := matchBrace(rest, i)
			if !ok {
				return out
			}
			out = append(out, rest[i:end+1])
			i = end + 1
		default:
			i++
		}
	}
	return out
}

// TopLevelObjects splits a bare JSON array into its object elements, for
// responses whose whole body is an array. Leading whitespace before the
// opening bracket is tolerated. Returns nil when text is not an array.
func TopLevelObjects(text string) []string {
	open := strings.IndexByte(text, '[')
	if open < 0 || strings.TrimSpace(text[:open]) != "" {
		return nil
	}
	var out []string
	i := open + 1
	for i < len(text) {
		switch text[i] {
		case ']':
			return out
		case '{':
			end, ok := matchBrace(text, i)
			if !ok {
				return out
			}
			out = append(out, text[i:end+1])
			i = end + 1
		default:
			i++
		}
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start,
// skipping quoted strings so braces inside values do not miscount.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
