// Package sanitize recovers structured JSON from raw model output. Model
// responses are frequently wrapped in markdown fences, padded with prose,
// or carry small syntax defects; the repair chain here applies fixes in
// order of increasing aggressiveness and stops at the first strict parse
// success, so already-valid JSON is never touched.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// excerptLimit caps the diagnostic excerpt carried by MalformedError.
const excerptLimit = 2000

// MalformedError means no recoverable JSON object was found after every
// repair stage. Excerpt holds the head of the original response text.
type MalformedError struct {
	Excerpt string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("sanitize: no recoverable JSON object in response (excerpt: %.120s...)", e.Excerpt)
}

// Parse decodes the raw model response into v, applying the repair chain:
//
//  1. strict parse of the full text
//  2. strict parse of a fenced code block body
//  3. strict parse of the first-'{' to last-'}' substring
//  4. strict parse after trailing-comma removal and raw-newline escaping
//
// Failure of all four stages returns a *MalformedError.
func Parse(raw string, v any) error {
	text := strings.TrimSpace(raw)

	if tryParse(text, v) {
		return nil
	}

	if body, ok := unfence(text); ok && tryParse(body, v) {
		return nil
	}

	candidate := largestObject(text)
	if candidate == "" {
		return malformed(raw)
	}
	if tryParse(candidate, v) {
		return nil
	}

	repaired := escapeRawNewlines(stripTrailingCommas(candidate))
	if tryParse(repaired, v) {
		return nil
	}

	return malformed(raw)
}

func malformed(raw string) error {
	ex := raw
	if len(ex) > excerptLimit {
		ex = ex[:excerptLimit]
	}
	return &MalformedError{Excerpt: ex}
}

func tryParse(text string, v any) bool {
	return json.Unmarshal([]byte(text), v) == nil
}

// unfence extracts the body of a leading markdown code fence.
func unfence(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return "", false
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text), true
}

// largestObject returns the greedy first-'{' to last-'}' substring, or ""
// when the text contains no object at all.
func largestObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// stripTrailingCommas removes commas that sit (modulo whitespace) directly
// before a closing ']' or '}'. Commas inside string literals are left alone.
func stripTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == ']' || text[j] == '}') {
				continue // drop the comma; whitespace and closer follow
			}
		}

		b.WriteByte(ch)
	}
	return b.String()
}

// escapeRawNewlines replaces literal newline and carriage-return characters
// that appear inside string literals with their escape sequences.
func escapeRawNewlines(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(ch)
			case ch == '\\':
				escaped = true
				b.WriteByte(ch)
			case ch == '\n':
				b.WriteString(`\n`)
			case ch == '\r':
				b.WriteString(`\r`)
			case ch == '"':
				inString = false
				b.WriteByte(ch)
			default:
				b.WriteByte(ch)
			}
			continue
		}

		if ch == '"' {
			inString = true
		}
		b.WriteByte(ch)
	}
	return b.String()
}
