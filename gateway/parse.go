package gateway

import (
	"encoding/json"
	"strings"
	"unicode"
)

const fence = "```"

// StripFences removes a Markdown code fence (with an optional language tag
// such as "json") around text. Text without a fence is returned trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceTag(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// ParseStructured decodes a structured value from a completion. It tries the
// fence-stripped text first, then the outermost {...} or [...] span to skip
// leading or trailing prose. JSON null does not count as a structured value.
func ParseStructured(text string) (any, bool) {
	candidate := StripFences(text)
	if v, ok := decode(candidate); ok {
		return v, true
	}
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		open := strings.IndexByte(candidate, pair[0])
		closing := strings.LastIndexByte(candidate, pair[1])
		if open < 0 || closing <= open {
			continue
		}
		if v, ok := decode(candidate[open : closing+1]); ok {
			return v, true
		}
	}
	return nil, false
}

func decode(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}
