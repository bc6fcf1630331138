package module

import (
	"encoding/json"
	"math"
	"strings"
)

// Raw is the untyped record returned by the generative service.
//
// Accessors never fail: a missing or mistyped field yields the documented
// fallback, so normalizers can be written as straight-line field mappings.
type Raw map[string]any

// RawFrom converts a parsed service value into a Raw record. Anything that is
// not a JSON object (including a missing value) becomes an empty record.
func RawFrom(parsed any) Raw {
	switch v := parsed.(type) {
	case map[string]any:
		return Raw(v)
	case Raw:
		return v
	default:
		return Raw{}
	}
}

// Has reports whether key is present with a non-null value.
func (r Raw) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the field if it is a string, otherwise fallback.
func (r Raw) String(key, fallback string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return fallback
}

// Strings returns the string elements of an array field. Non-string elements
// are dropped. The result is never nil.
func (r Raw) Strings(key string) []string {
	arr, _ := r[key].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Array returns the field if it is an array, otherwise an empty slice.
func (r Raw) Array(key string) []any {
	if arr, ok := r[key].([]any); ok {
		return arr
	}
	return []any{}
}

// Records returns the object elements of an array field. The result is never nil.
func (r Raw) Records(key string) []Raw {
	arr, _ := r[key].([]any)
	out := make([]Raw, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, Raw(m))
		}
	}
	return out
}

// Record returns a nested object field.
func (r Raw) Record(key string) (Raw, bool) {
	m, ok := r[key].(map[string]any)
	if !ok {
		return Raw{}, false
	}
	return Raw(m), true
}

// Bool returns the field only when it is an explicit JSON boolean.
func (r Raw) Bool(key string) (bool, bool) {
	b, ok := r[key].(bool)
	return b, ok
}

// Number returns a finite numeric field.
func (r Raw) Number(key string) (float64, bool) {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns a numeric field truncated toward zero.
func (r Raw) Int(key string) (int, bool) {
	f, ok := r.Number(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Enum returns the lower-cased field value when it is one of allowed.
func (r Raw) Enum(key string, allowed ...string) (string, bool) {
	s, ok := r[key].(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}
	return "", false
}

// Confidence returns the field when it is a valid confidence label.
func (r Raw) Confidence(key string) (Confidence, bool) {
	s, ok := r[key].(string)
	if !ok {
		return "", false
	}
	return ParseConfidence(s)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
