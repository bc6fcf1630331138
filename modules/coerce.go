package modules

import (
	"strconv"
	"strings"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// scalarText reads a field that the service may return as a string or a number.
func scalarText(r module.Raw, key string) string {
	if s, ok := r[key].(string); ok {
		return strings.TrimSpace(s)
	}
	if f, ok := r.Number(key); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// records reads an array whose elements may be objects or bare strings. A
// bare string becomes a record holding it under key.
func records(r module.Raw, field, key string) []module.Raw {
	arr := r.Array(field)
	out := make([]module.Raw, 0, len(arr))
	for _, v := range arr {
		switch item := v.(type) {
		case map[string]any:
			out = append(out, module.Raw(item))
		case string:
			if strings.TrimSpace(item) != "" {
				out = append(out, module.Raw{key: item})
			}
		}
	}
	return out
}

// clampedScore reads a numeric field clamped to [0, 100].
func clampedScore(r module.Raw, key string) (float64, bool) {
	f, ok := r.Number(key)
	if !ok {
		return 0, false
	}
	return module.Clamp(f, 0, 100), true
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "%"
}
