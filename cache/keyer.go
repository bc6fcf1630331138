package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/module"
)

// DefaultPrefix namespaces cache keys inside a shared store.
const DefaultPrefix = "rf-ai-cache:"

// keySeparator joins module and entity ids. Module ids never contain it;
// entity ids may.
const keySeparator = "::"

// UnhashableSource is the SourceHash of a value that cannot be serialized.
// The cache never serves or stores entries under it.
const UnhashableSource = "unhashable"

// Key addresses one cache entry.
type Key struct {
	Module module.ID
	Entity string
}

// Validate checks that both components are usable in a key string.
func (k Key) Validate() error {
	if strings.TrimSpace(string(k.Module)) == "" || strings.TrimSpace(k.Entity) == "" {
		return ErrInvalidKey
	}
	if strings.Contains(string(k.Module), keySeparator) || strings.ContainsAny(k.Entity, "\n\r") {
		return ErrInvalidKey
	}
	if len(k.Module)+len(k.Entity) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Keyer renders and parses key strings of the form <prefix><moduleId>::<entityId>.
type Keyer struct {
	Prefix string
}

// NewKeyer creates a Keyer. An empty prefix uses DefaultPrefix.
func NewKeyer(prefix string) Keyer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyer{Prefix: prefix}
}

// Key renders k.
func (kr Keyer) Key(k Key) string {
	return kr.Prefix + string(k.Module) + keySeparator + k.Entity
}

// ParseKey reverses Key. It splits at the first separator after the prefix,
// so entity ids containing "::" round-trip.
func (kr Keyer) ParseKey(s string) (Key, bool) {
	rest, ok := strings.CutPrefix(s, kr.Prefix)
	if !ok {
		return Key{}, false
	}
	mod, entity, ok := strings.Cut(rest, keySeparator)
	if !ok || mod == "" || entity == "" {
		return Key{}, false
	}
	return Key{Module: module.ID(mod), Entity: entity}, true
}

// entitySuffix is the suffix every key for entity ends with.
func entitySuffix(entity string) string {
	return keySeparator + entity
}

// SourceHash fingerprints v: the xxhash64 of its canonical JSON form, as 16
// hex digits. Values that encode to the same JSON document hash equally
// regardless of Go type or map order. It never fails; a value that cannot be
// serialized, or whose encoder panics, yields UnhashableSource.
func SourceHash(v any) (hash string) {
	defer func() {
		if recover() != nil {
			hash = UnhashableSource
		}
	}()
	canonical, err := canonicalize(v)
	if err != nil {
		return UnhashableSource
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(canonical))
}

// canonicalize encodes v, decodes it generically and re-encodes it with
// object keys sorted at every level.
func canonicalize(v any) ([]byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			quoted, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(quoted)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		scalar, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(scalar)
	}
	return nil
}
