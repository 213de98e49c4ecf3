package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// Attributes is a JSON-compatible attribute mapping
type Attributes map[string]any

// AttributeStore persists one attribute record per partition key.
// Get reports found=false, with a nil error, when no record exists for key;
// an empty record that exists is returned with found=true.
// Put replaces the whole record. Implementations are safe for concurrent use
// and bound every call with their own timeout.
type AttributeStore interface {
	Get(ctx context.Context, key string) (Attributes, bool, error)
	Put(ctx context.Context, key string, attributes Attributes) error
	Delete(ctx context.Context, key string) error
}

var (
	// ErrEmptyKey is returned when a store receives an empty partition key
	ErrEmptyKey = errors.New("partition key cannot be empty")
	// ErrMalformedRecord wraps records that cannot be decoded into Attributes
	ErrMalformedRecord = errors.New("malformed attribute record")
)

// Clone returns a deep copy of the mapping: nested maps and slices are copied,
// scalars are shared
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Attributes(t).Clone())
	case Attributes:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Int reads an integer attribute regardless of how the codec decoded it
func (a Attributes) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	default:
		return 0, false
	}
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
