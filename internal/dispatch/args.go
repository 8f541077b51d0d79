package dispatch

import (
	"math"
)

// Args is a loosely typed argument map as received from a transport.
// Numbers may arrive as any Go integer or float type.
type Args map[string]any

// String returns the string at key. ok is false when the key is absent.
func (a Args) String(key string) (s string, ok bool, err error) {
	v, present := a[key]
	if !present || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, invalidArgument(key, "want string, got %T", v)
	}
	return s, true, nil
}

// StringOr returns the string at key or def when absent.
func (a Args) StringOr(key, def string) (string, error) {
	s, ok, err := a.String(key)
	if err != nil || !ok {
		return def, err
	}
	return s, nil
}

// OptString returns a pointer to the string at key, nil when absent.
func (a Args) OptString(key string) (*string, error) {
	s, ok, err := a.String(key)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// Bool returns the bool at key or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, present := a[key]
	if !present || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, invalidArgument(key, "want bool, got %T", v)
	}
	return b, nil
}

// Int returns the integer at key or def when absent. Floats are accepted
// only when integral.
func (a Args) Int(key string, def int64) (int64, error) {
	v, present := a[key]
	if !present || v == nil {
		return def, nil
	}
	n, ok := asInt(v)
	if !ok {
		return def, invalidArgument(key, "want integer, got %T(%v)", v, v)
	}
	return n, nil
}

// Int32 returns the integer at key as an int32 or def when absent.
func (a Args) Int32(key string, def int32) (int32, error) {
	n, err := a.Int(key, int64(def))
	if err != nil {
		return def, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return def, invalidArgument(key, "%d out of int32 range", n)
	}
	return int32(n), nil
}

// Bytes returns the byte slice at key, nil when absent.
func (a Args) Bytes(key string) ([]byte, error) {
	v, present := a[key]
	if !present || v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, invalidArgument(key, "want bytes, got %T", v)
	}
	return b, nil
}

// List returns the list of maps at key, nil when absent.
func (a Args) List(key string) ([]Args, error) {
	v, present := a[key]
	if !present || v == nil {
		return nil, nil
	}

	switch list := v.(type) {
	case []map[string]any:
		out := make([]Args, len(list))
		for i, m := range list {
			out[i] = Args(m)
		}
		return out, nil
	case []any:
		out := make([]Args, 0, len(list))
		for i, item := range list {
			m, ok := asMap(item)
			if !ok {
				return nil, invalidArgument(key, "element %d: want map, got %T", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, invalidArgument(key, "want list, got %T", v)
	}
}

// Map returns the map at key, nil when absent.
func (a Args) Map(key string) (Args, error) {
	v, present := a[key]
	if !present || v == nil {
		return nil, nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, invalidArgument(key, "want map, got %T", v)
	}
	return m, nil
}

// lookups below never fail: a value of the wrong type reads as absent.

func (a Args) looseString(key string) *string {
	if s, ok := a[key].(string); ok {
		return &s
	}
	return nil
}

func (a Args) looseFloat(key string) *float64 {
	if f, ok := asFloat(a[key]); ok {
		return &f
	}
	return nil
}

func (a Args) looseInt(key string) (int64, bool) {
	return asInt(a[key])
}

func (a Args) looseBytes(key string) []byte {
	if b, ok := a[key].([]byte); ok {
		return b
	}
	return nil
}

func asMap(v any) (Args, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Args(m), true
	case Args:
		return m, true
	default:
		return nil, false
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
