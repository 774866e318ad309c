package classify

import (
	"math"
	"strconv"
)

// Accessors over decoded JSON (map[string]any / []any / float64 / string /
// bool). They never panic on unexpected shapes.

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func array(v any) []any {
	a, _ := v.([]any)
	return a
}

// str returns the first non-empty string (or integral number rendered as a
// string) found under keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10)
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func number(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func intPtr(m map[string]any, key string) *int {
	f, ok := number(m, key)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func floatPtr(m map[string]any, key string) *float64 {
	f, ok := number(m, key)
	if !ok {
		return nil
	}
	return &f
}

func integer(m map[string]any, key string) int {
	f, _ := number(m, key)
	return int(f)
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func boolPtr(m map[string]any, key string) *bool {
	b, ok := m[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func has(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr && s == "" {
			return false
		}
	}
	return true
}
