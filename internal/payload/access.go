package payload

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup walks nested objects by key and returns the value at the end of
// the path, or nil when any segment is missing or not an object.
func Lookup(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok || obj == nil {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

// Map returns the object at the given path.
func Map(m map[string]any, keys ...string) (map[string]any, bool) {
	v, ok := Lookup(m, keys...).(map[string]any)
	return v, ok && v != nil
}

// Slice returns the array at the given path.
func Slice(m map[string]any, keys ...string) ([]any, bool) {
	v, ok := Lookup(m, keys...).([]any)
	return v, ok
}

// Text returns the trimmed string at the given path. Blank strings count as
// missing.
func Text(m map[string]any, keys ...string) (string, bool) {
	s, ok := Lookup(m, keys...).(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FirstText returns the first non-blank string among the given paths. Each
// path is a dot-separated key list.
func FirstText(m map[string]any, paths ...string) (string, bool) {
	for _, p := range paths {
		if s, ok := Text(m, strings.Split(p, ".")...); ok {
			return s, true
		}
	}
	return "", false
}

// Number converts JSON numbers and numeric strings to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
