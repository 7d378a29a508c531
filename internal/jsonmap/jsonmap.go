// Package jsonmap provides defensive accessors over decoded JSON objects.
// Every accessor tolerates missing keys and wrong types instead of
// propagating nils through traversal chains.
package jsonmap

// String returns m[key] as a string, or "" when absent or not a string.
func String(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Float returns m[key] as a float64 and whether it was a number.
func Float(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	f, ok := m[key].(float64)
	return f, ok
}

// Map returns m[key] as a nested object, or nil.
func Map(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]any)
	return nested
}

// Slice returns m[key] as a list, or nil.
func Slice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	list, _ := m[key].([]any)
	return list
}

// Objects returns m[key] as a list of objects, skipping non-object elements.
func Objects(m map[string]any, key string) []map[string]any {
	list := Slice(m, key)
	if list == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Strings returns m[key] as a list of strings, skipping non-string elements.
func Strings(m map[string]any, key string) []string {
	list := Slice(m, key)
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
