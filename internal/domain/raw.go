package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns a string at path or nil when absent / not a string.
func lookupStr(m map[string]any, path string) *string {
	if s, ok := lookupAny(m, path).(string); ok {
		return &s
	}
	return nil
}

// lookupInt64 accepts JSON numbers (float64 / json.Number), ints and numeric strings.
// ok=false with present=true means the value exists but is not numeric.
func lookupInt64(m map[string]any, path string) (n int64, present, ok bool) {
	switch v := lookupAny(m, path).(type) {
	case nil:
		return 0, false, false
	case float64:
		return int64(v), true, true
	case int:
		return int64(v), true, true
	case int64:
		return v, true, true
	case json.Number:
		if x, err := v.Int64(); err == nil {
			return x, true, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true, true
		}
		return 0, true, false
	case string:
		s := strings.TrimSpace(v)
		if x, err := strconv.ParseInt(s, 10, 64); err == nil {
			return x, true, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true, true
		}
		return 0, true, false
	default:
		return 0, true, false
	}
}

// lookupID stringifies an identifier that may arrive as a string or a number.
func lookupID(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}
