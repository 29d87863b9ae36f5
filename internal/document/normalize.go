package document

import "encoding/json"

// Normalize rewrites JSON-decoded values in place so that every mapping is a
// map[string]any and every json.Number becomes an int64 when integral or a
// float64 otherwise. It returns the rewritten value.
func Normalize(v any) any {
	switch val := v.(type) {
	case Document:
		for k, item := range val {
			val[k] = Normalize(item)
		}
		return map[string]any(val)
	case map[string]any:
		for k, item := range val {
			val[k] = Normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = Normalize(item)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
