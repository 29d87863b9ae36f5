package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Flatten converts a nested Document into a flat map suitable for injecting
// as environment variables. Nested keys are joined with sep and the result is
// upper-cased, with any character outside [A-Z0-9_] replaced by an
// underscore: {"conn": {"host": "h"}} with prefix "svc" becomes
// SVC_CONN_HOST=h. Sequences are JSON-encoded.
//
// Distinct keys that map to the same name, such as "db-host", "db_host" and
// "db.host", are an error. The input is not mutated.
func Flatten(d Document, prefix string, sep string) (map[string]string, error) {
	f := flattener{
		sep:     sep,
		result:  make(map[string]string),
		origins: make(map[string]string),
	}
	if err := f.walk(d, envKey(prefix), ""); err != nil {
		return nil, err
	}
	return f.result, nil
}

// flattener tracks the source key of every name it emits so collisions can
// be reported.
type flattener struct {
	sep     string
	result  map[string]string
	origins map[string]string
}

func (f *flattener) walk(d Document, prefix string, path string) error {
	for key, val := range d {
		name := envKey(key)
		if prefix != "" {
			name = prefix + f.sep + name
		}
		source := key
		if path != "" {
			source = path + "." + key
		}

		if nested, ok := AsDocument(val); ok {
			if err := f.walk(nested, name, source); err != nil {
				return err
			}
			continue
		}

		if other, ok := f.origins[name]; ok {
			first, second := other, source
			if second < first {
				first, second = second, first
			}
			return fmt.Errorf("flatten keys %q and %q both map to %s", first, second, name)
		}

		str, err := formatScalar(val)
		if err != nil {
			return fmt.Errorf("flatten key %q: %w", name, err)
		}
		f.result[name] = str
		f.origins[name] = source
	}
	return nil
}

// formatScalar renders a leaf value as a string.
func formatScalar(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// envKey upper-cases s and replaces characters that are not valid in an
// environment variable name.
func envKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
