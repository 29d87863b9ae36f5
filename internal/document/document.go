// Package document provides the nested mapping type shared by every secret
// source, along with the pure functions used to combine and export it.
package document

// Document is a nested mapping parsed from one secret source. Values are
// strings, numbers, bools, sequences or nested mappings.
type Document map[string]any

// AsDocument reports whether v is a mapping and returns it as a Document.
// Both map[string]any and map[any]any (as produced by some YAML decoders) are
// accepted; non-string keys in the latter disqualify the value.
func AsDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	case map[any]any:
		out := make(Document, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Sub returns the mapping stored at key. The second result is false when the
// key is missing or holds a non-mapping value.
func (d Document) Sub(key string) (Document, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	return AsDocument(v)
}

// Without returns a shallow copy of d with the given top-level keys removed.
// The receiver is never mutated.
func (d Document) Without(keys ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Clone returns a deep copy of d. Nested mappings and sequences are copied;
// scalars are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := AsDocument(v); ok {
		return m.Clone()
	}
	if s, ok := v.([]any); ok {
		cp := make([]any, len(s))
		for i, item := range s {
			cp[i] = cloneValue(item)
		}
		return cp
	}
	return v
}
