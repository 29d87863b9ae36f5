package document

// RedactedValue replaces every leaf of a redacted Document.
const RedactedValue = "***REDACTED***"

// Redact returns a copy of d whose structure is preserved but whose leaf
// values are replaced with RedactedValue. Empty strings and nil values stay
// as they are so that missing secrets remain visible.
func Redact(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	if nested, ok := AsDocument(v); ok {
		return Redact(nested)
	}
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return val
		}
	}
	return RedactedValue
}
