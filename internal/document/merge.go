package document

// DeepMerge combines base and override into a new Document. Every key of base
// is kept; for each key of override:
//
//   - missing from base: the override value is added as-is
//   - a mapping on both sides: the two mappings are merged recursively
//   - anything else: the override value replaces the base value verbatim
//
// Sequences are replaced, never combined element-wise. Neither input is
// mutated and the result shares no mappings with them.
func DeepMerge(base, override Document) Document {
	result := base.Clone()
	if result == nil {
		result = make(Document, len(override))
	}

	for key, val := range override {
		existing, ok := result[key]
		if !ok {
			result[key] = cloneValue(val)
			continue
		}

		baseMap, baseIsMap := AsDocument(existing)
		overMap, overIsMap := AsDocument(val)
		if baseIsMap && overIsMap {
			result[key] = DeepMerge(baseMap, overMap)
			continue
		}

		result[key] = cloneValue(val)
	}

	return result
}

// Fold deep-merges layers left to right, so later layers take precedence.
// Nil layers contribute nothing. The result is never nil.
func Fold(layers ...Document) Document {
	result := Document{}
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		result = DeepMerge(result, layer)
	}
	return result
}
