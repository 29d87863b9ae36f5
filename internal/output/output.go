// Package output renders resolved documents for humans and scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"go.dot.industries/sx/internal/document"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatEnv  Format = "env"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatTOML, FormatEnv}
}

// ParseFormat converts a format name to a Format. "yml" is accepted for yaml.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "env", "dotenv":
		return FormatEnv, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want one of %v)", s, Formats())
	}
}

// Write encodes doc to w in the given format. Mapping keys are emitted in
// sorted order by every format, so output is stable across runs.
func Write(w io.Writer, doc document.Document, format Format) error {
	if doc == nil {
		doc = document.Document{}
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	case FormatTOML:
		return writeTOML(w, doc)
	case FormatEnv:
		return writeEnv(w, doc)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, doc document.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(doc)); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, doc document.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plain(doc)); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return nil
}

func writeTOML(w io.Writer, doc document.Document) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(dropNil(plain(doc))); err != nil {
		return fmt.Errorf("encoding toml: %w", err)
	}
	return nil
}

// writeEnv writes one KEY="value" line per leaf, sorted by key, in a form a
// POSIX shell or a dotenv loader can read back.
func writeEnv(w io.Writer, doc document.Document) error {
	flat, err := document.Flatten(doc, "", "_")
	if err != nil {
		return fmt.Errorf("flattening document: %w", err)
	}

	for _, k := range slices.Sorted(maps.Keys(flat)) {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, strconv.Quote(flat[k])); err != nil {
			return err
		}
	}
	return nil
}

// plain converts doc and its nested mappings to map[string]any, the type
// every encoder handles without reflection surprises.
func plain(doc document.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	if nested, ok := document.AsDocument(v); ok {
		return plain(nested)
	}
	if seq, ok := v.([]any); ok {
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = plainValue(item)
		}
		return out
	}
	return v
}

// dropNil removes nil leaves, which TOML cannot represent, from mappings and
// sequences alike. m must be a tree built by plain.
func dropNil(m map[string]any) map[string]any {
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = dropNilValue(v)
	}
	return m
}

func dropNilValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return dropNil(val)
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, dropNilValue(item))
		}
		return out
	default:
		return v
	}
}
