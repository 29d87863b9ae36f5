package vault

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.dot.industries/sx/internal/document"
)

// DocumentReader reads one secret document from a KV path.
type DocumentReader interface {
	ReadDocument(ctx context.Context, kvPath string) (document.Document, error)
}

// Parser serves secret sources from Vault. A source path such as
// /app/config/production/secrets.ejson is mapped to the KV path
// <prefix>/config/production/secrets: made relative to the app root, with
// its extension removed.
type Parser struct {
	reader  DocumentReader
	appRoot string
	prefix  string
}

// NewParser returns a Parser reading through reader. Paths outside appRoot
// are rejected.
func NewParser(reader DocumentReader, appRoot string, prefix string) *Parser {
	return &Parser{
		reader:  reader,
		appRoot: appRoot,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Parse implements loader.Parser.
func (p *Parser) Parse(ctx context.Context, sourcePath string) (document.Document, error) {
	kvPath, err := p.KVPath(sourcePath)
	if err != nil {
		return nil, err
	}

	return p.reader.ReadDocument(ctx, kvPath)
}

// KVPath maps a source path to its KV path.
func (p *Parser) KVPath(sourcePath string) (string, error) {
	rel := sourcePath
	if filepath.IsAbs(sourcePath) || p.appRoot != "" {
		r, err := filepath.Rel(filepath.Clean(p.appRoot), filepath.Clean(sourcePath))
		if err != nil {
			return "", fmt.Errorf("mapping %s to a vault path: %w", sourcePath, err)
		}
		rel = r
	}

	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("mapping %s to a vault path: outside app root %s", sourcePath, p.appRoot)
	}

	rel = strings.TrimSuffix(rel, path.Ext(rel))

	return path.Join(p.prefix, rel), nil
}
