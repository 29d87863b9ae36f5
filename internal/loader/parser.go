package loader

import (
	"context"

	"go.dot.industries/sx/internal/document"
)

// Parser reads and decodes one secret source. A nil or empty Document means
// the source contributes nothing; an error is fatal for the whole call.
// Implementations must be safe for concurrent use.
type Parser interface {
	Parse(ctx context.Context, path string) (document.Document, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, path string) (document.Document, error)

// Parse calls f(ctx, path).
func (f ParserFunc) Parse(ctx context.Context, path string) (document.Document, error) {
	return f(ctx, path)
}
