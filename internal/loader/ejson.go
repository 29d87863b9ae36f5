package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go.dot.industries/sx/internal/document"
)

// EnvironmentMode selects how the environment source relates to the base
// source.
type EnvironmentMode int

const (
	// EnvironmentFallback reads the environment source in place of the base
	// source, falling back to the base source when the environment source
	// is absent or empty.
	EnvironmentFallback EnvironmentMode = iota
	// EnvironmentCascade reads both and deep-merges the environment source
	// over the base source.
	EnvironmentCascade
)

func (m EnvironmentMode) String() string {
	switch m {
	case EnvironmentFallback:
		return "fallback"
	case EnvironmentCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseEnvironmentMode converts a mode name to an EnvironmentMode. The empty
// string selects EnvironmentFallback.
func ParseEnvironmentMode(s string) (EnvironmentMode, error) {
	switch s {
	case "", "fallback":
		return EnvironmentFallback, nil
	case "cascade":
		return EnvironmentCascade, nil
	default:
		return 0, fmt.Errorf("unknown environment mode %q (want fallback or cascade)", s)
	}
}

// EJSONOption configures an EJSON loader.
type EJSONOption func(*EJSON)

// WithNamespace extracts the service sub-tree from the given top-level key
// instead of the service name.
func WithNamespace(key string) EJSONOption {
	return func(l *EJSON) {
		l.namespace = key
		l.noNamespace = false
	}
}

// WithoutNamespace treats the whole document, minus the public key field, as
// the service's configuration. Use it for secret files that hold a single
// service without a wrapping key.
func WithoutNamespace() EJSONOption {
	return func(l *EJSON) {
		l.namespace = ""
		l.noNamespace = true
	}
}

// WithEnvironmentMode sets how the environment source is combined with the
// base source.
func WithEnvironmentMode(m EnvironmentMode) EJSONOption {
	return func(l *EJSON) {
		l.mode = m
	}
}

// EJSON resolves a service's configuration from up to three ejson sources:
// base, environment and local. Each source is parsed independently, the
// service's sub-tree is extracted from it and the sub-trees are deep-merged
// with later layers taking precedence. Missing sources, empty documents and
// missing service keys contribute nothing.
type EJSON struct {
	Base

	parser      Parser
	namespace   string
	noNamespace bool
	mode        EnvironmentMode
}

// NewEJSON returns a Constructor for EJSON loaders reading through parser.
func NewEJSON(parser Parser, opts ...EJSONOption) Constructor {
	return func(base Base) Loader {
		l := &EJSON{
			Base:   base,
			parser: parser,
		}
		for _, opt := range opts {
			opt(l)
		}
		return l
	}
}

// Load implements Loader. The result is never nil. Parser errors are returned
// wrapped with the failing path and are not retried.
func (l *EJSON) Load(ctx context.Context, name string) (document.Document, error) {
	var (
		layers []document.Document
		err    error
	)

	if l.mode == EnvironmentCascade {
		layers, err = l.cascadeLayers(ctx, name)
	} else {
		layers, err = l.fallbackLayers(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	return document.Fold(layers...), nil
}

// fallbackLayers reads the environment source (or the base source when there
// is no environment, or the environment source is absent) followed by the
// local source.
func (l *EJSON) fallbackLayers(ctx context.Context, name string) ([]document.Document, error) {
	settings := l.Settings()
	logger := zerolog.Ctx(ctx)

	var primary document.Document
	if settings.Environment != "" {
		path := settings.SourcePath(RoleEnvironment)
		doc, err := l.parse(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(doc) > 0 {
			primary = doc
		} else {
			logger.Debug().Str("path", path).Msg("environment source absent, using base source")
		}
	}

	if primary == nil {
		doc, err := l.parse(ctx, settings.SourcePath(RoleBase))
		if err != nil {
			return nil, err
		}
		primary = doc
	}

	layers := []document.Document{l.extract(primary, name)}

	if l.UseLocal() {
		doc, err := l.parse(ctx, settings.SourcePath(RoleLocal))
		if err != nil {
			return nil, err
		}
		layers = append(layers, l.extract(doc, name))
	}

	return layers, nil
}

// cascadeLayers reads every active source concurrently and returns their
// sub-trees in precedence order.
func (l *EJSON) cascadeLayers(ctx context.Context, name string) ([]document.Document, error) {
	sources := l.Settings().Sources(l.UseLocal())
	layers := make([]document.Document, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			doc, err := l.parse(gctx, src.Path)
			if err != nil {
				return err
			}
			layers[i] = l.extract(doc, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return layers, nil
}

// parse reads one source. Absent and empty documents both come back as nil.
func (l *EJSON) parse(ctx context.Context, path string) (document.Document, error) {
	doc, err := l.parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(doc) == 0 {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("source contributes nothing")
		return nil, nil
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Int("keys", len(doc)).Msg("parsed source")
	return doc, nil
}

// extract returns the service's sub-tree from doc. The public key field is
// removed from the document before extraction and from the sub-tree after it,
// so it can never leak into the result.
func (l *EJSON) extract(doc document.Document, name string) document.Document {
	if len(doc) == 0 {
		return nil
	}

	field := l.Settings().publicKeyField()
	doc = doc.Without(field)

	if l.noNamespace {
		return doc
	}

	key := l.namespace
	if key == "" {
		key = name
	}

	sub, ok := doc.Sub(key)
	if !ok {
		return nil
	}

	return sub.Without(field)
}
