package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.dot.industries/sx/internal/document"
)

const appRoot = "/srv/app"

var (
	basePath  = appRoot + "/config/secrets.ejson"
	localPath = appRoot + "/config/secrets.local.ejson"
	devPath   = appRoot + "/config/development/secrets.ejson"
)

// fakeParser is a test double for Parser.
type fakeParser struct {
	mu    sync.Mutex
	docs  map[string]document.Document
	errs  map[string]error
	calls []string
}

func newFakeParser() *fakeParser {
	return &fakeParser{
		docs: make(map[string]document.Document),
		errs: make(map[string]error),
	}
}

func (p *fakeParser) withDoc(path string, doc document.Document) *fakeParser {
	p.docs[path] = doc
	return p
}

func (p *fakeParser) withError(path string, err error) *fakeParser {
	p.errs[path] = err
	return p
}

func (p *fakeParser) Parse(_ context.Context, path string) (document.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, path)

	if err, ok := p.errs[path]; ok {
		return nil, err
	}
	return p.docs[path].Clone(), nil
}

func (p *fakeParser) sortedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := append([]string(nil), p.calls...)
	sort.Strings(out)
	return out
}

func defaultData() document.Document {
	return document.Document{
		"username": "default_username",
		"password": "default_password",
		"connection": map[string]any{
			"host": "default.host",
			"port": 12345,
		},
	}
}

func baseDoc() document.Document {
	return document.Document{
		"_public_key": "any_public_key",
		"clever":      map[string]any(defaultData()),
		"cool": map[string]any{
			"username": "5678username",
			"password": "5678password",
		},
	}
}

func localDoc() document.Document {
	return document.Document{
		"_public_key": "any_public_key",
		"clever": map[string]any{
			"password": "local_password",
			"connection": map[string]any{
				"host": "local.host",
				"port": 54321,
			},
		},
	}
}

func devDoc() document.Document {
	return document.Document{
		"_public_key": "any_public_key",
		"clever": map[string]any{
			"username": "development_username",
			"password": "development_password",
		},
		"cool": map[string]any{
			"username": "8765username8765",
			"password": "8765password8765",
		},
	}
}

func fullParser() *fakeParser {
	return newFakeParser().
		withDoc(basePath, baseDoc()).
		withDoc(localPath, localDoc()).
		withDoc(devPath, devDoc())
}

func settings(env string) StaticSettings {
	return StaticSettings{AppRoot: appRoot, Environment: env}
}

func resolve(t *testing.T, s StaticSettings, p Parser, local any, opts ...EJSONOption) document.Document {
	t.Helper()
	got, err := Call(context.Background(), s, NewEJSON(p, opts...), "clever", WithLocal(local))
	require.NoError(t, err)
	require.NotNil(t, got)
	return normalize(got)
}

func TestEJSON_WithoutEnvironment(t *testing.T) {
	tests := []struct {
		name   string
		parser *fakeParser
		local  any
		opts   []EJSONOption
		want   document.Document
	}{
		{
			name:   "parses default source",
			parser: fullParser(),
			local:  false,
			want:   defaultData(),
		},
		{
			name: "namespace disabled on an unwrapped document",
			parser: newFakeParser().withDoc(basePath, document.DeepMerge(
				document.Document{"_public_key": "any_public_key"},
				defaultData(),
			)),
			opts: []EJSONOption{WithoutNamespace()},
			want: defaultData(),
		},
		{
			name:   "local merges over default",
			parser: fullParser(),
			local:  true,
			want: document.Document{
				"username": "default_username",
				"password": "local_password",
				"connection": document.Document{
					"host": "local.host",
					"port": 54321,
				},
			},
		},
		{
			name:   "local enabled without a local source",
			parser: fullParser().withDoc(localPath, nil),
			local:  true,
			want:   defaultData(),
		},
		{
			name:   "parser returns nil",
			parser: newFakeParser(),
			want:   document.Document{},
		},
		{
			name:   "parsed content is empty",
			parser: newFakeParser().withDoc(basePath, document.Document{}),
			want:   document.Document{},
		},
		{
			name: "service data is empty",
			parser: newFakeParser().withDoc(basePath, document.Document{
				"_public_key": "k",
				"clever":      map[string]any{},
			}),
			want: document.Document{},
		},
		{
			name: "service value is not a mapping",
			parser: newFakeParser().withDoc(basePath, document.Document{
				"clever": "oops",
			}),
			want: document.Document{},
		},
		{
			name:   "custom namespace key",
			parser: fullParser(),
			opts:   []EJSONOption{WithNamespace("cool")},
			want: document.Document{
				"username": "5678username",
				"password": "5678password",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(t, settings(""), tt.parser, tt.local, tt.opts...)
			assert.Equal(t, normalize(tt.want), got)
		})
	}
}

func TestEJSON_WithEnvironment(t *testing.T) {
	tests := []struct {
		name   string
		parser *fakeParser
		local  any
		want   document.Document
	}{
		{
			name:   "environment source replaces base",
			parser: fullParser(),
			want: document.Document{
				"username": "development_username",
				"password": "development_password",
			},
		},
		{
			name:   "falls back to base when environment source is absent",
			parser: fullParser().withDoc(devPath, nil),
			want:   defaultData(),
		},
		{
			name:   "falls back to base when environment source is empty",
			parser: fullParser().withDoc(devPath, document.Document{}),
			want:   defaultData(),
		},
		{
			name:   "local overrides environment",
			parser: fullParser(),
			local:  true,
			want: document.Document{
				"username": "development_username",
				"password": "local_password",
				"connection": document.Document{
					"host": "local.host",
					"port": 54321,
				},
			},
		},
		{
			name:   "local enabled without a local source",
			parser: fullParser().withDoc(localPath, nil),
			local:  true,
			want: document.Document{
				"username": "development_username",
				"password": "development_password",
			},
		},
		{
			name:   "local still applies when environment source is absent",
			parser: fullParser().withDoc(devPath, nil),
			local:  true,
			want: document.Document{
				"username": "default_username",
				"password": "local_password",
				"connection": document.Document{
					"host": "local.host",
					"port": 54321,
				},
			},
		},
		{
			name: "environment source without the service contributes nothing",
			parser: fullParser().withDoc(devPath, document.Document{
				"_public_key": "k",
				"cool":        map[string]any{"username": "x"},
			}),
			want: document.Document{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(t, settings("development"), tt.parser, tt.local)
			assert.Equal(t, normalize(tt.want), got)
		})
	}
}

func TestEJSON_CascadeMode(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		parser *fakeParser
		local  any
		want   document.Document
	}{
		{
			name:   "environment merges over base",
			env:    "development",
			parser: fullParser(),
			want: document.Document{
				"username": "development_username",
				"password": "development_password",
				"connection": document.Document{
					"host": "default.host",
					"port": 12345,
				},
			},
		},
		{
			name:   "local merges over environment and base",
			env:    "development",
			parser: fullParser(),
			local:  true,
			want: document.Document{
				"username": "development_username",
				"password": "local_password",
				"connection": document.Document{
					"host": "local.host",
					"port": 54321,
				},
			},
		},
		{
			name:   "absent environment source",
			env:    "development",
			parser: fullParser().withDoc(devPath, nil),
			want:   defaultData(),
		},
		{
			name:   "no environment and no local",
			parser: fullParser(),
			want:   defaultData(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(t, settings(tt.env), tt.parser, tt.local, WithEnvironmentMode(EnvironmentCascade))
			assert.Equal(t, normalize(tt.want), got)
		})
	}
}

func TestEJSON_ParserCalls(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		local  any
		mode   EnvironmentMode
		parser *fakeParser
		want   []string
	}{
		{
			name:   "base only",
			parser: fullParser(),
			want:   []string{basePath},
		},
		{
			name:   "environment present skips base",
			env:    "development",
			parser: fullParser(),
			want:   []string{devPath},
		},
		{
			name:   "environment absent reads base",
			env:    "development",
			parser: fullParser().withDoc(devPath, nil),
			want:   []string{devPath, basePath},
		},
		{
			name:   "local adds one call",
			local:  true,
			parser: fullParser(),
			want:   []string{basePath, localPath},
		},
		{
			name:   "cascade reads every active source",
			env:    "development",
			local:  true,
			mode:   EnvironmentCascade,
			parser: fullParser(),
			want:   []string{devPath, basePath, localPath},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolve(t, settings(tt.env), tt.parser, tt.local, WithEnvironmentMode(tt.mode))

			want := append([]string(nil), tt.want...)
			sort.Strings(want)
			assert.Equal(t, want, tt.parser.sortedCalls())
		})
	}
}

func TestEJSON_ParserErrorPropagates(t *testing.T) {
	errBoom := errors.New("decrypt failed")

	for _, mode := range []EnvironmentMode{EnvironmentFallback, EnvironmentCascade} {
		t.Run(mode.String(), func(t *testing.T) {
			parser := fullParser().withError(localPath, errBoom)

			got, err := Call(context.Background(), settings("development"),
				NewEJSON(parser, WithEnvironmentMode(mode)), "clever", WithLocal(true))

			require.Error(t, err)
			assert.ErrorIs(t, err, errBoom)
			assert.Contains(t, err.Error(), localPath)
			assert.Nil(t, got)
		})
	}
}

func TestEJSON_NeverReturnsPublicKey(t *testing.T) {
	parser := newFakeParser().
		withDoc(basePath, document.Document{
			"_public_key": "k",
			"clever": map[string]any{
				"_public_key": "nested-top-level",
				"u":           "a",
				"conn":        map[string]any{"_public_key": "deeper"},
			},
		}).
		withDoc(localPath, document.Document{
			"_public_key": "k",
			"clever":      map[string]any{"p": "b"},
		})

	got := resolve(t, settings(""), parser, true)

	assert.NotContains(t, got, "_public_key")
	assert.Equal(t, document.Document{
		"u":    "a",
		"p":    "b",
		"conn": document.Document{"_public_key": "deeper"},
	}, got)

	unwrapped := resolve(t, settings(""), newFakeParser().withDoc(basePath, document.Document{
		"_public_key": "k",
		"u":           "a",
	}), false, WithoutNamespace())
	assert.Equal(t, document.Document{"u": "a"}, unwrapped)
}

func TestEJSON_CustomPublicKeyField(t *testing.T) {
	s := settings("")
	s.PublicKeyField = "_key"

	parser := newFakeParser().withDoc(basePath, document.Document{
		"_key":        "k",
		"_public_key": "kept",
	})

	got := resolve(t, s, parser, false, WithoutNamespace())
	assert.Equal(t, document.Document{"_public_key": "kept"}, got)
}

func TestEJSON_ServiceMissingEverywhere(t *testing.T) {
	parser := fullParser()

	got, err := Call(context.Background(), settings("development"),
		NewEJSON(parser, WithEnvironmentMode(EnvironmentCascade)), "unknown", WithLocal(true))

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEJSON_DoesNotMutateParsedDocuments(t *testing.T) {
	base := baseDoc()
	parser := ParserFunc(func(_ context.Context, path string) (document.Document, error) {
		switch path {
		case basePath:
			return base, nil
		case localPath:
			return localDoc(), nil
		}
		return nil, nil
	})

	got, err := Call(context.Background(), settings(""), NewEJSON(parser), "clever", WithLocal(true))
	require.NoError(t, err)

	conn, _ := got.Sub("connection")
	conn["host"] = "changed"

	assert.Equal(t, baseDoc(), base)
}

func TestParseEnvironmentMode(t *testing.T) {
	tests := []struct {
		in      string
		want    EnvironmentMode
		wantErr bool
	}{
		{in: "", want: EnvironmentFallback},
		{in: "fallback", want: EnvironmentFallback},
		{in: "cascade", want: EnvironmentCascade},
		{in: "merge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEnvironmentMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// normalize converts every nested mapping to document.Document.
func normalize(d document.Document) document.Document {
	out := make(document.Document, len(d))
	for k, v := range d {
		if nested, ok := document.AsDocument(v); ok {
			out[k] = normalize(nested)
			continue
		}
		out[k] = v
	}
	return out
}
