// Package ejson reads ejson secret files: JSON documents whose string values
// are encrypted for the key pair named by the document's "_public_key"
// field. Decryption is done by github.com/Shopify/ejson.
package ejson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	shopify "github.com/Shopify/ejson"
	"github.com/rs/zerolog"

	"go.dot.industries/sx/internal/document"
)

// publicKeyField is fixed by the ejson file format.
const publicKeyField = "_public_key"

// Option configures a FileParser.
type Option func(*FileParser)

// WithKeyDir sets the directory private keys are looked up in. Empty values
// are ignored.
func WithKeyDir(dir string) Option {
	return func(p *FileParser) {
		if dir != "" {
			p.keyDir = dir
		}
	}
}

// WithPrivateKey uses the given hex private key for every document instead of
// looking one up in the key directory.
func WithPrivateKey(key string) Option {
	return func(p *FileParser) {
		p.privateKey = strings.TrimSpace(key)
	}
}

// FileParser reads ejson files from disk and decrypts them. It holds no
// mutable state and is safe for concurrent use.
//
// A missing, empty or malformed file yields a nil Document. Unreadable files
// and values that cannot be decrypted are errors.
type FileParser struct {
	keyDir     string
	privateKey string
}

// NewFileParser creates a FileParser. Keys are read from DefaultKeyDir unless
// an option says otherwise.
func NewFileParser(opts ...Option) *FileParser {
	p := &FileParser{keyDir: DefaultKeyDir}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse implements loader.Parser.
func (p *FileParser) Parse(ctx context.Context, path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	doc, err := decode(data)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("ignoring malformed secrets file")
		return nil, nil
	}
	if len(doc) == 0 {
		return nil, nil
	}
	if !containsEncrypted(doc) {
		return doc, nil
	}

	return p.decrypt(data, doc)
}

// Decrypt returns a copy of doc with every encrypted value replaced by its
// plaintext. Documents without encrypted values are returned unchanged and do
// not need a private key.
func (p *FileParser) Decrypt(doc document.Document) (document.Document, error) {
	if !containsEncrypted(doc) {
		return doc, nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	return p.decrypt(data, doc)
}

// decrypt runs data through ejson. doc is the decoded form of data and is
// only consulted for the public key.
func (p *FileParser) decrypt(data []byte, doc document.Document) (document.Document, error) {
	publicKey, _ := doc[publicKeyField].(string)
	if publicKey == "" {
		return nil, fmt.Errorf("document has encrypted values but no %s field", publicKeyField)
	}

	if p.privateKey == "" {
		if err := checkKeyFile(p.keyDir, publicKey); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	if err := shopify.Decrypt(bytes.NewReader(data), &out, p.keyDir, p.privateKey); err != nil {
		return nil, fmt.Errorf("decrypting document for %s: %w", publicKey, err)
	}

	plain, err := decode(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decoding decrypted document: %w", err)
	}

	return plain, nil
}

// decode parses a JSON object. Integral numbers become int64, others float64.
func decode(data []byte) (document.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}

	doc, ok := document.AsDocument(document.Normalize(raw))
	if !ok {
		return nil, fmt.Errorf("top-level value is not an object")
	}

	return doc, nil
}

// isEncrypted reports whether s is an ejson boxed message. The format itself
// is validated by the decrypter.
func isEncrypted(s string) bool {
	return strings.HasPrefix(s, "EJ[") && strings.HasSuffix(s, "]")
}

// containsEncrypted reports whether any value ejson would decrypt is
// encrypted. Values under keys starting with an underscore are never
// decrypted.
func containsEncrypted(d document.Document) bool {
	for k, v := range d {
		if valueEncrypted(k, v) {
			return true
		}
	}
	return false
}

func valueEncrypted(key string, v any) bool {
	switch val := v.(type) {
	case string:
		return !strings.HasPrefix(key, "_") && isEncrypted(val)
	case []any:
		for _, item := range val {
			if valueEncrypted(key, item) {
				return true
			}
		}
	default:
		if nested, ok := document.AsDocument(v); ok {
			return containsEncrypted(nested)
		}
	}
	return false
}
