// Package token caches the Vault token obtained by AppRole login so repeated
// resolutions on the same host do not log in every time.
package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirName   = ".sx"
	tokenFile = "token"
	dirPerms  = 0700
	filePerms = 0600
)

// ErrNoToken is returned by Read when no token has been cached.
var ErrNoToken = errors.New("no cached token")

// DefaultPath returns the default token cache location (~/.sx/token).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", dirName, tokenFile)
	}
	return filepath.Join(home, dirName, tokenFile)
}

// Sink stores a single Vault token in a file only the owner can read.
type Sink struct {
	path string
}

// NewSink returns a Sink backed by path. An empty path selects DefaultPath.
func NewSink(path string) *Sink {
	if path == "" {
		path = DefaultPath()
	}
	return &Sink{path: path}
}

// Path returns the file the sink reads and writes.
func (s *Sink) Path() string {
	return s.path
}

// Read returns the cached token. A missing or blank file yields ErrNoToken.
func (s *Sink) Read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}

	return tok, nil
}

// Write caches token with 0600 permissions, creating the parent directory
// with 0700 permissions when needed.
func (s *Sink) Write(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerms); err != nil {
		return fmt.Errorf("write token: create directory: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(token+"\n"), filePerms); err != nil {
		return fmt.Errorf("write token: %w", err)
	}

	return nil
}

// Remove deletes the cached token. A missing file is not an error.
func (s *Sink) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}
