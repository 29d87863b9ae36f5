package ejson

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKeyDir is where ejson private keys are stored, one file per public
// key named after its hex encoding.
const DefaultKeyDir = "/opt/ejson/keys"

// ErrKeyNotFound is returned when no private key is available for a
// document's public key.
var ErrKeyNotFound = errors.New("private key not found")

// checkKeyFile confirms the key directory holds a private key for publicKey
// before decryption is attempted, so a missing key surfaces as
// ErrKeyNotFound.
func checkKeyFile(keyDir string, publicKey string) error {
	pub := strings.TrimSpace(publicKey)
	if pub == "" || strings.ContainsAny(pub, `/\`) || pub == "." || pub == ".." {
		return fmt.Errorf("invalid public key %q", publicKey)
	}

	if _, err := os.Stat(filepath.Join(keyDir, pub)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("public key %s in %s: %w", pub, keyDir, ErrKeyNotFound)
		}
		return fmt.Errorf("checking private key for %s: %w", pub, err)
	}

	return nil
}
