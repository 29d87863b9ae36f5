package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	vaultapi "github.com/hashicorp/vault/api"

	"go.dot.industries/sx/internal/document"
)

// ReadDocument reads the secret at a KV v2 path, relative to the client's
// mount, and returns its data as a nested Document. For example, with mount
// "secret" and path "app/config/secrets", the API path is
// "secret/data/app/config/secrets".
//
// Returns nil when the path does not exist or has been deleted.
// Returns a wrapped error on permission denied or other failures.
func (c *Client) ReadDocument(ctx context.Context, kvPath string) (document.Document, error) {
	fullPath := buildKV2Path(c.mount, kvPath)

	secret, err := c.inner.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		if isPermissionDenied(err) {
			return nil, fmt.Errorf("reading KV path %q: permission denied: %w", kvPath, err)
		}
		return nil, fmt.Errorf("reading KV path %q: %w", kvPath, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	return extractKV2Data(secret.Data, kvPath)
}

// buildKV2Path constructs the full KV v2 API path by inserting "data" between
// the mount point and the secret path.
func buildKV2Path(mount string, kvPath string) string {
	return path.Join(mount, "data", kvPath)
}

// extractKV2Data parses the nested KV v2 response structure. The Vault KV v2
// API returns data in response.Data["data"]; a deleted version has a nil
// data field. Nested objects are kept as nested mappings.
func extractKV2Data(responseData map[string]interface{}, kvPath string) (document.Document, error) {
	dataRaw, ok := responseData["data"]
	if !ok || dataRaw == nil {
		return nil, nil
	}

	dataMap, ok := dataRaw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("reading KV path %q: unexpected data format", kvPath)
	}

	doc, _ := document.AsDocument(document.Normalize(dataMap))
	return doc, nil
}

// isPermissionDenied checks whether a Vault API error is a 403 permission denied.
func isPermissionDenied(err error) bool {
	var respErr *vaultapi.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusForbidden
	}
	return false
}
