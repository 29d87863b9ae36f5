// Package vault reads secret documents from a HashiCorp Vault KV v2 mount so
// the secret cascade can run against Vault instead of ejson files.
package vault

import (
	"context"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

// Client wraps the official HashiCorp Vault API client with the KV v2 mount
// secret documents are read from.
type Client struct {
	inner *vaultapi.Client
	mount string
}

// NewClient creates a Vault API client pointed at address. mount is the KV v2
// mount point (e.g. "secret"). The token is taken from VAULT_TOKEN when set.
func NewClient(address string, mount string) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address

	inner, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	return &Client{
		inner: inner,
		mount: mount,
	}, nil
}

// NewClientWithToken creates a Vault API client with an existing auth token.
func NewClientWithToken(address string, mount string, token string) (*Client, error) {
	client, err := NewClient(address, mount)
	if err != nil {
		return nil, err
	}

	client.inner.SetToken(token)

	return client, nil
}

// Token returns the current authentication token.
func (c *Client) Token() string {
	return c.inner.Token()
}

// SetToken sets the authentication token on the client.
func (c *Client) SetToken(token string) {
	c.inner.SetToken(token)
}

// TokenTTL looks up the current token and returns its remaining TTL.
func (c *Client) TokenTTL(ctx context.Context) (time.Duration, error) {
	secret, err := c.inner.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("looking up token TTL: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return 0, fmt.Errorf("looking up token TTL: empty response")
	}

	ttl, err := secret.TokenTTL()
	if err != nil {
		return 0, fmt.Errorf("parsing token TTL: %w", err)
	}

	return ttl, nil
}

// IsAuthenticated reports whether the client holds a token Vault still
// accepts. Expired or revoked tokens fail the self lookup.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	if c.inner.Token() == "" {
		return false
	}

	secret, err := c.inner.Auth().Token().LookupSelfWithContext(ctx)
	return err == nil && secret != nil && secret.Data != nil
}
