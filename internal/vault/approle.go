package vault

import (
	"context"
	"fmt"
)

// AppRoleAuth authenticates to Vault using AppRole credentials, the usual
// method for deploy pipelines and containers resolving secrets at boot. On
// success the client's token is set to the newly obtained token.
func AppRoleAuth(ctx context.Context, client *Client, roleID string, secretID string) error {
	if roleID == "" {
		return fmt.Errorf("approle auth: role_id is required")
	}

	if secretID == "" {
		return fmt.Errorf("approle auth: secret_id is required")
	}

	data := map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	}

	secret, err := client.inner.Logical().WriteWithContext(ctx, "auth/approle/login", data)
	if err != nil {
		return fmt.Errorf("approle auth: %w", err)
	}

	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("approle auth: empty auth response")
	}

	client.SetToken(secret.Auth.ClientToken)

	return nil
}
