// Package vault reads the Dagster Cloud API token from HashiCorp Vault's
// KV v2 secrets engine. It supports token and AppRole authentication.
package vault

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/jvreagan/launch-run-action/pkg/manifest"
)

// Environment fallbacks for credentials kept out of the manifest.
const (
	EnvToken    = "VAULT_TOKEN"
	EnvSecretID = "VAULT_SECRET_ID"
)

// Client wraps the Vault API client.
type Client struct {
	client *vault.Client
	config *manifest.VaultConfig
	getenv func(string) string
}

// NewClient creates a Vault client for the given configuration. It does not
// authenticate; call Authenticate before reading secrets.
func NewClient(config *manifest.VaultConfig, getenv func(string) string) (*Client, error) {
	if config == nil || config.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address

	if config.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	// DefaultConfig picks up VAULT_TOKEN on its own; authentication is
	// decided explicitly by Authenticate.
	client.ClearToken()

	return &Client{
		client: client,
		config: config,
		getenv: getenv,
	}, nil
}

// Authenticate logs in using the configured method.
func (c *Client) Authenticate(ctx context.Context) error {
	switch c.config.Auth.Method {
	case "token":
		token := c.config.Auth.Token
		if token == "" {
			token = c.getenv(EnvToken)
		}
		if token == "" {
			return fmt.Errorf("vault token is required for token authentication (set auth.token or %s)", EnvToken)
		}
		c.client.SetToken(token)
		return nil

	case "approle":
		return c.authenticateWithAppRole(ctx)

	default:
		return fmt.Errorf("unsupported auth method: %s", c.config.Auth.Method)
	}
}

func (c *Client) authenticateWithAppRole(ctx context.Context) error {
	secretID := c.config.Auth.SecretID
	if secretID == "" {
		secretID = c.getenv(EnvSecretID)
	}
	if c.config.Auth.RoleID == "" {
		return fmt.Errorf("role_id is required for approle authentication")
	}
	if secretID == "" {
		return fmt.Errorf("secret_id is required for approle authentication (set auth.secret_id or %s)", EnvSecretID)
	}

	resp, err := c.client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   c.config.Auth.RoleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("approle login failed: %w", err)
	}
	if resp == nil || resp.Auth == nil {
		return fmt.Errorf("approle login returned no auth token")
	}

	c.client.SetToken(resp.Auth.ClientToken)
	return nil
}

// GetSecret fetches one string value from a KV v2 secret. The path must
// include "/data/" after the mount point, e.g. "secret/data/dagster".
func (c *Client) GetSecret(ctx context.Context, path, key string) (string, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found at path: %s", path)
	}

	// KV v2 nests the values under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected secret format at path: %s", path)
	}

	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %s not found in secret at path: %s", key, path)
	}
	valueStr, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key %s is not a string at path: %s", key, path)
	}
	return valueStr, nil
}

// FetchToken authenticates and reads the configured token in one step.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	return c.GetSecret(ctx, c.config.Path, c.config.Key)
}
