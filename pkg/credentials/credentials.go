// Package credentials resolves the Dagster Cloud API token from the source
// named in the manifest: the step environment, AWS Secrets Manager, or
// HashiCorp Vault.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/jvreagan/launch-run-action/pkg/logging"
	"github.com/jvreagan/launch-run-action/pkg/manifest"
	"github.com/jvreagan/launch-run-action/pkg/params"
	"github.com/jvreagan/launch-run-action/pkg/vault"
)

// Token is a resolved API token and where it came from.
type Token struct {
	Value  string
	Source string
}

// FromSecretStore reports whether the token was fetched at runtime rather
// than supplied by the workflow. Such tokens are unknown to the runner's
// secret masking and must be masked explicitly.
func (t *Token) FromSecretStore() bool {
	return t.Source != manifest.SourceEnvironment
}

// Resolver fetches API tokens.
type Resolver struct {
	// Getenv is used for Vault credential fallbacks
	Getenv func(string) string

	// Extra options for loading the AWS configuration
	AWSOptions []func(*config.LoadOptions) error
}

// Resolve returns the API token for the configured source. envToken is the
// value of DAGSTER_CLOUD_API_TOKEN and is only consulted for the
// environment source.
func (r *Resolver) Resolve(ctx context.Context, creds manifest.CredentialsConfig, envToken string) (*Token, error) {
	var (
		value string
		err   error
	)

	source := creds.Source
	if source == "" {
		source = manifest.SourceEnvironment
	}

	switch source {
	case manifest.SourceEnvironment:
		value = envToken
		if strings.TrimSpace(value) == "" {
			return nil, &params.ValidationError{Problems: []string{params.EnvAPIToken + " is required"}}
		}
	case manifest.SourceSecretsManager:
		value, err = r.getFromSecretsManager(ctx, creds.SecretsManager)
	case manifest.SourceVault:
		value, err = r.getFromVault(ctx, creds.Vault)
	default:
		return nil, fmt.Errorf("unknown credentials source: %s", source)
	}
	if err != nil {
		return nil, err
	}

	token := &Token{Value: strings.TrimSpace(value), Source: source}
	if err := ValidateToken(token); err != nil {
		return nil, err
	}

	logging.Debug("Resolved API token", "source", source)
	return token, nil
}

// getFromSecretsManager retrieves the token from AWS Secrets Manager
func (r *Resolver) getFromSecretsManager(ctx context.Context, sm *manifest.SecretsManagerConfig) (string, error) {
	if sm == nil || sm.SecretID == "" {
		return "", fmt.Errorf("no secret configured for secrets-manager credentials")
	}

	opts := append([]func(*config.LoadOptions) error{}, r.AWSOptions...)
	if sm.Region != "" {
		opts = append(opts, config.WithRegion(sm.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if sm.Endpoint != "" {
			o.BaseEndpoint = aws.String(sm.Endpoint)
		}
	})

	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(sm.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret %s: %w", sm.SecretID, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", sm.SecretID)
	}

	secret := *result.SecretString
	if sm.Key == "" {
		return secret, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	value, ok := fields[sm.Key].(string)
	if !ok {
		return "", fmt.Errorf("key %s not found in secret %s", sm.Key, sm.SecretID)
	}
	return value, nil
}

// getFromVault retrieves the token from Vault KV v2
func (r *Resolver) getFromVault(ctx context.Context, vc *manifest.VaultConfig) (string, error) {
	client, err := vault.NewClient(vc, r.getenv)
	if err != nil {
		return "", err
	}
	token, err := client.FetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch API token from vault: %w", err)
	}
	return token, nil
}

func (r *Resolver) getenv(key string) string {
	if r.Getenv == nil {
		return ""
	}
	return r.Getenv(key)
}

// ValidateToken checks that a token is usable on a command line.
func ValidateToken(t *Token) error {
	if t.Value == "" {
		return fmt.Errorf("API token from %s is empty", t.Source)
	}
	if strings.ContainsAny(t.Value, " \t\r\n") {
		return fmt.Errorf("API token from %s contains whitespace", t.Source)
	}
	return nil
}
