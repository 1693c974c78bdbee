// Package manifest provides types and functions for parsing and validating
// launch-run manifest files. A manifest is an optional YAML file that tells
// launch-run where the dagster-cloud CLI lives, where to get the Dagster
// Cloud API token, and where to archive launch receipts.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credential sources for the Dagster Cloud API token.
const (
	SourceEnvironment    = "environment"
	SourceSecretsManager = "secrets-manager"
	SourceVault          = "vault"
)

// Receipt providers.
const (
	ReceiptS3           = "s3"
	ReceiptGCS          = "gcs"
	ReceiptCloudLogging = "cloud-logging"
	ReceiptAzure        = "azure"
)

// Manifest represents the complete launch-run configuration beyond the
// step inputs.
//
// Example:
//
//	manifest := &Manifest{
//	  CLI: CLIConfig{Path: "/usr/local/bin/dagster-cloud"},
//	  Credentials: CredentialsConfig{Source: "vault"},
//	}
type Manifest struct {
	// Version of the manifest schema (currently "1.0")
	Version string `yaml:"version"`

	// Dagster Cloud CLI settings
	CLI CLIConfig `yaml:"cli,omitempty"`

	// Where the API token comes from
	Credentials CredentialsConfig `yaml:"credentials,omitempty"`

	// Where launch receipts are archived - optional
	Receipt *ReceiptConfig `yaml:"receipt,omitempty"`
}

// CLIConfig locates the dagster-cloud executable.
type CLIConfig struct {
	// Executable name or path (default: dagster-cloud)
	Path string `yaml:"path,omitempty"`
}

// CredentialsConfig selects the API token source.
type CredentialsConfig struct {
	// Source: environment (default), secrets-manager, vault
	Source string `yaml:"source,omitempty"`

	// AWS Secrets Manager settings, used when Source is secrets-manager
	SecretsManager *SecretsManagerConfig `yaml:"secrets_manager,omitempty"`

	// HashiCorp Vault settings, used when Source is vault
	Vault *VaultConfig `yaml:"vault,omitempty"`
}

// SecretsManagerConfig points at the AWS Secrets Manager secret holding the token.
type SecretsManagerConfig struct {
	// Secret name or ARN
	SecretID string `yaml:"secret_id"`

	// AWS region - optional, falls back to the SDK default chain
	Region string `yaml:"region,omitempty"`

	// JSON field holding the token when the secret is a JSON document - optional
	Key string `yaml:"key,omitempty"`

	// Endpoint override (e.g., LocalStack) - optional
	Endpoint string `yaml:"endpoint,omitempty"`
}

// VaultConfig points at the Vault KV v2 secret holding the token.
type VaultConfig struct {
	// Vault server address (e.g., https://vault.example.com:8200)
	Address string `yaml:"address"`

	// Authentication settings
	Auth VaultAuthConfig `yaml:"auth"`

	// KV v2 path including "data/" (e.g., secret/data/dagster)
	Path string `yaml:"path"`

	// Key within the secret (default: api_token)
	Key string `yaml:"key,omitempty"`

	// Skip TLS verification (not recommended for production)
	TLSSkipVerify bool `yaml:"tls_skip_verify,omitempty"`
}

// VaultAuthConfig holds Vault login settings. Secrets are best left out of
// the file: Token falls back to VAULT_TOKEN and SecretID to VAULT_SECRET_ID.
type VaultAuthConfig struct {
	// Method: token or approle
	Method string `yaml:"method"`

	Token    string `yaml:"token,omitempty"`
	RoleID   string `yaml:"role_id,omitempty"`
	SecretID string `yaml:"secret_id,omitempty"`
}

// ReceiptConfig selects where launch receipts are written.
type ReceiptConfig struct {
	// Provider: s3, gcs, cloud-logging, azure
	Provider string `yaml:"provider"`

	// Bucket (s3, gcs) or container (azure)
	Bucket string `yaml:"bucket,omitempty"`

	// Object key prefix - optional
	Prefix string `yaml:"prefix,omitempty"`

	// S3: region, role to assume, endpoint override
	Region   string `yaml:"region,omitempty"`
	RoleARN  string `yaml:"role_arn,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	// Cloud Logging: project and log name (default: dagster-launches)
	ProjectID string `yaml:"project_id,omitempty"`
	LogName   string `yaml:"log_name,omitempty"`

	// GCS / Cloud Logging: path to a service account key - optional,
	// falls back to Application Default Credentials
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// Azure: storage account URL (https://<account>.blob.core.windows.net)
	AccountURL string `yaml:"account_url,omitempty"`
}

// Default returns the manifest used when no file is given.
func Default() *Manifest {
	m := &Manifest{Version: "1.0"}
	m.applyDefaults()
	return m
}

// Load reads a manifest file from disk, parses it, and validates it.
// Returns an error if the file cannot be read, is invalid YAML, or fails validation.
//
// Example:
//
//	manifest, err := manifest.Load("launch-manifest.yaml")
//	if err != nil {
//	  log.Fatal(err)
//	}
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	manifest.applyDefaults()
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &manifest, nil
}

func (m *Manifest) applyDefaults() {
	if m.CLI.Path == "" {
		m.CLI.Path = "dagster-cloud"
	}
	if m.Credentials.Source == "" {
		m.Credentials.Source = SourceEnvironment
	}
	if v := m.Credentials.Vault; v != nil && v.Key == "" {
		v.Key = "api_token"
	}
	if r := m.Receipt; r != nil && r.Provider == ReceiptCloudLogging && r.LogName == "" {
		r.LogName = "dagster-launches"
	}
}

// Validate checks if the manifest has all required fields and valid values.
// Returns an error describing what is invalid.
func (m *Manifest) Validate() error {
	switch m.Credentials.Source {
	case SourceEnvironment, "":
	case SourceSecretsManager:
		if m.Credentials.SecretsManager == nil || m.Credentials.SecretsManager.SecretID == "" {
			return fmt.Errorf("credentials.secrets_manager.secret_id is required for secrets-manager credentials")
		}
	case SourceVault:
		v := m.Credentials.Vault
		if v == nil || v.Address == "" {
			return fmt.Errorf("credentials.vault.address is required for vault credentials")
		}
		if v.Path == "" {
			return fmt.Errorf("credentials.vault.path is required for vault credentials")
		}
		if v.Auth.Method != "token" && v.Auth.Method != "approle" {
			return fmt.Errorf("credentials.vault.auth.method must be token or approle, got %q", v.Auth.Method)
		}
	default:
		return fmt.Errorf("unknown credentials source: %s", m.Credentials.Source)
	}

	if r := m.Receipt; r != nil {
		switch r.Provider {
		case ReceiptS3, ReceiptGCS:
			if r.Bucket == "" {
				return fmt.Errorf("receipt.bucket is required for %s receipts", r.Provider)
			}
		case ReceiptCloudLogging:
			if r.ProjectID == "" {
				return fmt.Errorf("receipt.project_id is required for cloud-logging receipts")
			}
		case ReceiptAzure:
			if r.AccountURL == "" {
				return fmt.Errorf("receipt.account_url is required for azure receipts")
			}
			if r.Bucket == "" {
				return fmt.Errorf("receipt.bucket (container name) is required for azure receipts")
			}
		default:
			return fmt.Errorf("unknown receipt provider: %s", r.Provider)
		}
	}

	return nil
}
