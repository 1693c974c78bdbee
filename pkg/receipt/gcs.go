package receipt

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/jvreagan/launch-run-action/pkg/manifest"
)

// GCSStore writes receipts to a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a Cloud Storage receipt store. Without a
// credentials_file it uses Application Default Credentials, which is what
// google-github-actions/auth sets up.
func NewGCSStore(ctx context.Context, cfg *manifest.ReceiptConfig, opts ...option.ClientOption) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for gcs receipts")
	}

	credOpts, err := googleCredentials(ctx, cfg.CredentialsFile, storage.ScopeReadWrite)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, append(credOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// googleCredentials loads a service account key file, if one is configured.
func googleCredentials(ctx context.Context, path string, scopes ...string) ([]option.ClientOption, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// Name returns the provider name.
func (s *GCSStore) Name() string {
	return manifest.ReceiptGCS
}

// Put uploads the receipt as a JSON object.
func (s *GCSStore) Put(ctx context.Context, r *Receipt) (string, error) {
	data, err := r.Encode()
	if err != nil {
		return "", err
	}

	key := r.Key(s.prefix)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload receipt to gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to upload receipt to gs://%s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Close closes the Cloud Storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
