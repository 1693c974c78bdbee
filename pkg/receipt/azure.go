package receipt

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jvreagan/launch-run-action/pkg/manifest"
)

// AzureStore writes receipts to an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	account   string
	container string
	prefix    string
}

// NewAzureStore creates an Azure Blob receipt store.
//
// Authentication methods:
//  1. SAS: an account_url carrying a SAS query string is used as-is
//  2. The given credential, when not nil
//  3. Default Azure credentials (environment, workload identity, Azure CLI)
func NewAzureStore(cfg *manifest.ReceiptConfig, cred azcore.TokenCredential) (*AzureStore, error) {
	if cfg.AccountURL == "" {
		return nil, fmt.Errorf("account_url is required for azure receipts")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("container name is required for azure receipts")
	}

	u, err := url.Parse(cfg.AccountURL)
	if err != nil {
		return nil, fmt.Errorf("invalid account_url: %w", err)
	}

	var client *azblob.Client
	if u.RawQuery != "" {
		client, err = azblob.NewClientWithNoCredential(cfg.AccountURL, nil)
	} else {
		if cred == nil {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create default credential: %w", err)
			}
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &AzureStore{
		client:    client,
		account:   strings.TrimSuffix(u.Scheme+"://"+u.Host+u.Path, "/"),
		container: cfg.Bucket,
		prefix:    cfg.Prefix,
	}, nil
}

// Name returns the provider name.
func (s *AzureStore) Name() string {
	return manifest.ReceiptAzure
}

// Put uploads the receipt as a block blob.
func (s *AzureStore) Put(ctx context.Context, r *Receipt) (string, error) {
	data, err := r.Encode()
	if err != nil {
		return "", err
	}

	key := r.Key(s.prefix)
	_, err = s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr("application/json"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt to container %s: %w", s.container, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.account, s.container, key), nil
}

// Close is a no-op; the blob client holds no resources that need releasing.
func (s *AzureStore) Close() error {
	return nil
}
