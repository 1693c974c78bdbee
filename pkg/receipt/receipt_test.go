package receipt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"google.golang.org/api/option"

	"github.com/jvreagan/launch-run-action/pkg/manifest"
	"github.com/jvreagan/launch-run-action/pkg/params"
	"github.com/jvreagan/launch-run-action/pkg/types"
)

func testReceipt() *Receipt {
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	p := &params.Parameters{
		CloudURL:   "https://acme.dagster.cloud",
		Deployment: "prod",
		APIToken:   "user:0123456789abcdef0123456789abcdef",
		Location:   "some-location",
		Repository: "some-repository",
		Job:        "some-job",
		Wait:       true,
		Interval:   10,
	}
	result := &types.LaunchResult{
		RunID:      "some-run",
		LaunchID:   "launch-1",
		Output:     "Run some-run finished successfully.\n",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	}
	return New(p, result)
}

// recorder captures the last request made against a fake storage endpoint.
type recorder struct {
	mu     sync.Mutex
	method string
	path   string
	header http.Header
	body   []byte
}

func (rec *recorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		rec.body = body
		rec.mu.Unlock()
		w.Header().Set("ETag", `"0x8D"`)
		w.WriteHeader(status)
	}
}

func TestNewReceipt(t *testing.T) {
	r := testReceipt()

	if r.RunID != "some-run" || r.Deployment != "prod" || r.Interval != 10 || !r.Wait {
		t.Errorf("unexpected receipt: %+v", r)
	}
	if got := r.Key("dagster/runs"); got != "dagster/runs/prod/some-run.json" {
		t.Errorf("Key() = %q", got)
	}
	if got := r.Key(""); got != "prod/some-run.json" {
		t.Errorf("Key(\"\") = %q", got)
	}

	data, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(string(data), "0123456789abcdef") {
		t.Error("receipt must not contain the API token")
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("receipt is not valid JSON: %v", err)
	}
	if decoded["run_id"] != "some-run" || decoded["launch_id"] != "launch-1" {
		t.Errorf("decoded receipt = %v", decoded)
	}
	if decoded["started_at"] != "2026-10-18T12:00:00Z" {
		t.Errorf("started_at = %v", decoded["started_at"])
	}
}

func TestFactoryErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := Factory(ctx, nil); err == nil {
		t.Error("expected error for nil configuration")
	}

	tests := []struct {
		name     string
		cfg      *manifest.ReceiptConfig
		errorMsg string
	}{
		{
			name:     "unknown provider",
			cfg:      &manifest.ReceiptConfig{Provider: "ftp"},
			errorMsg: "unknown receipt provider: ftp",
		},
		{
			name:     "s3 without bucket",
			cfg:      &manifest.ReceiptConfig{Provider: manifest.ReceiptS3},
			errorMsg: "bucket is required",
		},
		{
			name:     "gcs without bucket",
			cfg:      &manifest.ReceiptConfig{Provider: manifest.ReceiptGCS},
			errorMsg: "bucket is required",
		},
		{
			name:     "cloud logging without project",
			cfg:      &manifest.ReceiptConfig{Provider: manifest.ReceiptCloudLogging},
			errorMsg: "project_id is required",
		},
		{
			name:     "azure without account",
			cfg:      &manifest.ReceiptConfig{Provider: manifest.ReceiptAzure, Bucket: "receipts"},
			errorMsg: "account_url is required",
		},
		{
			name: "gcs with missing key file",
			cfg: &manifest.ReceiptConfig{
				Provider:        manifest.ReceiptGCS,
				Bucket:          "receipts",
				CredentialsFile: "/nonexistent/key.json",
			},
			errorMsg: "failed to read credentials file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Factory(ctx, tt.cfg)
			if err == nil {
				store.Close()
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %v, want %q", err, tt.errorMsg)
			}
		})
	}
}

func TestS3StorePut(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")

	rec := &recorder{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	store, err := NewS3Store(context.Background(), &manifest.ReceiptConfig{
		Provider: manifest.ReceiptS3,
		Bucket:   "launch-receipts",
		Prefix:   "dagster/runs",
		Region:   "us-east-1",
		Endpoint: server.URL,
	}, config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider("AKIDEXAMPLE", "test-secret", "")))
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	defer store.Close()

	location, err := store.Put(context.Background(), testReceipt())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if location != "s3://launch-receipts/dagster/runs/prod/some-run.json" {
		t.Errorf("location = %q", location)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", rec.method)
	}
	if rec.path != "/launch-receipts/dagster/runs/prod/some-run.json" {
		t.Errorf("path = %s", rec.path)
	}
	if rec.header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.header.Get("Content-Type"))
	}
	if !strings.Contains(string(rec.body), `"run_id": "some-run"`) {
		t.Errorf("body = %s", rec.body)
	}
}

func TestAzureStorePutWithSAS(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec.handler(http.StatusCreated))
	defer server.Close()

	store, err := NewAzureStore(&manifest.ReceiptConfig{
		Provider:   manifest.ReceiptAzure,
		AccountURL: server.URL + "/?sv=2022-11-02&sig=fake",
		Bucket:     "receipts",
		Prefix:     "dagster",
	}, nil)
	if err != nil {
		t.Fatalf("NewAzureStore() error = %v", err)
	}

	location, err := store.Put(context.Background(), testReceipt())
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if location != server.URL+"/receipts/dagster/prod/some-run.json" {
		t.Errorf("location = %q", location)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", rec.method)
	}
	if rec.path != "/receipts/dagster/prod/some-run.json" {
		t.Errorf("path = %s", rec.path)
	}
	if rec.header.Get("x-ms-blob-type") != "BlockBlob" {
		t.Errorf("x-ms-blob-type = %q", rec.header.Get("x-ms-blob-type"))
	}
	if !strings.Contains(string(rec.body), `"deployment": "prod"`) {
		t.Errorf("body = %s", rec.body)
	}
}

func TestGCSStoreCreation(t *testing.T) {
	store, err := NewGCSStore(context.Background(), &manifest.ReceiptConfig{
		Provider: manifest.ReceiptGCS,
		Bucket:   "launch-receipts",
	}, option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewGCSStore() error = %v", err)
	}
	defer store.Close()

	if store.Name() != "gcs" {
		t.Errorf("Name() = %q", store.Name())
	}
}

func TestGoogleCredentialsInvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := googleCredentials(context.Background(), path); err == nil || !strings.Contains(err.Error(), "failed to parse credentials file") {
		t.Errorf("googleCredentials() error = %v", err)
	}
	if opts, err := googleCredentials(context.Background(), ""); err != nil || opts != nil {
		t.Errorf("googleCredentials(\"\") = %v, %v; want nil, nil", opts, err)
	}
}
