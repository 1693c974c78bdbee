// Package receipt archives a record of every launch to cloud storage so
// runs can be traced back to the workflow that started them.
//
// Receipts are written once, after the run id has been published; they
// never contain the API token.
package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/jvreagan/launch-run-action/pkg/logging"
	"github.com/jvreagan/launch-run-action/pkg/manifest"
	"github.com/jvreagan/launch-run-action/pkg/params"
	"github.com/jvreagan/launch-run-action/pkg/types"
)

// Receipt is the archived record of one launch.
type Receipt struct {
	LaunchID   string    `json:"launch_id"`
	RunID      string    `json:"run_id"`
	CloudURL   string    `json:"cloud_url"`
	Deployment string    `json:"deployment"`
	Location   string    `json:"location"`
	Repository string    `json:"repository"`
	Job        string    `json:"job"`
	Wait       bool      `json:"wait"`
	Interval   int       `json:"interval,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Output     string    `json:"output"`
}

// New builds the receipt for a completed launch.
func New(p *params.Parameters, result *types.LaunchResult) *Receipt {
	return &Receipt{
		LaunchID:   result.LaunchID,
		RunID:      result.RunID,
		CloudURL:   p.CloudURL,
		Deployment: p.Deployment,
		Location:   p.Location,
		Repository: p.Repository,
		Job:        p.Job,
		Wait:       p.Wait,
		Interval:   p.Interval,
		StartedAt:  result.StartedAt.UTC(),
		FinishedAt: result.FinishedAt.UTC(),
		Output:     logging.SanitizeString(result.Output),
	}
}

// Key returns the object name for this receipt: <prefix>/<deployment>/<run_id>.json
func (r *Receipt) Key(prefix string) string {
	return path.Join(prefix, r.Deployment, r.RunID+".json")
}

// Encode renders the receipt as indented JSON.
func (r *Receipt) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	return append(data, '\n'), nil
}

// Store persists receipts.
type Store interface {
	// Name returns the provider name (e.g., "s3", "gcs")
	Name() string

	// Put writes the receipt and returns where it was stored.
	Put(ctx context.Context, r *Receipt) (string, error)

	// Close releases client resources.
	Close() error
}

// Factory creates the store named in the receipt configuration.
//
// Supported providers: s3, gcs, cloud-logging, azure
func Factory(ctx context.Context, cfg *manifest.ReceiptConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("receipt configuration is required")
	}
	switch cfg.Provider {
	case manifest.ReceiptS3:
		return NewS3Store(ctx, cfg)
	case manifest.ReceiptGCS:
		return NewGCSStore(ctx, cfg)
	case manifest.ReceiptCloudLogging:
		return NewCloudLoggingStore(ctx, cfg)
	case manifest.ReceiptAzure:
		return NewAzureStore(cfg, nil)
	default:
		return nil, fmt.Errorf("unknown receipt provider: %s", cfg.Provider)
	}
}
