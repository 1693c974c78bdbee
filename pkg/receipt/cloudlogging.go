package receipt

import (
	"context"
	"encoding/json"
	"fmt"

	cloudlogging "cloud.google.com/go/logging"
	"google.golang.org/api/option"

	"github.com/jvreagan/launch-run-action/pkg/manifest"
)

// CloudLoggingStore writes receipts as structured Cloud Logging entries.
type CloudLoggingStore struct {
	client    *cloudlogging.Client
	logger    *cloudlogging.Logger
	projectID string
	logName   string
}

// NewCloudLoggingStore creates a Cloud Logging receipt store.
func NewCloudLoggingStore(ctx context.Context, cfg *manifest.ReceiptConfig, opts ...option.ClientOption) (*CloudLoggingStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required for cloud-logging receipts")
	}
	logName := cfg.LogName
	if logName == "" {
		logName = "dagster-launches"
	}

	credOpts, err := googleCredentials(ctx, cfg.CredentialsFile, cloudlogging.WriteScope)
	if err != nil {
		return nil, err
	}

	client, err := cloudlogging.NewClient(ctx, cfg.ProjectID, append(credOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Logging client: %w", err)
	}

	return &CloudLoggingStore{
		client:    client,
		logger:    client.Logger(logName, cloudlogging.CommonLabels(map[string]string{"tool": "launch-run"})),
		projectID: cfg.ProjectID,
		logName:   logName,
	}, nil
}

// Name returns the provider name.
func (s *CloudLoggingStore) Name() string {
	return manifest.ReceiptCloudLogging
}

// Put writes the receipt synchronously so a failure can be reported.
func (s *CloudLoggingStore) Put(ctx context.Context, r *Receipt) (string, error) {
	data, err := r.Encode()
	if err != nil {
		return "", err
	}

	entry := cloudlogging.Entry{
		Severity: cloudlogging.Info,
		Payload:  json.RawMessage(data),
		Labels: map[string]string{
			"deployment": r.Deployment,
			"run_id":     r.RunID,
			"launch_id":  r.LaunchID,
		},
	}
	if err := s.logger.LogSync(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to write receipt to Cloud Logging: %w", err)
	}
	return fmt.Sprintf("projects/%s/logs/%s", s.projectID, s.logName), nil
}

// Close flushes and closes the Cloud Logging client.
func (s *CloudLoggingStore) Close() error {
	return s.client.Close()
}
