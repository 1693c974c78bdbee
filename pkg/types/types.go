// Package types provides shared types used across launch-run packages.
package types

import "time"

// LaunchResult contains information about a launched Dagster Cloud run.
// It is produced once the dagster-cloud CLI has exited successfully and
// its output has been parsed.
type LaunchResult struct {
	// Identifier of the run as reported by dagster-cloud
	RunID string

	// Raw stdout captured from the CLI. In wait mode this holds the
	// progress lines and the terminal status line.
	Output string

	// Correlation id generated for this invocation
	LaunchID string

	// Whether the CLI was asked to wait for the run to finish
	Waited bool

	// When the CLI was started and when it exited
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the CLI invocation took.
func (r *LaunchResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
