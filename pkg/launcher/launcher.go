// Package launcher ties the launch steps together: validate the
// parameters, run "dagster-cloud job launch", extract the run id, publish
// it as a step output and optionally archive a receipt.
package launcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jvreagan/launch-run-action/pkg/command"
	"github.com/jvreagan/launch-run-action/pkg/logging"
	"github.com/jvreagan/launch-run-action/pkg/output"
	"github.com/jvreagan/launch-run-action/pkg/params"
	"github.com/jvreagan/launch-run-action/pkg/receipt"
	"github.com/jvreagan/launch-run-action/pkg/runner"
	"github.com/jvreagan/launch-run-action/pkg/types"
)

// Launcher launches Dagster Cloud runs through the CLI.
type Launcher struct {
	runner     runner.Runner
	executable string
	stdout     io.Writer

	// Receipts, when set, archives a record of each launch
	Receipts receipt.Store

	now   func() time.Time
	newID func() string
}

// New creates a Launcher that invokes executable through r and prints the
// launch summary to stdout.
func New(r runner.Runner, executable string, stdout io.Writer) *Launcher {
	if executable == "" {
		executable = command.DefaultExecutable
	}
	return &Launcher{
		runner:     r,
		executable: executable,
		stdout:     stdout,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run launches the job, publishes the run id and archives a receipt.
func (l *Launcher) Run(ctx context.Context, p *params.Parameters) (*types.LaunchResult, error) {
	result, err := l.Launch(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := l.Publish(p, result); err != nil {
		return nil, err
	}
	l.Archive(ctx, p, result)
	return result, nil
}

// Launch invokes the CLI and parses its output. Nothing is written to the
// step outputs; see Publish.
func (l *Launcher) Launch(ctx context.Context, p *params.Parameters) (*types.LaunchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	launchID := l.newID()
	log := logging.GetLogger().With("launch_id", launchID)
	log.Info("Launching Dagster Cloud run",
		"deployment", p.Deployment,
		"location", p.Location,
		"repository", p.Repository,
		"job", p.Job,
		"wait", p.Wait,
		"interval", p.Interval,
	)

	started := l.now()
	out, err := l.runner.Run(ctx, l.executable, command.LaunchArgs(p)...)
	if err != nil {
		return nil, fmt.Errorf("dagster-cloud job launch failed: %w", err)
	}
	finished := l.now()

	runID, err := output.RunID(out)
	if err != nil {
		log.Error("Could not find run id in CLI output", "output", logging.SanitizeString(out))
		return nil, err
	}

	result := &types.LaunchResult{
		RunID:      runID,
		Output:     out,
		LaunchID:   launchID,
		Waited:     p.Wait,
		StartedAt:  started,
		FinishedAt: finished,
	}
	log.Info("Run launched", "run_id", runID, "duration", result.Duration().String())
	return result, nil
}

// Publish records the run id in the step outputs and announces it.
func (l *Launcher) Publish(p *params.Parameters, result *types.LaunchResult) error {
	if err := output.WriteOutput(p.OutputPath, output.RunIDKey, result.RunID); err != nil {
		return err
	}
	return output.AnnounceLaunch(l.stdout, result.RunID)
}

// Archive writes a launch receipt when a store is configured. The run has
// already been launched at this point, so failures are only logged.
func (l *Launcher) Archive(ctx context.Context, p *params.Parameters, result *types.LaunchResult) {
	if l.Receipts == nil {
		return
	}
	location, err := l.Receipts.Put(ctx, receipt.New(p, result))
	if err != nil {
		logging.Warn("Failed to archive launch receipt",
			"provider", l.Receipts.Name(), "run_id", result.RunID, "error", err.Error())
		return
	}
	logging.Info("Archived launch receipt", "provider", l.Receipts.Name(), "location", location)
}
