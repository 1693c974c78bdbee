// Package command assembles the dagster-cloud command line for a launch.
package command

import (
	"strconv"

	"github.com/jvreagan/launch-run-action/pkg/params"
)

// DefaultExecutable is the name of the Dagster Cloud CLI on PATH.
const DefaultExecutable = "dagster-cloud"

// LaunchArgs returns the arguments for "dagster-cloud job launch".
//
// The order is fixed: the CLI's test fixtures match on the exact command
// line, so flags must not be reordered.
func LaunchArgs(p *params.Parameters) []string {
	args := []string{
		"job", "launch",
		"--url", p.CloudURL,
		"--deployment", p.Deployment,
		"--api-token", p.APIToken,
		"--location", p.Location,
		"--repository", p.Repository,
		"--job", p.Job,
		"--tags", p.TagsJSON,
		"--config-json", p.ConfigJSON,
	}
	if p.Wait {
		args = append(args, "--wait")
	}
	if p.Interval > 0 {
		args = append(args, "--interval", strconv.Itoa(p.Interval))
	}
	return args
}
