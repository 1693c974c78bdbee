// Package params reads the launch-run inputs from the process environment.
//
// GitHub Actions exposes step inputs as INPUT_<NAME> variables and the
// Dagster Cloud connection details as DAGSTER_CLOUD_* variables. An input
// that is declared but left blank arrives as an empty string, so empty and
// unset are treated the same way throughout.
package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variable names consumed by launch-run.
const (
	EnvCloudURL   = "DAGSTER_CLOUD_URL"
	EnvDeployment = "INPUT_DEPLOYMENT"
	EnvAPIToken   = "DAGSTER_CLOUD_API_TOKEN"
	EnvLocation   = "INPUT_LOCATION_NAME"
	EnvRepository = "INPUT_REPOSITORY_NAME"
	EnvJob        = "INPUT_JOB_NAME"
	EnvTags       = "INPUT_TAGS_JSON"
	EnvConfig     = "INPUT_CONFIG_JSON"
	EnvWait       = "INPUT_WAIT"
	EnvInterval   = "INPUT_INTERVAL"
	EnvOutput     = "GITHUB_OUTPUT"
	EnvManifest   = "INPUT_MANIFEST"
)

// ErrIntervalWithoutWait is the problem reported when a poll interval is
// given but the launch is not waiting for the run to finish.
const ErrIntervalWithoutWait = "interval parameter can only be used when wait is true"

// Parameters holds everything needed to launch one Dagster Cloud run.
type Parameters struct {
	// Dagster Cloud organization URL (e.g., https://acme.dagster.cloud)
	CloudURL string

	// Deployment to launch into (e.g., prod)
	Deployment string

	// API token. May be empty when the token comes from a secret store
	// configured in the manifest; see package credentials.
	APIToken string

	// Code location, repository and job identifying what to run
	Location   string
	Repository string
	Job        string

	// Run tags and run config, passed to the CLI verbatim
	TagsJSON   string
	ConfigJSON string

	// Wait for the run to reach a terminal state
	Wait bool

	// Seconds between status checks while waiting. Zero means the CLI default.
	Interval int

	// File that receives key=value step outputs
	OutputPath string

	// Optional launch manifest (see package manifest)
	ManifestPath string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// field describes how one environment variable populates Parameters.
type field struct {
	env      string
	required bool
	def      string
	set      func(p *Parameters, value string) error
}

func stringField(env string, required bool, dst func(p *Parameters) *string) field {
	return field{
		env:      env,
		required: required,
		set: func(p *Parameters, value string) error {
			*dst(p) = value
			return nil
		},
	}
}

var fields = []field{
	stringField(EnvCloudURL, true, func(p *Parameters) *string { return &p.CloudURL }),
	stringField(EnvDeployment, true, func(p *Parameters) *string { return &p.Deployment }),
	stringField(EnvAPIToken, false, func(p *Parameters) *string { return &p.APIToken }),
	stringField(EnvLocation, true, func(p *Parameters) *string { return &p.Location }),
	stringField(EnvRepository, true, func(p *Parameters) *string { return &p.Repository }),
	stringField(EnvJob, true, func(p *Parameters) *string { return &p.Job }),
	stringField(EnvTags, true, func(p *Parameters) *string { return &p.TagsJSON }),
	stringField(EnvConfig, true, func(p *Parameters) *string { return &p.ConfigJSON }),
	{
		env: EnvWait,
		def: "false",
		set: func(p *Parameters, value string) error {
			wait, err := ParseWait(value)
			if err != nil {
				return err
			}
			p.Wait = wait
			return nil
		},
	},
	{
		env: EnvInterval,
		set: func(p *Parameters, value string) error {
			if value == "" {
				return nil
			}
			interval, err := strconv.Atoi(value)
			if err != nil || interval <= 0 {
				return fmt.Errorf("%s must be a positive integer, got %q", EnvInterval, value)
			}
			p.Interval = interval
			return nil
		},
	},
	stringField(EnvOutput, true, func(p *Parameters) *string { return &p.OutputPath }),
	stringField(EnvManifest, false, func(p *Parameters) *string { return &p.ManifestPath }),
}

// FromEnv reads and validates the launch parameters. All problems are
// collected and returned together as a *ValidationError.
//
// The API token is not required here: whether DAGSTER_CLOUD_API_TOKEN must
// be set depends on the configured credentials source.
func FromEnv(lookup LookupFunc) (*Parameters, error) {
	p := &Parameters{}
	var problems []string

	for _, f := range fields {
		value, _ := lookup(f.env)
		value = strings.TrimSpace(value)
		if value == "" {
			if f.required {
				problems = append(problems, fmt.Sprintf("%s is required", f.env))
				continue
			}
			value = f.def
		}
		if err := f.set(p, value); err != nil {
			problems = append(problems, err.Error())
		}
	}

	// An interval given without wait is reported ahead of everything else.
	if raw, _ := lookup(EnvInterval); strings.TrimSpace(raw) != "" && !p.Wait {
		problems = append([]string{ErrIntervalWithoutWait}, problems...)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return p, nil
}

// Validate checks a Parameters value built in code rather than read from
// the environment.
func (p *Parameters) Validate() error {
	var problems []string
	if p.Interval != 0 && !p.Wait {
		problems = append(problems, ErrIntervalWithoutWait)
	}
	if p.Interval < 0 {
		problems = append(problems, fmt.Sprintf("%s must be a positive integer, got %d", EnvInterval, p.Interval))
	}
	required := []struct {
		env   string
		value string
	}{
		{EnvCloudURL, p.CloudURL},
		{EnvDeployment, p.Deployment},
		{EnvAPIToken, p.APIToken},
		{EnvLocation, p.Location},
		{EnvRepository, p.Repository},
		{EnvJob, p.Job},
		{EnvTags, p.TagsJSON},
		{EnvConfig, p.ConfigJSON},
		{EnvOutput, p.OutputPath},
	}
	for _, r := range required {
		if r.value == "" {
			problems = append(problems, fmt.Sprintf("%s is required", r.env))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ParseWait interprets the wait input. Matching is case-insensitive and an
// empty value means false.
func ParseWait(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be true or false, got %q", EnvWait, value)
	}
}

// ValidationError lists every problem found in the inputs.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}
