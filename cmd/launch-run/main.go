// Command launch-run is the entry point of the launch-run GitHub Action.
// It reads the step inputs from the environment, launches a Dagster Cloud
// job through the dagster-cloud CLI and publishes the run id as the
// run_id step output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jvreagan/launch-run-action/pkg/credentials"
	"github.com/jvreagan/launch-run-action/pkg/launcher"
	"github.com/jvreagan/launch-run-action/pkg/logging"
	"github.com/jvreagan/launch-run-action/pkg/manifest"
	"github.com/jvreagan/launch-run-action/pkg/output"
	"github.com/jvreagan/launch-run-action/pkg/params"
	"github.com/jvreagan/launch-run-action/pkg/receipt"
	"github.com/jvreagan/launch-run-action/pkg/runner"
)

// Version information (set via ldflags during build)
var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, lookup params.LookupFunc, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("launch-run", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		manifestFile = flags.String("manifest", "", "Path to launch manifest file (default: $INPUT_MANIFEST)")
		showVersion  = flags.Bool("version", false, "Show version information")
	)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "launch-run version %s\n", version)
		fmt.Fprintf(stdout, "  commit: %s\n", commit)
		fmt.Fprintf(stdout, "  built: %s\n", date)
		return 0
	}

	if err := launch(ctx, *manifestFile, lookup, stdout, stderr); err != nil {
		reportError(stdout, err)
		return 1
	}
	return 0
}

func launch(ctx context.Context, manifestFile string, lookup params.LookupFunc, stdout, stderr io.Writer) error {
	p, err := params.FromEnv(lookup)
	if err != nil {
		return err
	}

	if manifestFile == "" {
		manifestFile = p.ManifestPath
	}
	m := manifest.Default()
	if manifestFile != "" {
		if m, err = manifest.Load(manifestFile); err != nil {
			return fmt.Errorf("error loading manifest: %w", err)
		}
	}

	resolver := &credentials.Resolver{Getenv: func(key string) string {
		value, _ := lookup(key)
		return value
	}}
	token, err := resolver.Resolve(ctx, m.Credentials, p.APIToken)
	if err != nil {
		return err
	}
	if token.FromSecretStore() {
		if err := output.AddMask(stdout, token.Value); err != nil {
			return err
		}
	}
	p.APIToken = token.Value

	l := launcher.New(runner.New(stderr), m.CLI.Path, stdout)
	if m.Receipt != nil {
		store, err := receipt.Factory(ctx, m.Receipt)
		if err != nil {
			logging.Warn("Launch receipts disabled", "provider", m.Receipt.Provider, "error", err.Error())
		} else {
			defer store.Close()
			l.Receipts = store
		}
	}

	_, err = l.Run(ctx, p)
	return err
}

// reportError prints a failure in the form the action's users grep for.
func reportError(w io.Writer, err error) {
	var verr *params.ValidationError
	if errors.As(err, &verr) {
		for _, problem := range verr.Problems {
			fmt.Fprintf(w, "ERROR: %s\n", problem)
		}
		return
	}
	fmt.Fprintf(w, "ERROR: %v\n", err)
}
