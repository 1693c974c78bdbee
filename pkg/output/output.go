package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// RunIDKey is the step output name carrying the launched run id.
const RunIDKey = "run_id"

// WriteOutput appends a key=value line to the GitHub Actions output file.
// The file is created if it does not exist.
func WriteOutput(path, key, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("output %s: multi-line values are not supported", key)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output %s: %w", key, err)
	}
	return f.Close()
}

// AnnounceLaunch prints the human-readable launch line.
func AnnounceLaunch(w io.Writer, runID string) error {
	_, err := fmt.Fprintf(w, "Successfully launched run: %s\n", runID)
	return err
}

// AddMask asks the Actions runner to mask value in all later log output.
func AddMask(w io.Writer, value string) error {
	if value == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "::add-mask::%s\n", value)
	return err
}
