// Package output turns dagster-cloud output into step results: it extracts
// the run id from the CLI's stdout and publishes it through the GitHub
// Actions output file.
package output

import (
	"fmt"
	"regexp"
	"strings"
)

// runLine matches the status lines printed by "dagster-cloud job launch --wait":
//
//	Run <id> is in progress (status: STARTED)...
//	Run <id> finished successfully.
var runLine = regexp.MustCompile(`(?m)^\s*Run (\S+) (?:is in progress \(status: [A-Z_]+\)\.\.\.|finished successfully\.)\s*$`)

// ParseRunID extracts the run id from captured CLI output.
//
// With --wait the CLI reports progress lines followed by a terminal line,
// all naming the same run; the last one wins. Without --wait the CLI prints
// just the id, so the last non-empty line is used when it is a single token.
func ParseRunID(text string) (string, bool) {
	if matches := runLine.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		return matches[len(matches)-1][1], true
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" || strings.ContainsAny(last, " \t") {
		return "", false
	}
	return last, true
}

// ParseError reports CLI output that did not contain a run id.
type ParseError struct {
	Output string
}

func (e *ParseError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return "no run id found: dagster-cloud produced no output"
	}
	return fmt.Sprintf("no run id found in dagster-cloud output: %q", out)
}

// RunID is ParseRunID returning a *ParseError when no id is present.
func RunID(text string) (string, error) {
	id, ok := ParseRunID(text)
	if !ok {
		return "", &ParseError{Output: text}
	}
	return id, nil
}
