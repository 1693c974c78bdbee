// Package logging provides the structured logger used by launch-run along
// with helpers that keep API tokens and cloud credentials out of the logs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// Default logger instance
	logger *slog.Logger

	// Patterns for detecting sensitive data
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(password|secret|token|key|auth)[\s]*[:=][\s]*[^\s]+`),
		regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
		regexp.MustCompile(`(?i)Basic\s+[A-Za-z0-9+/]+=*`),
		regexp.MustCompile(`\b(user|agent):[0-9a-f]{32}\b`), // Dagster Cloud API token
		regexp.MustCompile(`AKIA[0-9A-Z]{16}`),             // AWS Access Key
		regexp.MustCompile(`[0-9a-zA-Z/+=]{40}`),           // AWS Secret Key pattern
	}

	// Command-line flags whose following argument is a secret
	secretFlags = map[string]bool{
		"--api-token": true,
	}
)

func init() {
	logger = New(os.Stderr, debugEnabled(os.Getenv))
}

// debugEnabled reports whether debug logging was requested, either through
// the GitHub Actions step debug switch or the tool's own variable.
func debugEnabled(getenv func(string) string) bool {
	return getenv("RUNNER_DEBUG") == "1" || strings.EqualFold(getenv("LAUNCH_RUN_DEBUG"), "true")
}

// New builds a JSON logger writing to w.
func New(w io.Writer, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if debug {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetLogger allows overriding the default logger
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the current logger instance
func GetLogger() *slog.Logger {
	return logger
}

// SanitizeString removes or masks sensitive data from strings
func SanitizeString(s string) string {
	sanitized := s
	for _, pattern := range sensitivePatterns {
		sanitized = pattern.ReplaceAllStringFunc(sanitized, func(match string) string {
			// Extract the key part before the value
			parts := strings.SplitN(match, ":", 2)
			if len(parts) == 2 {
				return parts[0] + ": [REDACTED]"
			}
			parts = strings.SplitN(match, "=", 2)
			if len(parts) == 2 {
				return parts[0] + "=[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return sanitized
}

// SanitizeMap creates a sanitized copy of a map, redacting sensitive keys
func SanitizeMap(m map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{})
	sensitiveKeys := map[string]bool{
		"password":          true,
		"secret":            true,
		"token":             true,
		"api_token":         true,
		"key":               true,
		"auth":              true,
		"credential":        true,
		"access_key":        true,
		"secret_key":        true,
		"access_key_id":     true,
		"secret_access_key": true,
		"secret_id":         true,
		"client_secret":     true,
		"api_key":           true,
	}

	for k, v := range m {
		lowerKey := strings.ToLower(k)
		if sensitiveKeys[lowerKey] {
			sanitized[k] = "[REDACTED]"
		} else if strVal, ok := v.(string); ok {
			sanitized[k] = SanitizeString(strVal)
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}

// RedactArgs returns a copy of a command line with the values of secret
// flags replaced, suitable for logging the dagster-cloud invocation.
func RedactArgs(args []string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i := 0; i < len(redacted); i++ {
		flag, _, hasValue := strings.Cut(redacted[i], "=")
		if !secretFlags[flag] {
			continue
		}
		if hasValue {
			redacted[i] = flag + "=[REDACTED]"
		} else if i+1 < len(redacted) {
			redacted[i+1] = "[REDACTED]"
			i++
		}
	}
	return redacted
}

// Info logs an informational message
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// InfoContext logs with additional context fields
func InfoContext(msg string, contextFields map[string]interface{}, args ...any) {
	logger.Info(msg, withFields(contextFields, args)...)
}

// ErrorContext logs an error with additional context fields
func ErrorContext(msg string, contextFields map[string]interface{}, args ...any) {
	logger.Error(msg, withFields(contextFields, args)...)
}

func withFields(contextFields map[string]interface{}, args []any) []any {
	sanitized := SanitizeMap(contextFields)
	allArgs := make([]any, 0, len(args)+len(sanitized)*2)
	allArgs = append(allArgs, args...)
	for k, v := range sanitized {
		allArgs = append(allArgs, k, v)
	}
	return allArgs
}
