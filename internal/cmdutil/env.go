// Package cmdutil holds the small shared helpers the zentinel-agent
// commands use for flag defaults and report output.
package cmdutil

import (
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed env value if present; otherwise it returns fallback.
// Commands use it to let environment variables seed flag defaults.
func EnvString(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// EnvBool parses a boolean env value; when unset or blank, it returns fallback.
// Unparseable values fall back too: a bad toggle must not change a default set
// before flag parsing even runs.
func EnvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
