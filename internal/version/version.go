// Package version formats the version line the commands print for -version.
package version

import (
	"runtime/debug"
	"strings"
)

// String formats a human-friendly version line from the -ldflags-injected
// version and commit, falling back to Go module build info when those are
// unset or placeholders.
func String(version, commit string) string {
	v := strings.TrimSpace(version)
	c := strings.TrimSpace(commit)

	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "" || v == "dev" || v == "(devel)" {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
		if c == "" || c == "unknown" {
			if rev := buildSetting(info, "vcs.revision"); rev != "" {
				c = rev
			}
		}
	}

	out := v
	if out == "" {
		out = "dev"
	}
	if c != "" && c != "unknown" {
		out += " (" + c + ")"
	}
	return out
}

func buildSetting(info *debug.BuildInfo, key string) string {
	if info == nil {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
