package buildconfig

import "fmt"

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/factgate/internal/buildconfig.version=v1.2.0
var (
	version = "dev"
	commit  = "unknown"
	date    = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if date != "" {
		info["built"] = date
	}
	return info
}

// String formats the version for CLI output.
func String() string {
	if date == "" {
		return fmt.Sprintf("factgate %s (%s)", version, commit)
	}
	return fmt.Sprintf("factgate %s (%s, built %s)", version, commit, date)
}
