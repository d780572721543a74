// SPDX-License-Identifier: MIT
//
// Package build carries build metadata (name, timestamp, commit, version)
// injected with -ldflags at compile time. Development builds without the
// flags fall back to sensible defaults instead of failing.
package build

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags during compilation, for example:
//
//	go build -ldflags "-X vizsync/pkg/build.buildVersion=0.3.0"
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "vizsync",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies whatever build information the linker provided into
// the flags struct. Unset flags keep their development defaults.
func Initialize() {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
