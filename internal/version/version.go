// Package version carries build metadata set through -ldflags at release time.
package version

import "fmt"

// Name is the binary name.
const Name = "oddswatcher"

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// UserAgent identifies outbound odds api requests.
func UserAgent() string {
	return Name + "/" + Version
}

// String formats the build information block printed by the version command.
func String() string {
	return fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", Name, Version, Commit, BuildDate)
}
