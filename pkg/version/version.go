// Package version exposes build identification, stamped by the linker in
// release builds and defaulted for plain "go build" trees. Recordings log it
// so that stores produced by different tool builds stay attributable.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "dev"

	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"

	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"

	// GoVersion is the Go version used to build
	GoVersion = runtime.Version()
)

// String renders the one-line form used in logs and the version command,
// e.g. "dev (unknown)".
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
