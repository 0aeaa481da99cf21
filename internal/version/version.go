// Package version exposes the build metadata stamped into the docket
// binary and reported by the version command.
package version

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
