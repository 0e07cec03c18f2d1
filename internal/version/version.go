// Package version holds build metadata injected via -ldflags.
package version

// Overridden at build time:
//
//	go build -ldflags "-X layer-anything/internal/version.Version=v1.2.3"
var (
	// Version is the semantic release version.
	Version = "0.1.0"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"

	// GitCommit is the abbreviated commit hash.
	GitCommit = "unknown"
)
