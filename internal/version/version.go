// Package version holds build identification, stamped at link time via
// -ldflags "-X github.com/arenaworks/simarena/internal/version.Version=...".
package version

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
