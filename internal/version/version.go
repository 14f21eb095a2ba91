// Package version provides the Forge version string.
package version

// Version is the current Forge version. Overridden at build time via
// -ldflags "-X github.com/jdsingh122918/forge/internal/version.Version=...".
var Version = "0.1.0"

// Get returns the current version string.
func Get() string {
	return Version
}
