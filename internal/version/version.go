package version

import (
	"fmt"
	"runtime"
)

// Name is the binary name reported in version output and logs.
const Name = "fetch-pysteps-data"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version line with commit, build time and toolchain.
func Full() string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s, go: %s",
		Name, Version, Commit, BuildTime, runtime.Version())
}

// UserAgent is sent with dataset downloads.
func UserAgent() string {
	return Name + "/" + Version
}
