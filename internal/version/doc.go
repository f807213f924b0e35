// Package version exposes build metadata for fetch-pysteps-data.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
