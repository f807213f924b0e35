// Package verify re-checks a written pystepsrc record against the filesystem.
package verify
