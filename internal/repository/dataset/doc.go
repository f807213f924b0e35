// Package dataset acquires the reference dataset.
//
// HTTPProvider downloads a zip archive into a staging directory next to the
// destination, verifies its checksum when one is configured, extracts it and
// moves the extracted tree onto the destination in one rename. The staging
// directory is removed whatever the outcome.
package dataset
