// Package bootstrap prepares a CI environment: it fetches the reference
// dataset into a destination directory and then writes the pystepsrc record
// pointing at it. The record is only written after the dataset is in place.
package bootstrap
