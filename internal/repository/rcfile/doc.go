// Package rcfile builds, locates, writes and reads the pystepsrc
// configuration record that points pysteps at a downloaded dataset.
package rcfile
