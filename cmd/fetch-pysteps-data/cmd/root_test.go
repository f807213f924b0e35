package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pysteps-data-fetcher/internal/version"
)

// TestRoot_RequiresDestination fails on a missing argument without touching the working directory.
func TestRoot_RequiresDestination(t *testing.T) {
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stderr bytes.Buffer

	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{})
	t.Cleanup(func() {
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	require.Contains(t, stderr.String(), "accepts 1 arg(s)")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRoot_RejectsExtraArguments keeps the positional surface to one directory.
func TestRoot_RejectsExtraArguments(t *testing.T) {
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"a", "b"})
	t.Cleanup(func() {
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.Error(t, rootCmd.Execute())
}

// TestRoot_Version prints build metadata.
func TestRoot_Version(t *testing.T) {
	var stdout bytes.Buffer

	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, stdout.String(), version.Short())
}
