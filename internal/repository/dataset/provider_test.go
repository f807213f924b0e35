package dataset

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/testutil"
)

func newProvider(t *testing.T, url, checksum string) *HTTPProvider {
	t.Helper()

	p, err := NewHTTPProvider(Options{URL: url, Checksum: checksum})
	require.NoError(t, err)

	return p
}

// requireNoStaging asserts nothing but the expected entries remain in parent.
func requireNoStaging(t *testing.T, parent string) {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(parent, ".pysteps-data-staging-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

// TestFetch_FreshDestination downloads into a directory that does not exist yet.
func TestFetch_FreshDestination(t *testing.T) {
	t.Parallel()

	archive := testutil.BuildZip(t, "pysteps-data-master", testutil.DatasetFiles)
	srv := testutil.ServeArchive(t, archive, http.StatusOK)

	parent := t.TempDir()
	dest := filepath.Join(parent, "nested", "data")

	result, err := newProvider(t, srv.ArchiveURL(), testutil.Checksum(archive)).
		Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.NoError(t, err)
	require.False(t, result.Skipped)
	require.Equal(t, dest, result.Root)
	require.Equal(t, len(testutil.DatasetFiles), result.Files)
	require.Equal(t, int64(len(archive)), result.ArchiveBytes)

	for name, body := range testutil.DatasetFiles {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		require.Equal(t, body, string(got), name)
	}

	// The archive prefix is stripped.
	_, err = os.Stat(filepath.Join(dest, "pysteps-data-master"))
	require.ErrorIs(t, err, os.ErrNotExist)

	requireNoStaging(t, filepath.Join(parent, "nested"))
}

// TestFetch_OverwriteRemovesStaleFiles places a marker in the dataset and checks a second fetch drops it.
func TestFetch_OverwriteRemovesStaleFiles(t *testing.T) {
	t.Parallel()

	archive := testutil.BuildZip(t, "pysteps-data-master", testutil.DatasetFiles)
	srv := testutil.ServeArchive(t, archive, http.StatusOK)
	p := newProvider(t, srv.ArchiveURL(), "")

	dest := filepath.Join(t.TempDir(), "data")

	_, err := p.Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.NoError(t, err)

	marker := filepath.Join(dest, "radar", "stale-marker")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o600))

	_, err = p.Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.NoError(t, err)

	_, err = os.Stat(marker)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.FileExists(t, filepath.Join(dest, "README.md"))
	require.EqualValues(t, 2, srv.Hits())
}

// TestFetch_SkipKeepsPopulatedDestination makes no request when data is present.
func TestFetch_SkipKeepsPopulatedDestination(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)

	dest := t.TempDir()
	marker := filepath.Join(dest, "keep-me")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o600))

	result, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicySkip)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.FileExists(t, marker)
	require.Zero(t, srv.Hits())
}

// TestFetch_SkipDownloadsIntoEmptyDestination treats an empty directory as missing data.
func TestFetch_SkipDownloadsIntoEmptyDestination(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)
	dest := t.TempDir()

	result, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicySkip)
	require.NoError(t, err)
	require.False(t, result.Skipped)
	require.FileExists(t, filepath.Join(dest, "README.md"))
}

// TestFetch_HTTPErrorLeavesDestinationUntouched classifies a 404 as an acquisition error.
func TestFetch_HTTPErrorLeavesDestinationUntouched(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, nil, http.StatusNotFound)

	parent := t.TempDir()
	dest := filepath.Join(parent, "data")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	previous := filepath.Join(dest, "previous")
	require.NoError(t, os.WriteFile(previous, []byte("x"), 0o600))

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrAcquisition)
	require.ErrorIs(t, err, errBadHTTPStatus)
	require.FileExists(t, previous)

	requireNoStaging(t, parent)
}

// TestFetch_ChecksumMismatch rejects an archive that does not match the configured hash.
func TestFetch_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	archive := testutil.BuildZip(t, "pysteps-data-master", testutil.DatasetFiles)
	srv := testutil.ServeArchive(t, archive, http.StatusOK)

	dest := filepath.Join(t.TempDir(), "data")
	wrong := testutil.Checksum([]byte("something else"))

	_, err := newProvider(t, srv.ArchiveURL(), wrong).Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrAcquisition)
	require.ErrorIs(t, err, errChecksumMismatch)
	require.NoDirExists(t, dest)
}

// TestFetch_CorruptArchive reports a body that is not a zip file.
func TestFetch_CorruptArchive(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, []byte("<html>rate limited</html>"), http.StatusOK)
	dest := filepath.Join(t.TempDir(), "data")

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrAcquisition)
	require.NoDirExists(t, dest)
}

// TestFetch_EmptyArchive refuses to install a dataset without files.
func TestFetch_EmptyArchive(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "pysteps-data-master", nil), http.StatusOK)
	dest := filepath.Join(t.TempDir(), "data")

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrAcquisition)
	require.ErrorIs(t, err, errEmptyArchive)
	require.NoDirExists(t, dest)
}

// TestFetch_UnsafeEntry rejects archives writing outside the dataset root.
func TestFetch_UnsafeEntry(t *testing.T) {
	t.Parallel()

	archive := testutil.BuildZip(t, "", map[string]string{"../escape.txt": "x"})
	srv := testutil.ServeArchive(t, archive, http.StatusOK)

	parent := t.TempDir()
	dest := filepath.Join(parent, "data")

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, errUnsafeEntry)
	require.NoFileExists(t, filepath.Join(parent, "escape.txt"))
}

// TestFetch_DestinationIsFile is a write error detected before any request.
func TestFetch_DestinationIsFile(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)

	dest := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o600))

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrWrite)
	require.ErrorIs(t, err, errNotDirectory)
	require.Zero(t, srv.Hits())
}

// TestFetch_DestinationIsSymlink refuses a linked destination before any request.
func TestFetch_DestinationIsSymlink(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)

	base := t.TempDir()
	target := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep.txt"), []byte("x"), 0o600))

	dest := filepath.Join(base, "data")
	require.NoError(t, os.Symlink(target, dest))

	_, err := newProvider(t, srv.ArchiveURL(), "").Fetch(context.Background(), dest, bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrWrite)
	require.ErrorIs(t, err, errNotDirectory)
	require.Zero(t, srv.Hits())
	require.FileExists(t, filepath.Join(target, "keep.txt"))
}

// TestFetch_ParentIsFile is a write error detected before any request, even for root.
func TestFetch_ParentIsFile(t *testing.T) {
	t.Parallel()

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)

	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))

	_, err := newProvider(t, srv.ArchiveURL(), "").
		Fetch(context.Background(), filepath.Join(parent, "data"), bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrWrite)
	require.Zero(t, srv.Hits())
}

// TestFetch_ReadOnlyParent is a write error detected before any request.
func TestFetch_ReadOnlyParent(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	srv := testutil.ServeArchive(t, testutil.BuildZip(t, "", testutil.DatasetFiles), http.StatusOK)

	parent := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(parent, 0o555))
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	_, err := newProvider(t, srv.ArchiveURL(), "").
		Fetch(context.Background(), filepath.Join(parent, "data"), bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrWrite)
	require.ErrorIs(t, err, os.ErrPermission)
	require.Zero(t, srv.Hits())
}

// TestFetch_EmptyDestination is a usage error.
func TestFetch_EmptyDestination(t *testing.T) {
	t.Parallel()

	_, err := newProvider(t, "http://127.0.0.1:1/x.zip", "").Fetch(context.Background(), "", bootstrap.PolicyOverwrite)
	require.ErrorIs(t, err, bootstrap.ErrUsage)
}

// TestNewHTTPProvider_BadChecksum rejects checksums that are not base64.
func TestNewHTTPProvider_BadChecksum(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPProvider(Options{URL: "https://example.com/a.zip", Checksum: "***"})
	require.ErrorIs(t, err, errBadChecksum)
}
