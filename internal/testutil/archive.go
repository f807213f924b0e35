// Package testutil holds fixtures shared by package and integration tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// DatasetFiles is a small stand-in for the pysteps-data tree.
//
//nolint:gochecknoglobals // Read-only fixture.
var DatasetFiles = map[string]string{
	"radar/fmi/pgm/20160928/201609281600_fmi.radar.composite.lowest_FIN_SUOMI1.pgm.gz": "fmi",
	"radar/mch/20170131/AQC170310000F_00005.801.gif":                                  "mch",
	"radar/KNMI/2010/08/RAD_NL25_RAP_5min_201008260000.h5":                             "knmi",
	"README.md": "pysteps test data\n",
}

// BuildZip returns a zip archive holding files, each placed under prefix.
// A non-empty prefix also gets its own directory entry, like GitHub archives.
func BuildZip(t *testing.T, prefix string, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	if prefix != "" {
		_, err := w.Create(prefix + "/")
		require.NoError(t, err)

		prefix += "/"
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		f, err := w.Create(prefix + name)
		require.NoError(t, err)

		_, err = f.Write([]byte(files[name]))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

// Checksum returns the base64 SHA-512 of data.
func Checksum(data []byte) string {
	sum := sha512.Sum512(data)

	return base64.StdEncoding.EncodeToString(sum[:])
}

// ArchiveServer serves one archive and counts requests.
type ArchiveServer struct {
	*httptest.Server

	hits atomic.Int64
}

// ArchiveURL returns the archive URL.
func (s *ArchiveServer) ArchiveURL() string {
	return s.Server.URL + "/archive/master.zip"
}

// Hits returns how many requests reached the archive handler.
func (s *ArchiveServer) Hits() int64 {
	return s.hits.Load()
}

// ServeArchive starts a server answering the archive path with data, or with
// status when it is not http.StatusOK. The server is closed with the test.
func ServeArchive(t *testing.T, data []byte, status int) *ArchiveServer {
	t.Helper()

	srv := new(ArchiveServer)

	mux := http.NewServeMux()
	mux.HandleFunc("/archive/master.zip", func(w http.ResponseWriter, _ *http.Request) {
		srv.hits.Add(1)

		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}

		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	})

	srv.Server = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}
