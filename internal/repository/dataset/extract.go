package dataset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
)

const (
	// fileMode is used for extracted files whose header carries no permission bits.
	fileMode os.FileMode = 0o644
)

var (
	errUnsafeEntry  = errors.New("archive entry escapes the dataset root")
	errEmptyArchive = errors.New("archive contains no files")
)

// extraction summarizes an extracted archive.
type extraction struct {
	// Root is the directory holding the dataset contents.
	Root  string
	Files int
	Bytes int64
}

// extract unpacks the zip at archivePath into dir. When every entry shares a
// single top-level directory, as GitHub branch archives do, Root points at it.
func extract(ctx context.Context, archivePath, dir string) (*extraction, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if reader != nil {
			_ = reader.Close()
		}

		if errors.Is(err, zip.ErrInsecurePath) {
			return nil, fmt.Errorf("%w: %w: %w", bootstrap.ErrAcquisition, errUnsafeEntry, err)
		}

		return nil, fmt.Errorf("%w: open archive: %w", bootstrap.ErrAcquisition, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if err = os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("%w: create extraction directory: %w", bootstrap.ErrWrite, err)
	}

	result := &extraction{Root: dir}

	for _, entry := range reader.File {
		name, err := entryPath(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", bootstrap.ErrAcquisition, err)
		}

		target := filepath.Join(dir, name)
		mode := entry.Mode()

		switch {
		case mode.IsDir():
			if err = os.MkdirAll(target, dirMode); err != nil {
				return nil, fmt.Errorf("%w: create %s: %w", bootstrap.ErrWrite, name, err)
			}
		case mode.IsRegular():
			written, err := extractFile(entry, target)
			if err != nil {
				return nil, err
			}

			result.Files++
			result.Bytes += written
		default:
			logger.DebugKV(ctx, "Skipping non-regular archive entry", "name", entry.Name, "mode", mode.String())
		}
	}

	if result.Files == 0 {
		return nil, fmt.Errorf("%w: %w", bootstrap.ErrAcquisition, errEmptyArchive)
	}

	if top, ok := commonTopDir(reader.File); ok {
		result.Root = filepath.Join(dir, top)
	}

	logger.InfoKV(ctx, "Extracted dataset archive", "files", result.Files, "bytes", result.Bytes)

	return result, nil
}

// extractFile writes one regular entry to target.
func extractFile(entry *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", bootstrap.ErrWrite, filepath.Dir(target), err)
	}

	src, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", bootstrap.ErrAcquisition, entry.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	perm := entry.Mode().Perm()
	if perm == 0 {
		perm = fileMode
	}

	dst, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", bootstrap.ErrWrite, target, err)
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		return written, fmt.Errorf("%w: close %s: %w", bootstrap.ErrWrite, target, closeErr)
	}

	if err != nil {
		// Decompression and checksum failures surface on read.
		return written, fmt.Errorf("%w: extract %s: %w", bootstrap.ErrAcquisition, entry.Name, err)
	}

	return written, nil
}

// entryPath converts a zip entry name into a local relative path.
func entryPath(name string) (string, error) {
	local := filepath.FromSlash(strings.TrimSuffix(name, "/"))
	if local == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%q: %w", name, errUnsafeEntry)
	}

	return local, nil
}

// commonTopDir returns the single top-level directory shared by all entries.
func commonTopDir(files []*zip.File) (string, bool) {
	var top string

	for _, entry := range files {
		name := strings.TrimSuffix(entry.Name, "/")
		first, _, nested := strings.Cut(name, "/")

		if !nested && !entry.Mode().IsDir() {
			// A file at the archive root: nothing to strip.
			return "", false
		}

		switch {
		case top == "":
			top = first
		case top != first:
			return "", false
		}
	}

	return top, top != ""
}
