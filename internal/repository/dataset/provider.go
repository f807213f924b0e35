package dataset

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
	"github.com/oshokin/pysteps-data-fetcher/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ChecksumFunction is the hash behind Options.Checksum.
	ChecksumFunction = crypto.SHA512

	// dirMode is used for the destination parent and extracted directories.
	dirMode os.FileMode = 0o755

	// stagingPattern names the staging directory created next to the destination.
	stagingPattern = ".pysteps-data-staging-*"

	// archiveFilename is the downloaded archive inside the staging directory.
	archiveFilename = "dataset.zip"
)

var (
	errBadHTTPStatus     = errors.New("unexpected http status")
	errChecksumMismatch  = errors.New("archive checksum mismatch")
	errBadChecksum       = errors.New("configured checksum is not valid base64")
	errNotDirectory      = errors.New("destination exists and is not a directory")
	errEmptyDestination  = errors.New("destination must be provided")
	errHashUnavailable   = errors.New("hash function unavailable")
	errUnexpectedEOFBody = errors.New("archive body shorter than announced")
)

// Provider fetches the dataset into a destination directory.
type Provider interface {
	Fetch(ctx context.Context, dest string, policy bootstrap.WritePolicy) (*FetchResult, error)
}

// Options configure an HTTPProvider.
type Options struct {
	// URL is the zip archive to download.
	URL string
	// Checksum is an optional base64 SHA-512 of the archive.
	Checksum string
	// Timeout bounds the HTTP request. Zero means no limit.
	Timeout time.Duration
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// FetchResult describes what a fetch left on disk.
type FetchResult struct {
	// Root is the absolute dataset directory.
	Root string
	// Files is the number of regular files extracted.
	Files int
	// Bytes is the uncompressed size of the extracted files.
	Bytes int64
	// ArchiveBytes is the size of the downloaded archive.
	ArchiveBytes int64
	// Skipped is set when PolicySkip kept an existing dataset.
	Skipped bool
}

// HTTPProvider downloads the dataset as a zip archive over HTTP.
type HTTPProvider struct {
	url      string
	checksum []byte
	client   *http.Client
}

// NewHTTPProvider validates opts and returns a provider.
func NewHTTPProvider(opts Options) (*HTTPProvider, error) {
	p := &HTTPProvider{
		url:    opts.URL,
		client: opts.Client,
	}

	if opts.Checksum != "" {
		sum, err := base64.StdEncoding.DecodeString(opts.Checksum)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadChecksum, err)
		}

		p.checksum = sum
	}

	if p.client == nil {
		p.client = &http.Client{Timeout: opts.Timeout}
	}

	return p, nil
}

// Fetch places the dataset at dest according to policy.
// Errors wrap bootstrap.ErrWrite for filesystem failures and
// bootstrap.ErrAcquisition for download and archive failures.
func (p *HTTPProvider) Fetch(ctx context.Context, dest string, policy bootstrap.WritePolicy) (*FetchResult, error) {
	if dest == "" {
		return nil, fmt.Errorf("%w: %w", bootstrap.ErrUsage, errEmptyDestination)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve destination: %w", bootstrap.ErrWrite, err)
	}

	populated, err := isPopulated(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bootstrap.ErrWrite, err)
	}

	if populated && policy == bootstrap.PolicySkip {
		logger.InfoKV(ctx, "Destination already holds data, skipping download", "dest", root)

		return &FetchResult{Root: root, Skipped: true}, nil
	}

	if err = os.MkdirAll(filepath.Dir(root), dirMode); err != nil {
		return nil, fmt.Errorf("%w: create destination parent: %w", bootstrap.ErrWrite, err)
	}

	staging, err := os.MkdirTemp(filepath.Dir(root), stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: create staging directory: %w", bootstrap.ErrWrite, err)
	}

	defer func() {
		if removeErr := os.RemoveAll(staging); removeErr != nil {
			logger.WarnKV(ctx, "Unable to remove staging directory", "path", staging, "error", removeErr)
		}
	}()

	archivePath := filepath.Join(staging, archiveFilename)

	archiveBytes, err := p.download(ctx, archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bootstrap.ErrAcquisition, err)
	}

	extracted, err := extract(ctx, archivePath, filepath.Join(staging, "tree"))
	if err != nil {
		return nil, err
	}

	if err = install(ctx, extracted.Root, root); err != nil {
		return nil, fmt.Errorf("%w: %w", bootstrap.ErrWrite, err)
	}

	return &FetchResult{
		Root:         root,
		Files:        extracted.Files,
		Bytes:        extracted.Bytes,
		ArchiveBytes: archiveBytes,
	}, nil
}

// download streams the archive to path and verifies the checksum if configured.
func (p *HTTPProvider) download(ctx context.Context, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return 0, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	logger.InfoKV(ctx, "Downloading dataset archive", "url", p.url)

	response, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s, %s: %w", p.url, response.Status, errBadHTTPStatus)
	}

	if !ChecksumFunction.Available() {
		return 0, errHashUnavailable
	}

	output, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, err
	}

	hasher := ChecksumFunction.New()
	progress := newProgressWriter(ctx, response.ContentLength)

	written, err := io.Copy(io.MultiWriter(output, hasher, progress), response.Body)
	if closeErr := output.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return written, fmt.Errorf("write archive: %w", err)
	}

	if response.ContentLength > 0 && written != response.ContentLength {
		return written, fmt.Errorf("%d of %d bytes: %w", written, response.ContentLength, errUnexpectedEOFBody)
	}

	if p.checksum != nil {
		if sum := hasher.Sum(nil); !bytes.Equal(sum, p.checksum) {
			return written, fmt.Errorf("%w: got %s", errChecksumMismatch, base64.StdEncoding.EncodeToString(sum))
		}

		logger.Debug(ctx, "Archive checksum verified")
	}

	logger.InfoKV(ctx, "Downloaded dataset archive", "bytes", written)

	return written, nil
}

// install replaces dest with the extracted tree at src.
func install(ctx context.Context, src, dest string) error {
	info, err := os.Lstat(dest)

	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s: %w", dest, errNotDirectory)
	case err == nil:
		logger.InfoKV(ctx, "Removing previous dataset", "dest", dest)

		if err = os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove previous dataset: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat destination: %w", err)
	}

	if err = os.Rename(src, dest); err != nil {
		return fmt.Errorf("move dataset into place: %w", err)
	}

	return nil
}

// isPopulated reports whether dir exists and has at least one entry.
// A symlink is not followed and counts as a non-directory, since install
// refuses to replace one.
func isPopulated(dir string) (bool, error) {
	info, err := os.Lstat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat destination: %w", err)
	}

	if !info.IsDir() {
		return false, fmt.Errorf("%s: %w", dir, errNotDirectory)
	}

	f, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return false, fmt.Errorf("open destination: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	names, err := f.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("list destination: %w", err)
	}

	return len(names) > 0, nil
}
