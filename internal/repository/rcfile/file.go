package rcfile

import (
	"bytes"
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/pysteps-data-fetcher/internal/logger"

	// Register SHA-512 for the write checksum.
	_ "crypto/sha512"
)

const (
	// FileMode is the permission of a written record; pysteps readers run as other users in CI images.
	FileMode os.FileMode = 0o644

	// dirMode is used when creating the record directory.
	dirMode os.FileMode = 0o755

	// checksumFunction verifies the bytes that land on disk.
	checksumFunction = crypto.SHA512
)

// Repository defines persistence operations for the configuration record.
type Repository interface {
	Path() string
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository stores a record as a JSON file.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
}

var (
	// ErrNotFound is returned when the record file does not exist.
	ErrNotFound = errors.New("configuration record not found")

	errNilRecord = errors.New("configuration record is nil")
)

// NewFileRepository creates a repository reading and writing the record at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the record file path.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}

		return nil, fmt.Errorf("read configuration record: %w", err)
	}

	var record Record
	if err = json.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode configuration record %s: %w", r.path, err)
	}

	return &record, nil
}

// Save writes the record, replacing any previous file in one rename.
// Readers see either the old record or the new one, never a partial file.
func (r *FileRepository) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return errNilRecord
	}

	data, err := record.Encode()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(r.path), dirMode); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}

	// go-update renames the current target aside, so one has to exist.
	createdPlaceholder := false

	if _, err = os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		placeholder, err = os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY, FileMode)
		if err != nil {
			return fmt.Errorf("create configuration record: %w", err)
		}

		_ = placeholder.Close()
		createdPlaceholder = true
	}

	hasher := checksumFunction.New()
	_, _ = hasher.Write(data)

	logger.DebugKV(ctx, "Applying configuration record", "path", r.path, "bytes", len(data))

	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: FileMode,
		Checksum:   hasher.Sum(nil),
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if createdPlaceholder {
			_ = os.Remove(r.path)
		}

		return fmt.Errorf("write configuration record: %w", err)
	}

	return nil
}
