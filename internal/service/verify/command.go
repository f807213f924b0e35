package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/pysteps-data-fetcher/internal/config"
	"github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
	"github.com/oshokin/pysteps-data-fetcher/internal/repository/rcfile"
)

// Options are inputs accepted by the verify entry point.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// RecordPath overrides the record location resolved from settings.
	RecordPath string
}

// Report is the outcome of checking one record.
type Report struct {
	// RecordPath is the record that was checked.
	RecordPath string
	// DataRoot is the dataset directory named by the record.
	DataRoot string
	// Present lists data sources whose root exists.
	Present []string
	// Missing lists data sources whose root does not exist.
	Missing []string
}

var (
	// ErrDataRootMissing is returned when the record points at nothing usable.
	ErrDataRootMissing = errors.New("data root is missing or empty")
	// ErrSourceOutsideRoot is returned when a data source escapes the data root.
	ErrSourceOutsideRoot = errors.New("data source root lies outside the data root")
	// ErrSourceEmpty is returned when a data source entry has no settings.
	ErrSourceEmpty = errors.New("data source has no settings")
)

// Run loads the record and checks it.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "verify")

	if opts == nil {
		opts = new(Options)
	}

	path := opts.RecordPath
	if path == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("%w: load settings: %w", bootstrap.ErrUsage, err)
		}

		location, err := rcfile.ResolveLocation(cfg.RCDir, cfg.RCFilename)
		if err != nil {
			return nil, err
		}

		path = location.Path()
	}

	record, err := rcfile.NewFileRepository(path).Load(ctx)
	if err != nil {
		return nil, err
	}

	report, err := Check(record)
	if report != nil {
		report.RecordPath = path

		if len(report.Missing) > 0 {
			logger.WarnKV(ctx, "Some data sources are absent from the dataset", "sources", report.Missing)
		}
	}

	if err != nil {
		logger.ErrorKV(ctx, "Configuration record is not usable", "path", path, "error", err)
		return report, err
	}

	logger.InfoKV(ctx, "Configuration record is usable",
		"path", path, "data_root", report.DataRoot, "sources", len(report.Present))

	return report, nil
}

// Check verifies that the record's data root is a non-empty directory and
// that every data source lives under it.
func Check(record *rcfile.Record) (*Report, error) {
	report := &Report{DataRoot: record.DataRoot}

	if err := checkDataRoot(record.DataRoot); err != nil {
		return report, err
	}

	var outside, empty []string

	for _, name := range record.SourceNames() {
		source := record.DataSources[name]
		if source == nil {
			empty = append(empty, name)
			continue
		}

		sourceRoot := source.RootPath

		if !within(record.DataRoot, sourceRoot) {
			outside = append(outside, name)
			continue
		}

		if info, err := os.Stat(sourceRoot); err == nil && info.IsDir() {
			report.Present = append(report.Present, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}

	if len(empty) > 0 {
		return report, fmt.Errorf("%s: %w", strings.Join(empty, ", "), ErrSourceEmpty)
	}

	if len(outside) > 0 {
		return report, fmt.Errorf("%s: %w", strings.Join(outside, ", "), ErrSourceOutsideRoot)
	}

	return report, nil
}

func checkDataRoot(root string) error {
	if root == "" {
		return fmt.Errorf("record has no data_root: %w", ErrDataRootMissing)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", root, ErrDataRootMissing, err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("%s: %w", root, ErrDataRootMissing)
	}

	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return filepath.IsLocal(rel)
}
