package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/pysteps-data-fetcher/internal/config"
	domain "github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
	"github.com/oshokin/pysteps-data-fetcher/internal/repository/dataset"
	"github.com/oshokin/pysteps-data-fetcher/internal/repository/rcfile"
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// Destination is the directory that receives the dataset.
	Destination string
	// LogLevel overrides the level from settings when not empty.
	LogLevel string
}

// RecordStore persists the configuration record at a location it owns.
type RecordStore interface {
	Path() string
	Save(ctx context.Context, record *rcfile.Record) error
}

// Result describes a completed run.
type Result struct {
	// Dataset is what the provider left on disk.
	Dataset *dataset.FetchResult
	// RecordPath is where the configuration record was written.
	RecordPath string
	// Transitions is the stage history of the run.
	Transitions []domain.Transition
}

var (
	errEmptyDestination = errors.New("destination directory must be provided")
	errUnknownLogLevel  = errors.New("unknown log level")
)

// Run loads settings, wires the HTTP provider and the record file, and bootstraps opts.Destination.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bootstrap")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	if opts == nil || strings.TrimSpace(opts.Destination) == "" {
		return fmt.Errorf("%w: %w", domain.ErrUsage, errEmptyDestination)
	}

	if opts.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(opts.LogLevel); !ok {
			return fmt.Errorf("%w: %q: %w", domain.ErrUsage, opts.LogLevel, errUnknownLogLevel)
		}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("%w: load settings: %w", domain.ErrUsage, err)
	}

	applyLogLevel(cfg.LogLevel, opts.LogLevel)

	provider, err := dataset.NewHTTPProvider(dataset.Options{
		URL:      cfg.DatasetURL,
		Checksum: cfg.DatasetChecksum,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUsage, err)
	}

	location, err := rcfile.ResolveLocation(cfg.RCDir, cfg.RCFilename)
	if err != nil {
		return fmt.Errorf("%w: resolve record location: %w", domain.ErrWrite, err)
	}

	warnConcurrentRuns(ctx)

	result, err := New(provider, rcfile.NewFileRepository(location.Path()), cfg.WritePolicy()).
		Run(ctx, opts.Destination)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Environment ready",
		"dataset", result.Dataset.Root,
		"files", result.Dataset.Files,
		"record", result.RecordPath,
	)

	return nil
}

// Bootstrapper runs the download-then-configure sequence.
type Bootstrapper struct {
	provider dataset.Provider
	records  RecordStore
	policy   domain.WritePolicy
}

// New creates a Bootstrapper.
func New(provider dataset.Provider, records RecordStore, policy domain.WritePolicy) *Bootstrapper {
	return &Bootstrapper{
		provider: provider,
		records:  records,
		policy:   policy,
	}
}

// Run fetches the dataset into dest and then writes the record.
// Every returned error wraps domain.ErrUsage, domain.ErrAcquisition or domain.ErrWrite.
func (b *Bootstrapper) Run(ctx context.Context, dest string) (*Result, error) {
	if strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrUsage, errEmptyDestination)
	}

	tracker := domain.NewTracker()

	fetched, err := b.acquire(ctx, tracker, dest)
	if err != nil {
		return nil, b.fail(ctx, tracker, err)
	}

	recordPath, err := b.configure(ctx, tracker, fetched.Root)
	if err != nil {
		return nil, b.fail(ctx, tracker, err)
	}

	if err = b.advance(ctx, tracker, domain.StageDone); err != nil {
		return nil, err
	}

	return &Result{
		Dataset:     fetched,
		RecordPath:  recordPath,
		Transitions: tracker.History(),
	}, nil
}

// acquire runs the DOWNLOADING stage.
func (b *Bootstrapper) acquire(ctx context.Context, tracker *domain.Tracker, dest string) (*dataset.FetchResult, error) {
	if err := b.advance(ctx, tracker, domain.StageDownloading); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Fetching dataset", "dest", dest, "policy", b.policy.String())

	fetched, err := b.provider.Fetch(ctx, dest, b.policy)
	if err != nil {
		return nil, classify(err, domain.ErrAcquisition)
	}

	if fetched.Skipped {
		logger.InfoKV(ctx, "Kept existing dataset", "dest", fetched.Root)
	} else {
		logger.InfoKV(ctx, "Dataset installed", "dest", fetched.Root, "files", fetched.Files, "bytes", fetched.Bytes)
	}

	return fetched, nil
}

// configure runs the CONFIGURING stage.
func (b *Bootstrapper) configure(ctx context.Context, tracker *domain.Tracker, dataRoot string) (string, error) {
	if err := b.advance(ctx, tracker, domain.StageConfiguring); err != nil {
		return "", err
	}

	record, err := rcfile.NewRecord(dataRoot)
	if err != nil {
		return "", classify(err, domain.ErrWrite)
	}

	logger.InfoKV(ctx, "Writing configuration record", "path", b.records.Path(), "data_root", record.DataRoot)

	if err = b.records.Save(ctx, record); err != nil {
		return "", classify(err, domain.ErrWrite)
	}

	return b.records.Path(), nil
}

func (b *Bootstrapper) advance(ctx context.Context, tracker *domain.Tracker, to domain.Stage) error {
	from := tracker.Current()
	if err := tracker.Advance(to); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Stage changed", "from", from.String(), "to", to.String())

	return nil
}

// fail moves the tracker to FAILED and logs the error once.
func (b *Bootstrapper) fail(ctx context.Context, tracker *domain.Tracker, err error) error {
	stage := tracker.Current()

	if failErr := tracker.Fail(); failErr != nil {
		return errors.Join(err, failErr)
	}

	logger.ErrorKV(ctx, "Bootstrap failed", "stage", stage.String(), "error", err)

	return err
}

// classify makes sure err carries a category, using fallback when it has none.
func classify(err, fallback error) error {
	for _, category := range []error{domain.ErrUsage, domain.ErrAcquisition, domain.ErrWrite} {
		if errors.Is(err, category) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", fallback, err)
}

// applyLogLevel sets the global level. Both values are validated by then.
func applyLogLevel(fromSettings, override string) {
	value := fromSettings
	if override != "" {
		value = override
	}

	if level, ok := logger.ParseLogLevel(value); ok {
		logger.SetLevel(level)
	}
}
