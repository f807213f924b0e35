package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/oshokin/pysteps-data-fetcher/internal/domain/bootstrap"
	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
)

// Config holds the settings shared by the fetcher commands.
type Config struct {
	// DatasetURL is the zip archive holding the reference dataset.
	DatasetURL string `yaml:"dataset_url" koanf:"dataset_url"`
	// DatasetChecksum is an optional base64 SHA-512 of the archive.
	DatasetChecksum string `yaml:"dataset_checksum,omitempty" koanf:"dataset_checksum"`
	// Timeout bounds the whole download request. Zero disables it.
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
	// Policy is "overwrite" or "skip".
	Policy string `yaml:"policy" koanf:"policy"`
	// RCDir overrides the directory of the configuration record.
	RCDir string `yaml:"rc_dir,omitempty" koanf:"rc_dir"`
	// RCFilename is the file name of the configuration record.
	RCFilename string `yaml:"rc_filename" koanf:"rc_filename"`
	// LogLevel is the minimum level printed.
	LogLevel string `yaml:"log_level" koanf:"log_level"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "fetch-pysteps-data.yaml"

	// XDGConfigRelPath is looked up under the XDG config directories after the working directory.
	XDGConfigRelPath = "pysteps-data-fetcher/settings.yaml"

	// EnvPrefix prefixes every environment override, e.g. PYSTEPS_FETCHER_DATASET_URL.
	EnvPrefix = "PYSTEPS_FETCHER_"

	// DefaultDatasetURL is the pysteps-data master branch archive.
	DefaultDatasetURL = "https://github.com/pySTEPS/pysteps-data/archive/master.zip"

	// DefaultRCFilename is the record file name pysteps looks for.
	DefaultRCFilename = "pystepsrc"

	// DefaultTimeout bounds a dataset download.
	DefaultTimeout = 15 * time.Minute

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errDatasetURLRequired is returned when the archive URL is empty.
	errDatasetURLRequired = errors.New("dataset url must be provided")
	// errUnsupportedScheme is returned for archive URLs that are not http(s).
	errUnsupportedScheme = errors.New("dataset url must use http or https")
	// errBadRCFilename is returned when the record file name contains a directory part.
	errBadRCFilename = errors.New("rc filename must not contain a path separator")
	// errUnknownLogLevel is returned for log levels zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DatasetURL: DefaultDatasetURL,
		Timeout:    DefaultTimeout,
		Policy:     bootstrap.PolicyOverwrite.String(),
		RCFilename: DefaultRCFilename,
		LogLevel:   "info",
	}
}

// Load builds settings from defaults, the settings file and the environment.
// An explicit path must exist. An empty path searches the working directory
// and then the XDG config directories; finding nothing is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	settingsPath, err := discover(path)
	if err != nil {
		return nil, err
	}

	if settingsPath != "" {
		if err = k.Load(file.Provider(settingsPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", settingsPath, err)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	var cfg Config

	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}

	if err = k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills empty optional fields with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DatasetURL == "" {
		return errDatasetURLRequired
	}

	u, err := url.ParseRequestURI(cfg.DatasetURL)
	if err != nil {
		return fmt.Errorf("invalid dataset url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: %w", cfg.DatasetURL, errUnsupportedScheme)
	}

	if _, err = bootstrap.ParsePolicy(cfg.Policy); err != nil {
		return err
	}

	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	if cfg.RCFilename == "" {
		cfg.RCFilename = DefaultRCFilename
	}

	if strings.ContainsAny(cfg.RCFilename, `/\`) {
		return fmt.Errorf("%q: %w", cfg.RCFilename, errBadRCFilename)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	return nil
}

// WritePolicy returns the parsed policy. Call it on validated settings.
func (c *Config) WritePolicy() bootstrap.WritePolicy {
	policy, _ := bootstrap.ParsePolicy(c.Policy)

	return policy
}

// discover returns the settings file to load, or "" when none exists.
func discover(path string) (string, error) {
	if path != "" {
		path = filepath.Clean(path)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("read settings: %w", err)
		}

		return path, nil
	}

	if _, err := os.Stat(DefaultConfigFilename); err == nil {
		return DefaultConfigFilename, nil
	}

	if found, err := xdg.SearchConfigFile(XDGConfigRelPath); err == nil {
		return found, nil
	}

	return "", nil
}

func defaultsMap() map[string]any {
	d := Default()

	return map[string]any{
		"dataset_url": d.DatasetURL,
		"timeout":     d.Timeout.String(),
		"policy":      d.Policy,
		"rc_filename": d.RCFilename,
		"log_level":   d.LogLevel,
	}
}
