package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config holds the paths and patterns driving a packaging run.
type Config struct {
	// SourceDir is the static build directory produced by the web export.
	SourceDir string `yaml:"source_dir"`
	// OutputDir is the root of the generated Build Output tree.
	OutputDir string `yaml:"output_dir"`
	// BundleDir is the bundle location relative to SourceDir.
	BundleDir string `yaml:"bundle_dir"`
	// BundlePattern is the glob matched against entries of BundleDir.
	BundlePattern string `yaml:"bundle_pattern"`
	// BundleName is the promoted bundle filename at the static root.
	BundleName string `yaml:"bundle_name"`
	// EntryFile is the HTML entry point rewritten to reference BundleName.
	EntryFile string `yaml:"entry_file"`
}

const (
	// DefaultConfigFilename is the default filename for packaging settings.
	DefaultConfigFilename = "site-packager-settings.yaml"

	// DefaultSourceDir is the build directory emitted by the web export.
	DefaultSourceDir = "dist"

	// DefaultOutputDir is the Build Output API root consumed by the platform.
	DefaultOutputDir = ".vercel/output"

	// DefaultBundleDir is where the Expo web export drops the JS bundle.
	DefaultBundleDir = "_expo/static/js/web"

	// DefaultBundlePattern matches the hashed bundle emitted by the export.
	DefaultBundlePattern = "AppEntry*.js"

	// DefaultBundleName is the fixed name the bundle is promoted under.
	DefaultBundleName = "bundle.js"

	// DefaultEntryFile is the HTML entry point of the static site.
	DefaultEntryFile = "index.html"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errSameSourceAndOutput is returned when the output root would be the source itself.
	errSameSourceAndOutput = errors.New("source and output directories must differ")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		SourceDir:     DefaultSourceDir,
		OutputDir:     DefaultOutputDir,
		BundleDir:     DefaultBundleDir,
		BundlePattern: DefaultBundlePattern,
		BundleName:    DefaultBundleName,
		EntryFile:     DefaultEntryFile,
	}
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: defaults apply, matching a flagless invocation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()

		return cfg, Validate(cfg)
	} else if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and checks the remaining values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SourceDir == "" {
		cfg.SourceDir = DefaultSourceDir
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.BundleDir == "" {
		cfg.BundleDir = DefaultBundleDir
	}

	if cfg.BundlePattern == "" {
		cfg.BundlePattern = DefaultBundlePattern
	}

	if cfg.BundleName == "" {
		cfg.BundleName = DefaultBundleName
	}

	if cfg.EntryFile == "" {
		cfg.EntryFile = DefaultEntryFile
	}

	if filepath.Clean(cfg.SourceDir) == filepath.Clean(cfg.OutputDir) {
		return errSameSourceAndOutput
	}

	if !doublestar.ValidatePattern(cfg.BundlePattern) {
		return fmt.Errorf("invalid bundle pattern %q", cfg.BundlePattern)
	}

	return nil
}
