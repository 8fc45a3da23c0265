// Package config loads the server configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretKeyEnv overrides secret_key when set.
const SecretKeyEnv = "BLOCKRT_SECRET_KEY"

// Config is the server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// BaseURL is prepended to handler URLs, e.g. https://lms.example.com.
	BaseURL string `yaml:"base_url,omitempty"`

	// BlockstoreDB is the blockstore SQLite file.
	BlockstoreDB string `yaml:"blockstore_db"`

	// EnrollmentsDB is the enrollments SQLite file.
	EnrollmentsDB string `yaml:"enrollments_db"`

	// ReadReplicaDB, if set, serves enrollment reads.
	ReadReplicaDB string `yaml:"read_replica_db,omitempty"`

	// CatalogFile is an optional YAML program catalog.
	CatalogFile string `yaml:"catalog_file,omitempty"`

	// MaxDefinitionsLoaded is the field cache's soft ceiling.
	MaxDefinitionsLoaded int `yaml:"max_definitions_loaded"`

	// SecretKey signs handler URL tokens.
	SecretKey string `yaml:"secret_key"`

	// BlockTypesDir holds extra CUE block type declarations.
	BlockTypesDir string `yaml:"block_types_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Contexts are the content libraries served.
	Contexts []Context `yaml:"contexts"`
}

// Context binds a learning context key to a bundle revision.
type Context struct {
	Key     string  `yaml:"key"`
	Bundle  string  `yaml:"bundle"`
	Draft   string  `yaml:"draft,omitempty"`
	Version int64   `yaml:"version,omitempty"` // 0 with no draft = latest at startup
	Public  bool    `yaml:"public,omitempty"`
	Editors []int64 `yaml:"editors,omitempty"`
	Viewers []int64 `yaml:"viewers,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{
		Listen:               ":8000",
		BlockstoreDB:         "blockstore.db",
		EnrollmentsDB:        "enrollments.db",
		MaxDefinitionsLoaded: 100,
		LogLevel:             "info",
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// errors. Relative file paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv(SecretKeyEnv); v != "" {
		cfg.SecretKey = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.BlockstoreDB == "" {
		errs = append(errs, errors.New("blockstore_db is required"))
	}
	if c.EnrollmentsDB == "" {
		errs = append(errs, errors.New("enrollments_db is required"))
	}
	if c.MaxDefinitionsLoaded < 1 {
		errs = append(errs, fmt.Errorf("max_definitions_loaded must be at least 1, got %d", c.MaxDefinitionsLoaded))
	}
	if c.SecretKey == "" {
		errs = append(errs, fmt.Errorf("secret_key is required (or set %s)", SecretKeyEnv))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for i, lc := range c.Contexts {
		where := fmt.Sprintf("contexts[%d]", i)
		switch {
		case lc.Key == "":
			errs = append(errs, fmt.Errorf("%s: key is required", where))
		case strings.ContainsAny(lc.Key, ":/ "):
			errs = append(errs, fmt.Errorf("%s: key %q may not contain ':', '/' or spaces", where, lc.Key))
		case seen[lc.Key]:
			errs = append(errs, fmt.Errorf("%s: duplicate key %q", where, lc.Key))
		}
		seen[lc.Key] = true
		if lc.Bundle == "" {
			errs = append(errs, fmt.Errorf("%s: bundle is required", where))
		}
		if lc.Draft != "" && lc.Version != 0 {
			errs = append(errs, fmt.Errorf("%s: set draft or version, not both", where))
		}
		if lc.Version < 0 {
			errs = append(errs, fmt.Errorf("%s: negative version %d", where, lc.Version))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.BlockstoreDB, &c.EnrollmentsDB, &c.ReadReplicaDB, &c.CatalogFile, &c.BlockTypesDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
