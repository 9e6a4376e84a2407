package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/johndauphine/litekeep/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultName is the database name used when none is configured.
const DefaultName = "main"

// expandTilde expands ~ or ~/ at the start of a path to the user's home directory
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// Config holds all configuration for litekeep
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Dump       DumpConfig       `yaml:"dump"`
	CSV        CSVConfig        `yaml:"csv"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig selects the database file.
type DatabaseConfig struct {
	Name     string `yaml:"name"`      // File is <data_dir>/<name>.sqlite3
	DataDir  string `yaml:"data_dir"`  // Default ~/.litekeep
	InMemory bool   `yaml:"in_memory"` // Skip the file entirely
	Debug    bool   `yaml:"debug"`     // Log every statement
}

// MigrationsConfig controls the migration runner.
type MigrationsConfig struct {
	Active *bool  `yaml:"active"` // Default true
	File   string `yaml:"file"`   // Optional YAML manifest applied on open
}

// DumpConfig holds dump/restore defaults.
type DumpConfig struct {
	CompatibilityMode bool `yaml:"compatibility_mode"`
}

// CSVConfig holds CSV export/import defaults.
type CSVConfig struct {
	QuoteAllFields bool `yaml:"quote_all_fields"`
	EmptyAsNull    bool `yaml:"empty_as_null"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// LoadOptions controls configuration loading behavior.
type LoadOptions struct {
	SuppressWarnings bool
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads configuration from a YAML file with options.
func LoadWithOptions(path string, opts LoadOptions) (*Config, error) {
	if warning := checkConfigPermissions(path); warning != "" && !opts.SuppressWarnings {
		fmt.Fprint(os.Stderr, warning)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return LoadBytes(data)
}

// LoadBytes reads configuration from YAML bytes.
func LoadBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// DefaultDataDir returns the default directory for database files.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".litekeep"
	}
	return filepath.Join(home, ".litekeep")
}

func (c *Config) applyDefaults() {
	if c.Database.Name == "" {
		c.Database.Name = DefaultName
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = DefaultDataDir()
	}
	c.Database.DataDir = expandTilde(c.Database.DataDir)

	if c.Migrations.Active == nil {
		active := true
		c.Migrations.Active = &active
	}
	c.Migrations.File = expandTilde(c.Migrations.File)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		if c.Database.Debug {
			c.Logging.Level = "debug"
		}
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks values that cannot be corrected by defaults. It is run by
// LoadBytes and again by callers after applying flag overrides.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Database.Name, `/\`) || c.Database.Name == "." || c.Database.Name == ".." {
		return fmt.Errorf("database.name must be a plain name, got '%s'", c.Database.Name)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}
	if !c.MigrationsActive() && c.Migrations.File != "" {
		return fmt.Errorf("migrations.file is set but migrations.active is false")
	}
	return nil
}

// MigrationsActive reports whether migrations run when the database is opened.
func (c *Config) MigrationsActive() bool {
	return c.Migrations.Active == nil || *c.Migrations.Active
}

// SetMigrationsActive overrides migrations.active.
func (c *Config) SetMigrationsActive(active bool) {
	c.Migrations.Active = &active
}

// DatabasePath returns the file the database lives in, or "" when in memory.
func (c *Config) DatabasePath() string {
	if c.Database.InMemory {
		return ""
	}
	return filepath.Join(c.Database.DataDir, c.Database.Name+".sqlite3")
}

// StorageWarnings checks the data directory and the database file for
// permissions that let other users modify them. In-memory databases and
// paths that do not exist yet yield none.
func (c *Config) StorageWarnings() []string {
	if c.Database.InMemory {
		return nil
	}
	var warnings []string
	for _, path := range []string{c.Database.DataDir, c.DatabasePath()} {
		if w := checkStoragePermissions(path); w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
