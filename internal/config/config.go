// Package config loads tracemark settings from .tracemark/config.yaml, a .env
// file and TRACEMARK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// Dir is the per-project settings directory.
	Dir = ".tracemark"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TRACEMARK"
	// Unknown is the placeholder left in unconfigured path settings.
	Unknown = "UNKNOWN"
)

// Config is the complete tracemark configuration.
type Config struct {
	// VaultPath is the notes vault root on disk. Documentation paths are
	// relative to it.
	VaultPath            string        `mapstructure:"vault_path"`
	DocumentPath         string        `mapstructure:"document_path"`
	ApplicationPath      string        `mapstructure:"application_path"`
	ApplicationExtension string        `mapstructure:"application_extension"`
	UnitTestPath         string        `mapstructure:"unit_test_path"`
	ScanInterval         time.Duration `mapstructure:"scan_interval"`
	GroupBySize          int           `mapstructure:"group_by_size"`
	// RebuildOnCycle regenerates solutions and the marker table after every
	// completed scan cycle.
	RebuildOnCycle bool `mapstructure:"rebuild_on_cycle"`
	// Transform is an optional Risor script applied to extracted comments.
	Transform string `mapstructure:"transform"`

	Lexer  LexerConfig  `mapstructure:"lexer"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Log    LogConfig    `mapstructure:"log"`
}

// LexerConfig selects and tunes the comment lexer.
type LexerConfig struct {
	Mode       string   `mapstructure:"mode"` // rules|syntax
	LineTokens []string `mapstructure:"line_tokens"`
}

// LedgerConfig controls the SQLite scan ledger.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text|json
	File   string `mapstructure:"file"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		ApplicationExtension: ".java",
		ScanInterval:         2 * time.Second,
		GroupBySize:          20,
		Lexer: LexerConfig{
			Mode:       "rules",
			LineTokens: []string{"//bus"},
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    filepath.Join(Dir, "ledger.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	for k, val := range d.toMap() {
		v.SetDefault(k, val)
	}
}

func (c *Config) toMap() map[string]any {
	return map[string]any{
		"vault_path":            c.VaultPath,
		"document_path":         c.DocumentPath,
		"application_path":      c.ApplicationPath,
		"application_extension": c.ApplicationExtension,
		"unit_test_path":        c.UnitTestPath,
		"scan_interval":         c.ScanInterval.String(),
		"group_by_size":         c.GroupBySize,
		"rebuild_on_cycle":      c.RebuildOnCycle,
		"transform":             c.Transform,
		"lexer.mode":            c.Lexer.Mode,
		"lexer.line_tokens":     c.Lexer.LineTokens,
		"ledger.enabled":        c.Ledger.Enabled,
		"ledger.path":           c.Ledger.Path,
		"log.level":             c.Log.Level,
		"log.format":            c.Log.Format,
		"log.file":              c.Log.File,
	}
}

// Load reads configuration for the project rooted at dir. A .env file in dir
// is loaded into the environment first. When file is non-empty it is read
// instead of dir/.tracemark/config.*. A missing config file yields defaults
// with environment overrides applied.
func Load(dir, file string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(dir, Dir))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to path. The format follows the extension.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	for k, val := range c.toMap() {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DocsConfigured reports whether the documentation path is set.
func (c *Config) DocsConfigured() bool {
	return isSet(c.DocumentPath)
}

// ValidateDocs checks the settings the builders need.
func (c *Config) ValidateDocs() error {
	if !c.DocsConfigured() {
		return &ConfigError{Field: "document_path", Message: "documentation path is not configured"}
	}
	return nil
}

// ValidateScan checks the settings the scanner needs.
func (c *Config) ValidateScan() error {
	if err := c.ValidateDocs(); err != nil {
		return err
	}
	switch {
	case !isSet(c.ApplicationPath):
		return &ConfigError{Field: "application_path", Message: "application path is not configured"}
	case !isSet(c.UnitTestPath):
		return &ConfigError{Field: "unit_test_path", Message: "unit test path is not configured"}
	case c.ApplicationExtension == "":
		return &ConfigError{Field: "application_extension", Message: "extension is empty"}
	case c.ScanInterval <= 0:
		return &ConfigError{Field: "scan_interval", Message: "must be positive"}
	case c.GroupBySize <= 0:
		return &ConfigError{Field: "group_by_size", Message: "must be positive"}
	}
	switch c.Lexer.Mode {
	case "", "rules", "syntax":
	default:
		return &ConfigError{Field: "lexer.mode", Message: fmt.Sprintf("unknown mode %q", c.Lexer.Mode)}
	}
	return nil
}

func isSet(s string) bool {
	return s != "" && s != Unknown
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
