package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/cache"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/reparse"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Parser  ParserConfig      `yaml:"parser"`
	Reparse ReparseConfig     `yaml:"reparse"`
	Cache   CacheConfig       `yaml:"cache"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Parser.Validate(); err != nil {
		return err
	}
	if err := c.Reparse.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the directory of .zortex documents.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ParserConfig tunes full parses.
type ParserConfig struct {
	MetadataLines int           `yaml:"metadata_lines"`
	ParseBudget   time.Duration `yaml:"parse_budget"`
}

// Validate validates the parser configuration.
func (c *ParserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MetadataLines, validation.Required, validation.Min(1)),
		validation.Field(&c.ParseBudget, validation.Min(time.Duration(0))),
	)
}

// DocumentOptions turns the parser and reparse sections into options for
// every document the registry creates.
func (c *Config) DocumentOptions() []document.Option {
	return []document.Option{
		document.WithMetadataLines(c.Parser.MetadataLines),
		document.WithParseBudget(c.Parser.ParseBudget),
		document.WithThresholds(c.Reparse.MaxDirtyLines, c.Reparse.MaxDirtyRanges),
	}
}

// ReparseConfig controls when edited buffers are parsed again.
//
// Policy is one of:
//   - "immediate": parse on the next tick after an edit.
//   - "debounce" (default): parse once no edit arrived for Debounce.
//   - "deferred": parse only when the buffer is saved or queried fresh.
//
// MaxDirtyLines and MaxDirtyRanges bound the pending edits an incremental
// parse accepts; beyond them the whole tree is rebuilt.
type ReparseConfig struct {
	Policy         string        `yaml:"policy"`
	Debounce       time.Duration `yaml:"debounce"`
	MaxDirtyLines  int           `yaml:"max_dirty_lines"`
	MaxDirtyRanges int           `yaml:"max_dirty_ranges"`
}

// Validate validates the reparse configuration.
func (c *ReparseConfig) Validate() error {
	if c.Policy == "" {
		c.Policy = string(reparse.Debounce)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Policy, validation.In(
			string(reparse.Immediate), string(reparse.Debounce), string(reparse.Deferred))),
		validation.Field(&c.Debounce, validation.When(c.Policy == string(reparse.Debounce),
			validation.Required, validation.Min(time.Millisecond))),
		validation.Field(&c.MaxDirtyLines, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxDirtyRanges, validation.Required, validation.Min(1)),
	)
}

// PolicyValue returns the validated policy.
func (c *ReparseConfig) PolicyValue() reparse.Policy {
	p, err := reparse.ParsePolicy(c.Policy)
	if err != nil {
		return reparse.Debounce
	}
	return p
}

// CacheConfig bounds the file-bound document cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./zortex.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Parser: ParserConfig{
			MetadataLines: parser.DefaultMetadataLines,
			ParseBudget:   50 * time.Millisecond,
		},
		Reparse: ReparseConfig{
			Policy:         string(reparse.Debounce),
			Debounce:       reparse.DefaultDelay,
			MaxDirtyLines:  document.DefaultMaxDirtyLines,
			MaxDirtyRanges: document.DefaultMaxDirtyRanges,
		},
		Cache: CacheConfig{
			Capacity: cache.DefaultCapacity,
		},
	}
}
