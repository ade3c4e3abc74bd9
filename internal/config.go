package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/laguz/internal/ai"
	"github.com/starford/laguz/internal/autoconsolidate"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	AI            AIConfig            `yaml:"ai"`
	Backup        BackupConfig        `yaml:"backup"`
	Auth          AuthConfig          `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Consolidation.Validate(); err != nil {
		return fmt.Errorf("consolidation: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
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

// ConsolidationConfig holds the defaults of every run. Root is the base
// directory all relative roots resolve against.
type ConsolidationConfig struct {
	Root              string   `yaml:"root"`
	Mode              string   `yaml:"mode"`
	MaxOutputFiles    int      `yaml:"max_output_files"`
	CreateSuperReadme bool     `yaml:"create_super_readme"`
	ArchiveStale      bool     `yaml:"archive_stale"`
	StripTOC          bool     `yaml:"strip_toc"`
	IncludeTextFiles  bool     `yaml:"include_text_files"`
	Flatten           bool     `yaml:"flatten"`
	Parallel          bool     `yaml:"parallel"`
	ArchiveDir        string   `yaml:"archive_dir"`
	Exclude           []string `yaml:"exclude"`
}

// Validate validates the consolidation configuration.
func (c *ConsolidationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Mode, validation.Required,
			validation.In(string(autoconsolidate.ModeCompress), string(autoconsolidate.ModeArchive))),
		validation.Field(&c.MaxOutputFiles, validation.Required, validation.Min(1)),
	)
}

// Options converts the configuration into orchestrator options.
func (c *ConsolidationConfig) Options() autoconsolidate.Options {
	return autoconsolidate.Options{
		Mode:              autoconsolidate.Mode(c.Mode),
		MaxOutputFiles:    c.MaxOutputFiles,
		CreateSuperReadme: c.CreateSuperReadme,
		ArchiveStale:      c.ArchiveStale,
		StripTOC:          c.StripTOC,
		IncludeTextFiles:  c.IncludeTextFiles,
		Flatten:           c.Flatten,
		Parallel:          c.Parallel,
		ArchiveDir:        c.ArchiveDir,
		Exclude:           c.Exclude,
	}
}

// AIConfig holds the optional clustering and classification endpoint.
// Without it every run uses deterministic folder clustering.
type AIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Model, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ClientConfig converts the configuration for ai.New.
func (c *AIConfig) ClientConfig() ai.Config {
	return ai.Config{
		Endpoint:     c.Endpoint,
		Model:        c.Model,
		APIKey:       c.APIKey,
		SystemPrompt: c.SystemPrompt,
		Timeout:      c.Timeout,
	}
}

// BackupConfig holds the SQLite backup store location.
type BackupConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
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
	// Normalise empty mode to "disabled".
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Consolidation: ConsolidationConfig{
			Root:           ".",
			Mode:           string(autoconsolidate.ModeCompress),
			MaxOutputFiles: 1,
			ArchiveDir:     autoconsolidate.DefaultArchiveDir,
		},
		AI: AIConfig{
			Timeout: 60 * time.Second,
		},
		Backup: BackupConfig{
			Path: ".laguz/backups.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
