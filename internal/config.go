package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultgraph/internal/entities"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/watcher"
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
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Index    IndexConfig       `yaml:"index"`
	Watcher  WatcherConfig     `yaml:"watcher"`
	Store    StoreConfig       `yaml:"store"`
	Entities EntitiesConfig    `yaml:"entities"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"vault", &c.Vault},
		{"index", &c.Index},
		{"watcher", &c.Watcher},
		{"store", &c.Store},
		{"entities", &c.Entities},
		{"auth", &c.Auth},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	LogFile   LogFile    `yaml:"log_file"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFile configures an optional size-rotated copy of the log.
type LogFile struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogFile) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

// VaultConfig describes the Markdown vault.
type VaultConfig struct {
	Path        string   `yaml:"path"`
	Extensions  []string `yaml:"extensions"`
	Ignore      []string `yaml:"ignore"`
	MaxNoteSize int64    `yaml:"max_note_size"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.MaxNoteSize, validation.Required, validation.Min(int64(1))),
	)
}

// Filter returns the note filter for this vault.
func (c *VaultConfig) Filter() storage.Filter {
	return storage.Filter{Extensions: c.Extensions, Ignore: c.Ignore}
}

// IndexConfig tunes full indexing.
type IndexConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// WatcherConfig tunes the change watcher.
type WatcherConfig struct {
	Debounce   time.Duration `yaml:"debounce"`
	MoveWindow time.Duration `yaml:"move_window"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
}

// Validate validates the watcher configuration.
func (c *WatcherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MoveWindow, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
	)
}

// watcherConfig returns the watcher settings for root.
func (c *WatcherConfig) watcherConfig(root string, filter storage.Filter) watcher.Config {
	return watcher.Config{
		Root:       root,
		Debounce:   c.Debounce,
		MoveWindow: c.MoveWindow,
		Workers:    c.Workers,
		QueueSize:  c.QueueSize,
		Accept:     func(abs string) bool { return filter.Accept(root, abs) },
		IgnoreDir:  filter.IgnoredDir,
	}
}

// StoreConfig selects and configures the graph backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Neo4j   Neo4jConfig  `yaml:"neo4j"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	sqlite := c.Backend == graph.BackendSQLite
	neo := c.Backend == graph.BackendNeo4j
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(graph.BackendSQLite, graph.BackendNeo4j)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.SQLite,
		validation.Field(&c.SQLite.Path, validation.When(sqlite, validation.Required)),
		validation.Field(&c.SQLite.Driver, validation.In(graph.DriverCGO, graph.DriverPureGo)),
	); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := validation.ValidateStruct(&c.Neo4j,
		validation.Field(&c.Neo4j.URI, validation.When(neo, validation.Required)),
		validation.Field(&c.Neo4j.User, validation.When(neo, validation.Required)),
	); err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}
	return nil
}

// GraphConfig returns the graph.Open settings.
func (c *StoreConfig) GraphConfig() graph.Config {
	return graph.Config{
		Backend:      c.Backend,
		SQLitePath:   c.SQLite.Path,
		SQLiteDriver: c.SQLite.Driver,
		Neo4j: graph.Neo4jConfig{
			URI:      c.Neo4j.URI,
			User:     c.Neo4j.User,
			Password: c.Neo4j.Password,
			Database: c.Neo4j.Database,
		},
	}
}

// EntitiesConfig configures optional entity detection.
type EntitiesConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Provider      string        `yaml:"provider"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	MaxContent    int           `yaml:"max_content"`
}

// Validate validates the entity detection configuration.
func (c *EntitiesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(entities.ProviderHeuristic, entities.ProviderAnthropic)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RatePerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
		validation.Field(&c.MaxContent, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Enabled && c.Provider == entities.ProviderAnthropic && c.APIKey == "" {
		return errors.New("provider is anthropic but api_key is empty")
	}
	return nil
}

// DetectorConfig returns the entities.New settings.
func (c *EntitiesConfig) DetectorConfig() entities.Config {
	return entities.Config{
		Provider: c.Provider,
		Anthropic: entities.AnthropicConfig{
			APIKey:     c.APIKey,
			Model:      c.Model,
			BaseURL:    c.BaseURL,
			MaxContent: c.MaxContent,
		},
		RatePerSecond: c.RatePerSecond,
		Burst:         c.Burst,
	}
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config with the documented defaults.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			LogFile: LogFile{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:        "./vault",
			Extensions:  append([]string(nil), storage.DefaultExtensions...),
			Ignore:      append([]string(nil), storage.DefaultIgnore...),
			MaxNoteSize: storage.DefaultMaxNoteSize,
		},
		Index: IndexConfig{
			Workers: 4,
		},
		Watcher: WatcherConfig{
			Debounce:   watcher.DefaultDebounce,
			MoveWindow: watcher.DefaultMoveWindow,
			Workers:    watcher.DefaultWorkers,
			QueueSize:  watcher.DefaultQueueSize,
		},
		Store: StoreConfig{
			Backend: graph.BackendSQLite,
			SQLite: SQLiteConfig{
				Path:   "./vaultgraph.db",
				Driver: graph.DriverCGO,
			},
			Neo4j: Neo4jConfig{
				URI:      "neo4j://localhost:7687",
				User:     "neo4j",
				Database: "neo4j",
			},
		},
		Entities: EntitiesConfig{
			Provider:      entities.ProviderHeuristic,
			Model:         entities.DefaultModel,
			Timeout:       30 * time.Second,
			RatePerSecond: 2,
			Burst:         1,
			MaxContent:    8000,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
