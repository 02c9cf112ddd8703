// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for forklore configuration.
	DefaultConfigDir = ".forklore"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite file name inside DefaultConfigDir.
	DefaultDatabaseFile = "forklore.db"
	// DefaultBusyTimeoutMS is how long SQLite waits for a lock.
	DefaultBusyTimeoutMS = 5000
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	SQLite    SQLiteConfig    `yaml:"sqlite,omitempty"`
	Branching BranchingConfig `yaml:"branching,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Search    SearchConfig    `yaml:"search,omitempty"`
	Qdrant    QdrantConfig    `yaml:"qdrant,omitempty"`
	Embedder  EmbedderConfig  `yaml:"embedder,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr,omitempty" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" validate:"gte=0"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database, or ":memory:".
	// Relative paths are resolved against the project directory.
	Path          string `yaml:"path,omitempty"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms,omitempty" validate:"gte=0"`
}

// BranchingConfig holds the fork and promotion rules.
type BranchingConfig struct {
	// DefaultVoteThreshold applies to new branches that do not set their own.
	DefaultVoteThreshold int `yaml:"default_vote_threshold,omitempty" validate:"min=1"`
	// ForkDedupWindow is how long an identical fork by the same author is
	// treated as a double submit.
	ForkDedupWindow time.Duration `yaml:"fork_dedup_window,omitempty" validate:"gte=0"`
}

// CacheConfig holds configuration for the snapshot resolution cache.
type CacheConfig struct {
	Entries int `yaml:"entries,omitempty" validate:"gte=0"`
}

// SearchConfig toggles spoiler-safe semantic search.
type SearchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty" validate:"omitempty,oneof=openai"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// LLMConfig holds configuration for the AI-assist provider.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty" validate:"omitempty,oneof=openai"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// LogConfig holds configuration for structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=json text"`
}

// TelemetryConfig holds configuration for tracing.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name,omitempty"`
	// OTLPEndpoint is a host:port gRPC collector address. Empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		SQLite: SQLiteConfig{
			BusyTimeoutMS: DefaultBusyTimeoutMS,
		},
		Branching: BranchingConfig{
			DefaultVoteThreshold: 100,
			ForkDedupWindow:      10 * time.Second,
		},
		Cache: CacheConfig{
			Entries: 4096,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "forklore_snapshots",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "forklore",
		},
	}
}

// Load loads configuration from the .forklore directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'forklore init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(basePath, data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(basePath string, data []byte) (*Config, error) {
	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	cfg.resolvePaths(basePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Search.Enabled && c.Embedder.APIKey == "" {
		return errors.New("invalid config: search.enabled requires an embedder api key (or OPENAI_API_KEY)")
	}
	return nil
}

// AssistEnabled reports whether the AI-assist pipeline can be reached.
func (c *Config) AssistEnabled() bool {
	return c.LLM.APIKey != ""
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		if c.Qdrant.APIKey == "" {
			c.Qdrant.APIKey = key
		}
	}
	if path := os.Getenv("FORKLORE_DB_PATH"); path != "" {
		c.SQLite.Path = path
	}
	if addr := os.Getenv("FORKLORE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("FORKLORE_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" && c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = endpoint
	}
}

// resolvePaths fills in the default database path and anchors relative
// paths at basePath.
func (c *Config) resolvePaths(basePath string) {
	switch {
	case c.SQLite.Path == "":
		c.SQLite.Path = DatabasePath(basePath)
	case c.SQLite.Path == ":memory:", filepath.IsAbs(c.SQLite.Path):
	default:
		c.SQLite.Path = filepath.Join(basePath, c.SQLite.Path)
	}
}

// ConfigDir returns the path to the .forklore config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// DatabasePath returns the default SQLite database path.
func DatabasePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultDatabaseFile)
}
