// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.regsearch/config.yaml or ./config.yaml)
//  3. Default values
//
// Security: sensitive values (the PostgreSQL password) are masked in
// MarshalJSON/String. Validation is fail-fast with sentinel errors
// checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/civicaid/regsearch/internal/regdoc"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidExtractModel indicates the extraction model is invalid.
	ErrInvalidExtractModel = errors.New("invalid extraction model")

	// ErrInvalidTopK indicates the search top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidCloseness indicates the tie-break threshold is out of range.
	ErrInvalidCloseness = errors.New("invalid closeness threshold")

	// ErrInvalidChunking indicates chunk size/overlap values are unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidHierarchy indicates the hierarchy list is empty or malformed.
	ErrInvalidHierarchy = errors.New("invalid hierarchy levels")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel embeds at 768 dimensions, matching the
	// pgvector schema. Changing the model requires re-ingestion.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultExtractModel performs inline PDF text extraction.
	DefaultExtractModel = "gemini-2.5-flash"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Model configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	ExtractModel  string `mapstructure:"extract_model" json:"extract_model"`

	// Corpus layout: hierarchy directory names in priority order,
	// highest first.
	Hierarchies []string `mapstructure:"hierarchies" json:"hierarchies"`
	CorpusDir   string   `mapstructure:"corpus_dir" json:"corpus_dir"`

	// Ingestion pipeline tuning
	ChunkSize       int   `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int   `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MinContent      int   `mapstructure:"min_content" json:"min_content"`
	MaxFileSizeMB   int64 `mapstructure:"max_file_size_mb" json:"max_file_size_mb"`
	ChunkDelayMS    int   `mapstructure:"chunk_delay_ms" json:"chunk_delay_ms"`
	DocumentDelayMS int   `mapstructure:"document_delay_ms" json:"document_delay_ms"`

	// Search tuning
	TopK      int     `mapstructure:"top_k" json:"top_k"`
	Closeness float64 `mapstructure:"closeness" json:"closeness"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Serve mode
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability (see observability.go)
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".regsearch")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("extract_model", DefaultExtractModel)

	viper.SetDefault("hierarchies", regdoc.DefaultHierarchy)
	viper.SetDefault("corpus_dir", "./corpus")

	viper.SetDefault("chunk_size", 2000)
	viper.SetDefault("chunk_overlap", 300)
	viper.SetDefault("min_content", 100)
	viper.SetDefault("max_file_size_mb", 50)
	viper.SetDefault("chunk_delay_ms", 300)
	viper.SetDefault("document_delay_ms", 1000)

	viper.SetDefault("top_k", 15)
	viper.SetDefault("closeness", 0.1)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "regsearch")
	viper.SetDefault("postgres_password", "regsearch_dev_password")
	viper.SetDefault("postgres_db_name", "regsearch")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "regsearch")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
//
// GEMINI_API_KEY is read directly by the Genkit and genai clients, not
// via viper; Validate() only checks its presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "REGSEARCH_LISTEN_ADDR")
	mustBind("trust_proxy", "REGSEARCH_TRUST_PROXY")
	mustBind("corpus_dir", "REGSEARCH_CORPUS_DIR")
	mustBind("embedder_model", "REGSEARCH_EMBEDDER_MODEL")
	mustBind("extract_model", "REGSEARCH_EXTRACT_MODEL")
	mustBind("log_level", "REGSEARCH_LOG_LEVEL")
	mustBind("log_json", "REGSEARCH_LOG_JSON")
	mustBind("otel.enabled", "REGSEARCH_OTEL_ENABLED")
	mustBind("otel.endpoint", "REGSEARCH_OTEL_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes
// or fewer are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit masking of
// sensitive fields. When adding new secrets, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// ChunkDelay returns the pacing interval between embedding calls.
func (c *Config) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMS) * time.Millisecond
}

// DocumentDelay returns the pause between ingested documents.
func (c *Config) DocumentDelay() time.Duration {
	return time.Duration(c.DocumentDelayMS) * time.Millisecond
}

// MaxFileSize returns the ingestion size guard in bytes.
func (c *Config) MaxFileSize() int64 {
	return c.MaxFileSizeMB << 20
}
