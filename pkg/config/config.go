// Package config loads runtime settings from .env, an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Precedence: defaults, then the
// YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	AI          AIConfig          `yaml:"ai"`
	Database    DatabaseConfig    `yaml:"database"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Redis       RedisConfig       `yaml:"redis"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Persistence PersistenceConfig `yaml:"persistence"`

	CORSOrigins []string `yaml:"cors_origins"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Endpoint        string        `yaml:"endpoint"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Configured reports whether a model credential is present. Without one the
// summarizer runs in demo mode.
func (c AIConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type DatabaseConfig struct {
	URL               string `yaml:"url"`
	SupabaseURL       string `yaml:"supabase_url"`
	SupabaseKey       string `yaml:"supabase_key"`
	SupabasePassword  string `yaml:"supabase_db_password"`
	SupabaseJWTSecret string `yaml:"supabase_jwt_secret"`
	MaxOpenConns      int    `yaml:"max_open_conns"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type RedisConfig struct {
	URL            string `yaml:"url"`
	LimitPerMinute int    `yaml:"limit_per_minute"`
}

type AcquisitionConfig struct {
	TranscriptTimeout time.Duration `yaml:"transcript_timeout"`
	MetadataTimeout   time.Duration `yaml:"metadata_timeout"`
}

type PersistenceConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	AutoLinkAITags    bool          `yaml:"auto_link_ai_tags"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "json",
		AI: AIConfig{
			Provider: "gemini",
			Timeout:  60 * time.Second,
		},
		Database: DatabaseConfig{MaxOpenConns: 10},
		Mongo: MongoConfig{
			Database:   "videodigest",
			Collection: "transcripts",
		},
		Redis: RedisConfig{LimitPerMinute: 10},
		Acquisition: AcquisitionConfig{
			TranscriptTimeout: 15 * time.Second,
			MetadataTimeout:   10 * time.Second,
		},
		CORSOrigins: []string{"*"},
	}
}

// Load reads .env (if present), the CONFIG_FILE overlay and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	setString(&c.AI.Provider, "AI_PROVIDER")
	// GEMINI_API_KEY is the historical name; AI_API_KEY wins when both are set.
	setString(&c.AI.APIKey, "GEMINI_API_KEY")
	setString(&c.AI.APIKey, "AI_API_KEY")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.AI.Endpoint, "AI_ENDPOINT")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.SupabaseURL, "SUPABASE_URL")
	setString(&c.Database.SupabaseKey, "SUPABASE_KEY")
	setString(&c.Database.SupabasePassword, "SUPABASE_DB_PASSWORD")
	setString(&c.Database.SupabaseJWTSecret, "SUPABASE_JWT_SECRET")

	setString(&c.Mongo.URI, "MONGO_URI")
	setString(&c.Mongo.Database, "MONGO_DATABASE")
	setString(&c.Mongo.Collection, "MONGO_COLLECTION")

	setString(&c.Redis.URL, "REDIS_URL")

	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"AI_MAX_OUTPUT_TOKENS", &c.AI.MaxOutputTokens},
		{"RATE_LIMIT_PER_MINUTE", &c.Redis.LimitPerMinute},
		{"DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns},
	}
	for _, it := range ints {
		if err := setInt(it.dst, it.key); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"AI_TIMEOUT", &c.AI.Timeout},
		{"TRANSCRIPT_TIMEOUT", &c.Acquisition.TranscriptTimeout},
		{"METADATA_TIMEOUT", &c.Acquisition.MetadataTimeout},
		{"RECONCILE_INTERVAL", &c.Persistence.ReconcileInterval},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	if v, ok := lookup("AUTO_LINK_AI_TAGS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTO_LINK_AI_TAGS: %w", err)
		}
		c.Persistence.AutoLinkAITags = b
	}
	return nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai timeout must be positive, got %s", c.AI.Timeout)
	}
	if c.Acquisition.TranscriptTimeout <= 0 || c.Acquisition.MetadataTimeout <= 0 {
		return fmt.Errorf("acquisition timeouts must be positive")
	}
	if c.Persistence.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile interval must not be negative")
	}
	if c.Redis.LimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// lookup returns a non-empty, trimmed environment value.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
