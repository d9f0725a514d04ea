// Package config loads the statforge configuration from a file, .env and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/statforge/pkg/adapters/llm"
	"github.com/aretw0/statforge/pkg/domain"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "statforge.yaml"

// Config is the full runtime configuration.
type Config struct {
	LogLevel     string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	System       string `yaml:"system" json:"system"`
	MaxRevisions int    `yaml:"max_revisions" json:"max_revisions" validate:"gte=0"`
	TopK         int    `yaml:"top_k" json:"top_k" validate:"gte=0"`

	Backend   Backend   `yaml:"backend" json:"backend"`
	Store     Store     `yaml:"store" json:"store"`
	Corpus    Corpus    `yaml:"corpus" json:"corpus"`
	Retrieval Retrieval `yaml:"retrieval" json:"retrieval"`
	Redis     Redis     `yaml:"redis" json:"redis"`
	Telemetry Telemetry `yaml:"telemetry" json:"telemetry"`
}

// Backend selects the generation backend.
type Backend struct {
	Provider       string  `yaml:"provider" json:"provider" validate:"required,oneof=openai deepseek gemini ollama mock"`
	Model          string  `yaml:"model" json:"model" validate:"required_unless=Provider mock"`
	APIKey         string  `yaml:"api_key" json:"api_key"`
	BaseURL        string  `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Temperature    float64 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// Settings converts the section into backend settings.
func (b Backend) Settings() llm.Settings {
	return llm.Settings{
		Provider:    b.Provider,
		Model:       b.Model,
		APIKey:      b.APIKey,
		BaseURL:     b.BaseURL,
		Temperature: b.Temperature,
		Timeout:     time.Duration(b.TimeoutSeconds) * time.Second,
	}
}

// Store selects where session checkpoints live.
type Store struct {
	Type       string `yaml:"type" json:"type" validate:"oneof=memory file redis"`
	Path       string `yaml:"path" json:"path"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds" validate:"gte=0"`
	// LockTTLSeconds bounds distributed session locks. Zero keeps the default.
	LockTTLSeconds int `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds" validate:"gte=0"`

	// EncryptionKey is a base64 AES-256 key. When set, checkpoints are sealed at rest.
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys" validate:"dive,base64"`
}

// Corpus selects where finished stat blocks are archived.
type Corpus struct {
	Type   string `yaml:"type" json:"type" validate:"oneof=memory csv redis"`
	Dir    string `yaml:"dir" json:"dir"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Retrieval configures example lookup.
type Retrieval struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// IndexPath persists the search index. Empty keeps it in memory.
	IndexPath string `yaml:"index_path" json:"index_path"`
}

// Redis is shared by the redis store, corpus and locker.
type Redis struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// Telemetry configures metrics and tracing.
type Telemetry struct {
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	Tracing     bool   `yaml:"tracing" json:"tracing"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel:     "info",
		System:       domain.DefaultSystem,
		MaxRevisions: 1,
		TopK:         2,
		Backend: Backend{
			Provider:    llm.ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		Store: Store{
			Type: "file",
			Path: ".statforge/sessions",
		},
		Corpus: Corpus{
			Type:   "csv",
			Dir:    ".",
			Prefix: "dnd_converter_outputs",
		},
		Retrieval: Retrieval{Enabled: true},
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "statforge:",
		},
	}
}

// Load reads path over the defaults, applies .env and environment overrides and validates
// the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env is optional; real environment variables take precedence over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "STATFORGE_LOG_LEVEL")
	setString(&cfg.System, "STATFORGE_SYSTEM")
	setString(&cfg.Backend.Provider, "STATFORGE_PROVIDER")
	setString(&cfg.Backend.Model, "STATFORGE_MODEL")
	setString(&cfg.Backend.BaseURL, "STATFORGE_BASE_URL")
	setString(&cfg.Store.Type, "STATFORGE_STORE")
	setString(&cfg.Corpus.Type, "STATFORGE_CORPUS")
	setString(&cfg.Corpus.Dir, "STATFORGE_CORPUS_DIR")
	setString(&cfg.Redis.Addr, "STATFORGE_REDIS_ADDR")
	setString(&cfg.Redis.Password, "STATFORGE_REDIS_PASSWORD")
	setString(&cfg.Telemetry.MetricsAddr, "STATFORGE_METRICS_ADDR")
	setString(&cfg.Store.EncryptionKey, "STATFORGE_ENCRYPTION_KEY")

	if err := setInt(&cfg.MaxRevisions, "STATFORGE_MAX_REVISIONS"); err != nil {
		return err
	}
	if err := setInt(&cfg.TopK, "STATFORGE_TOP_K"); err != nil {
		return err
	}

	// Provider specific keys only fill an unset key.
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = os.Getenv(providerKeyEnv(cfg.Backend.Provider))
	}
	setString(&cfg.Backend.APIKey, "STATFORGE_API_KEY")
	if cfg.Backend.Provider == llm.ProviderOllama && cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	return nil
}

func providerKeyEnv(provider string) string {
	switch provider {
	case llm.ProviderGemini:
		return "GEMINI_API_KEY"
	case llm.ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints of cfg.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
