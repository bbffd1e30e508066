package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pario-ai/wanderplan/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all wanderplan configuration.
type Config struct {
	Listen      string             `yaml:"listen"`
	DBPath      string             `yaml:"db_path"`
	SecretsFile string             `yaml:"secrets_file"`
	Providers   []ProviderConfig   `yaml:"providers"`
	Completion  CompletionConfig   `yaml:"completion"`
	Router      RouterConfig       `yaml:"router"`
	Cache       CacheConfig        `yaml:"cache"`
	Translation TranslationConfig  `yaml:"translation"`
	Weather     LookupConfig       `yaml:"weather"`
	Images      LookupConfig       `yaml:"images"`
	Budget      BudgetConfig       `yaml:"budget"`
	Audit       models.AuditConfig `yaml:"audit"`
	Log         LogConfig          `yaml:"log"`

	secrets Secrets
}

// RouterConfig defines model routing and fallback chains.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a model alias to an ordered list of targets.
type RouteConfig struct {
	Model   string        `yaml:"model"`
	Targets []RouteTarget `yaml:"targets"`
}

// RouteTarget identifies a specific provider and model in a fallback chain.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ProviderConfig defines an upstream generation provider.
// Type is "gemini" (default) or "openai". When APIKey is empty the key is
// looked up by APIKeyEnv in the secrets file and then the environment.
// Model, when set, replaces a requested model name that is not a route alias.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// CompletionConfig controls generation calls.
type CompletionConfig struct {
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

// BackoffConfig controls the delay between retry attempts.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     bool          `yaml:"jitter"`
}

// CacheConfig controls the result cache. Backend is "memory", "sqlite" or
// "redis"; the latter two add a persistent tier behind the memory tier.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig locates the redis cache tier.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// TranslationConfig controls the response translator.
type TranslationConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LookupConfig controls an optional keyed HTTP lookup (weather, images).
type LookupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BudgetConfig controls token budget enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		DBPath:      "wanderplan.db",
		SecretsFile: "secrets.yaml",
		Completion: CompletionConfig{
			Model:      "gemini-2.0-flash",
			MaxRetries: 3,
			Timeout:    30 * time.Second,
			Backoff: BackoffConfig{
				Initial:    500 * time.Millisecond,
				Max:        8 * time.Second,
				Multiplier: 2,
				Jitter:     true,
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			TTL:        time.Hour,
			MaxEntries: 512,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "wanderplan:plan:",
			},
		},
		Translation: TranslationConfig{
			Enabled: true,
			URL:     "https://translate.googleapis.com",
			Timeout: 15 * time.Second,
		},
		Weather: LookupConfig{
			URL:       "https://api.openweathermap.org",
			APIKeyEnv: "OPENWEATHER_API_KEY",
			Timeout:   10 * time.Second,
		},
		Images: LookupConfig{
			URL:       "https://api.unsplash.com",
			APIKeyEnv: "UNSPLASH_ACCESS_KEY",
			Timeout:   10 * time.Second,
		},
		Audit: models.AuditConfig{
			DBPath:        "wanderplan-audit.db",
			RetentionDays: 30,
			Include:       []string{"prompts"},
			MaxBodySize:   8192,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and expands environment variables. A .env
// file next to the config is loaded first without overriding variables that
// are already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SecretsFile != "" && !filepath.IsAbs(cfg.SecretsFile) {
		cfg.SecretsFile = filepath.Join(filepath.Dir(path), cfg.SecretsFile)
	}
	secrets, err := LoadSecrets(cfg.SecretsFile)
	if err != nil {
		return nil, err
	}
	cfg.secrets = secrets

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default
// otherwise, still honouring .env and the environment for credentials.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := Default()
	secrets, err := LoadSecrets(cfg.SecretsFile)
	if err != nil {
		return nil, err
	}
	cfg.secrets = secrets
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// EffectiveProviders returns the configured providers, or a single Gemini
// provider keyed by GOOGLE_API_KEY when none are configured.
func (c *Config) EffectiveProviders() []ProviderConfig {
	if len(c.Providers) > 0 {
		return c.Providers
	}
	return []ProviderConfig{{Name: "gemini", Type: "gemini"}}
}

// ProviderKey resolves a provider credential.
func (c *Config) ProviderKey(p ProviderConfig) string {
	env := p.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv(p.Type)
	}
	return c.secrets.Resolve(p.APIKey, env)
}

// LookupKey resolves a weather or image service credential.
func (c *Config) LookupKey(l LookupConfig) string {
	return c.secrets.Resolve(l.APIKey, l.APIKeyEnv)
}

func defaultKeyEnv(providerType string) string {
	switch strings.ToLower(providerType) {
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return "GOOGLE_API_KEY"
	}
}

// ConfigurationError reports credentials or settings that make the
// pipeline unusable. It is fatal: no request is attempted.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.Join(e.Problems, "; ")
}

// ErrConfiguration matches any *ConfigurationError with errors.Is.
var ErrConfiguration = errors.New("configuration error")

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Validate checks that every enabled component has what it needs.
func (c *Config) Validate() error {
	var problems []string
	for _, p := range c.EffectiveProviders() {
		switch strings.ToLower(p.Type) {
		case "", "gemini", "openai":
		default:
			problems = append(problems, fmt.Sprintf("provider %q: unknown type %q", p.Name, p.Type))
			continue
		}
		if c.ProviderKey(p) == "" {
			env := p.APIKeyEnv
			if env == "" {
				env = defaultKeyEnv(p.Type)
			}
			problems = append(problems, fmt.Sprintf("provider %q: missing API key (set %s)", p.Name, env))
		}
	}
	if c.Completion.Model == "" {
		problems = append(problems, "completion.model is required")
	}
	if c.Completion.MaxRetries < 0 {
		problems = append(problems, "completion.max_retries must not be negative")
	}
	if c.Completion.Timeout <= 0 {
		problems = append(problems, "completion.timeout must be positive")
	}
	if c.Weather.Enabled && c.LookupKey(c.Weather) == "" {
		problems = append(problems, fmt.Sprintf("weather: missing API key (set %s)", c.Weather.APIKeyEnv))
	}
	if c.Images.Enabled && c.LookupKey(c.Images) == "" {
		problems = append(problems, fmt.Sprintf("images: missing API key (set %s)", c.Images.APIKeyEnv))
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "", "memory", "sqlite", "redis":
		default:
			problems = append(problems, fmt.Sprintf("cache: unknown backend %q", c.Cache.Backend))
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}
