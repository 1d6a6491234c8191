package conf

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shatool-dad/group-bridge/internal/biz/usecase"
	"github.com/shatool-dad/group-bridge/internal/data"
)

// Config represents application configuration
type Config struct {
	// HTTP server and shared secret
	Server ServerConfig

	// Group registry file and legacy active set
	Registry RegistryConfig

	// Message retention
	Store StoreConfig

	// Chat cache refresh
	Cache CacheConfig

	// Upstream session sidecar
	Session SessionConfig

	// Digest model (optional)
	OpenAI OpenAIConfig

	// Path to the digest prompts YAML; empty searches the default locations
	PromptsPath string

	Log LogConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	ListenAddr string
	Port       int
	APIToken   string
}

// RegistryConfig contains registry configuration
type RegistryConfig struct {
	Path              string
	LegacyActiveChats []string
}

// StoreConfig contains message store configuration
type StoreConfig struct {
	Retention int    // max messages per group, 0 = unbounded
	DBPath    string // empty keeps history in memory
}

// CacheConfig contains chat cache configuration
type CacheConfig struct {
	RefreshInterval   time.Duration // 0 disables periodic refresh
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
}

// SessionConfig contains upstream session configuration
type SessionConfig struct {
	URL string
}

// OpenAIConfig contains digest model configuration
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string // json or console
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: os.Getenv("LISTEN_ADDR"),
			Port:       envInt("PORT", 3000),
			APIToken:   os.Getenv("API_TOKEN"),
		},
		Registry: RegistryConfig{
			Path:              envString("REGISTRY_PATH", "data/active_groups.json"),
			LegacyActiveChats: envList("LEGACY_ACTIVE_CHATS"),
		},
		Store: StoreConfig{
			Retention: envInt("MESSAGE_RETENTION", 1000),
			DBPath:    os.Getenv("MESSAGE_DB_PATH"),
		},
		Cache: CacheConfig{
			RefreshInterval:   envDuration("CHAT_REFRESH_INTERVAL", 10*time.Minute),
			ReadyTimeout:      envDuration("READY_TIMEOUT", 2*time.Minute),
			ReadyPollInterval: envDuration("READY_POLL_INTERVAL", time.Second),
		},
		Session: SessionConfig{
			URL: envString("SESSION_URL", "http://127.0.0.1:3001"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Model:       envString("GPT_MODEL", "gpt-4.1-mini"),
			MaxTokens:   envInt("GPT_MAX_TOKENS", 5000),
			Temperature: float32(envFloat("GPT_TEMPERATURE", 0.7)),
		},
		PromptsPath: os.Getenv("PROMPTS_CONFIG_PATH"),
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
	}
}

// ToCacheConfig converts to chat cache configuration
func (c *CacheConfig) ToCacheConfig() usecase.ChatCacheConfig {
	return usecase.ChatCacheConfig{
		ReadyTimeout:      c.ReadyTimeout,
		ReadyPollInterval: c.ReadyPollInterval,
	}
}

// ToRepoConfig converts to the completion repository configuration
func (c *OpenAIConfig) ToRepoConfig() data.OpenAIConfig {
	return data.OpenAIConfig{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.APIToken == "" {
		return &ConfigError{Field: "API_TOKEN", Message: "required"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"}
	}
	if c.Registry.Path == "" {
		return &ConfigError{Field: "REGISTRY_PATH", Message: "required"}
	}
	if c.Store.Retention < 0 {
		return &ConfigError{Field: "MESSAGE_RETENTION", Message: "must not be negative"}
	}
	if c.Cache.ReadyPollInterval <= 0 {
		return &ConfigError{Field: "READY_POLL_INTERVAL", Message: "must be positive"}
	}
	if c.Cache.ReadyTimeout <= 0 {
		return &ConfigError{Field: "READY_TIMEOUT", Message: "must be positive"}
	}
	if c.Cache.RefreshInterval < 0 {
		return &ConfigError{Field: "CHAT_REFRESH_INTERVAL", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// envDuration accepts Go durations ("90s") or a bare number of seconds
func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
