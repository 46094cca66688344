package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MarketDataConfig MarketDataConfig `json:"market_data"`
	NewsConfig       NewsConfig       `json:"news"`
	SentimentConfig  SentimentConfig  `json:"sentiment"`
	MacroConfig      MacroConfig      `json:"macro"`
	ScenarioConfig   ScenarioConfig   `json:"scenario"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	ServerConfig     ServerConfig     `json:"server"`
	AuthConfig       AuthConfig       `json:"auth"`
	VaultConfig      VaultConfig      `json:"vault"`
	RedisConfig      RedisConfig      `json:"redis"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
}

// MarketDataConfig holds the price/quote source configuration. Primary
// and fallback base URLs feed the dual-source fetch path.
type MarketDataConfig struct {
	PrimaryBaseURL  string `json:"primary_base_url"`
	FallbackBaseURL string `json:"fallback_base_url"`
	APIKey          string `json:"api_key"`
	FallbackAPIKey  string `json:"fallback_api_key"`
	RequestTimeout  int    `json:"request_timeout"` // Seconds
	MockMode        bool   `json:"mock_mode"`       // Use simulated data when live feeds are unavailable
}

// NewsConfig holds the news feed configuration
type NewsConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	LookbackHours  int    `json:"lookback_hours"`
	MarketNewsMax  int    `json:"market_news_max"`
	RequestTimeout int    `json:"request_timeout"` // Seconds
}

// SentimentConfig holds the sentiment subsystem configuration
type SentimentConfig struct {
	KeywordSourceURL string              `json:"keyword_source_url"` // Optional remote keyword tables
	StockClasses     map[string][]string `json:"stock_classes"`      // symbol -> class tags
}

// MacroConfig holds the macro mood configuration
type MacroConfig struct {
	FearGreedURL   string  `json:"fear_greed_url"`
	InfluenceScale float64 `json:"influence_scale"` // tanh scale for basket influence
}

// ScenarioConfig holds scenario engine tunables
type ScenarioConfig struct {
	Watchlist       []string `json:"watchlist"`        // Symbols refreshed in the background
	RefreshInterval int      `json:"refresh_interval"` // Seconds between background refreshes
	WorkerCount     int      `json:"worker_count"`     // Concurrent refresh workers
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	MinPasswordLength    int           `json:"min_password_length"`
	MaxLoginAttempts     int           `json:"max_login_attempts"`
	LockoutDuration      time.Duration `json:"lockout_duration"`
}

// VaultConfig holds HashiCorp Vault configuration for provider API keys
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for provider keys
}

// RedisConfig holds Redis configuration for the shared scenario cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
}

// DSN builds the pgx connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Market data
	cfg.MarketDataConfig.PrimaryBaseURL = getEnvOrDefault("MARKET_PRIMARY_URL", cfg.MarketDataConfig.PrimaryBaseURL)
	cfg.MarketDataConfig.FallbackBaseURL = getEnvOrDefault("MARKET_FALLBACK_URL", cfg.MarketDataConfig.FallbackBaseURL)
	cfg.MarketDataConfig.APIKey = getEnvOrDefault("MARKET_API_KEY", cfg.MarketDataConfig.APIKey)
	cfg.MarketDataConfig.FallbackAPIKey = getEnvOrDefault("MARKET_FALLBACK_API_KEY", cfg.MarketDataConfig.FallbackAPIKey)
	cfg.MarketDataConfig.RequestTimeout = getEnvIntOrDefault("MARKET_REQUEST_TIMEOUT", nonZero(cfg.MarketDataConfig.RequestTimeout, 10))
	cfg.MarketDataConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	// News
	cfg.NewsConfig.BaseURL = getEnvOrDefault("NEWS_BASE_URL", cfg.NewsConfig.BaseURL)
	cfg.NewsConfig.APIKey = getEnvOrDefault("NEWS_API_KEY", cfg.NewsConfig.APIKey)
	cfg.NewsConfig.LookbackHours = nonZero(cfg.NewsConfig.LookbackHours, 48)
	cfg.NewsConfig.MarketNewsMax = nonZero(cfg.NewsConfig.MarketNewsMax, 20)
	cfg.NewsConfig.RequestTimeout = getEnvIntOrDefault("NEWS_REQUEST_TIMEOUT", nonZero(cfg.NewsConfig.RequestTimeout, 10))

	// Sentiment
	cfg.SentimentConfig.KeywordSourceURL = getEnvOrDefault("SENTIMENT_KEYWORD_URL", cfg.SentimentConfig.KeywordSourceURL)

	// Macro
	cfg.MacroConfig.FearGreedURL = getEnvOrDefault("MACRO_FEAR_GREED_URL", cfg.MacroConfig.FearGreedURL)
	cfg.MacroConfig.InfluenceScale = getEnvFloatOrDefault("MACRO_INFLUENCE_SCALE", cfg.MacroConfig.InfluenceScale)

	// Scenario engine
	cfg.ScenarioConfig.RefreshInterval = getEnvIntOrDefault("SCENARIO_REFRESH_INTERVAL", nonZero(cfg.ScenarioConfig.RefreshInterval, 60))
	cfg.ScenarioConfig.WorkerCount = getEnvIntOrDefault("SCENARIO_WORKER_COUNT", nonZero(cfg.ScenarioConfig.WorkerCount, 4))

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Auth - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)
	cfg.AuthConfig.MaxLoginAttempts = getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", 5)
	cfg.AuthConfig.LockoutDuration = getEnvDurationOrDefault("AUTH_LOCKOUT_DURATION", 15*time.Minute)

	// Vault
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", nonEmpty(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", nonEmpty(cfg.VaultConfig.SecretPath, "scenario-engine"))

	// Redis
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", nonEmpty(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", nonZero(cfg.RedisConfig.PoolSize, 10))

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", nonEmpty(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", nonZero(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", nonEmpty(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Name = getEnvOrDefault("DB_NAME", nonEmpty(cfg.DatabaseConfig.Name, "scenario_engine"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", nonEmpty(cfg.DatabaseConfig.SSLMode, "disable"))
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DB_MAX_CONNS", nonZero(cfg.DatabaseConfig.MaxConns, 10))
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func nonEmpty(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func nonZero(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
