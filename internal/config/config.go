package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the key-value backend holding sessions and preferences
type StorageConfig struct {
	Backend       string         `mapstructure:"backend"`
	EncryptionKey string         `mapstructure:"encryption_key"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	MySQL         MySQLConfig    `mapstructure:"mysql"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Mongo         MongoConfig    `mapstructure:"mongo"`
	Redis         RedisConfig    `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func (c MySQLConfig) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

type PostgresConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	SSLMode     string `mapstructure:"ssl_mode"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	Groq            OpenAIConfig    `mapstructure:"groq"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	DeepSeek        OpenAIConfig    `mapstructure:"deepseek"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
}

// OpenAIConfig configures any OpenAI-compatible chat completions API
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	VisionModel string `mapstructure:"vision_model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type AnalysisConfig struct {
	MaxChars       int           `mapstructure:"max_chars"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	return LoadFile(configPath)
}

// LoadFile reads configuration from the given YAML file. A missing file is
// not an error; defaults and environment variables apply.
func LoadFile(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // streamed replies outlive any fixed write deadline
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "60s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.sqlite.path", "./data/flagr.db")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", 3306)
	v.SetDefault("storage.mysql.user", "flagr")
	v.SetDefault("storage.mysql.database", "flagr")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "flagr")
	v.SetDefault("storage.postgres.database", "flagr")
	v.SetDefault("storage.postgres.ssl_mode", "disable")
	v.SetDefault("storage.postgres.max_conns", 20)
	v.SetDefault("storage.postgres.min_conns", 2)
	v.SetDefault("storage.postgres.auto_migrate", true)
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "flagr")
	v.SetDefault("storage.mongo.collection", "kv")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 1)

	// Redis (cache and rate limiting)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h") // 7 days

	// LLM
	v.SetDefault("llm.default_provider", "groq")
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.groq.model", "llama3-8b-8192")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.deepseek.model", "deepseek-chat")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash")
	v.SetDefault("llm.gemini.vision_model", "gemini-1.5-flash")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3")

	// Analysis
	v.SetDefault("analysis.max_chars", 4000)
	v.SetDefault("analysis.max_upload_bytes", 20<<20)
	v.SetDefault("analysis.cache_ttl", "24h")

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("env", "ENV")

	// Storage
	v.BindEnv("storage.backend", "STORAGE_BACKEND")
	v.BindEnv("storage.encryption_key", "STORAGE_ENCRYPTION_KEY")
	v.BindEnv("storage.postgres.password", "POSTGRES_PASSWORD")
	v.BindEnv("storage.mysql.password", "MYSQL_PASSWORD")
	v.BindEnv("storage.mongo.uri", "MONGO_URI")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// LLM API Keys
	v.BindEnv("llm.groq.api_key", "GROQ_API_KEY")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")
}
