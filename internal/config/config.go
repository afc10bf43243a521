// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Media       MediaConfig       `mapstructure:"media"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Search      SearchConfig      `mapstructure:"search"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Blob        BlobConfig        `mapstructure:"blob"`
	Janitor     JanitorConfig     `mapstructure:"janitor"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MediaConfig holds local media handling settings.
type MediaConfig struct {
	ScratchDir      string        `mapstructure:"scratch_dir"`
	PipelineTimeout time.Duration `mapstructure:"pipeline_timeout"`
	FFmpegPath      string        `mapstructure:"ffmpeg_path"`
	FFprobePath     string        `mapstructure:"ffprobe_path"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
}

// BackendConfig holds acquisition backend settings.
type BackendConfig struct {
	Chains    ChainsConfig    `mapstructure:"chains"`
	Ytdlp     YtdlpConfig     `mapstructure:"ytdlp"`
	GalleryDL GalleryDLConfig `mapstructure:"gallerydl"`
	Apify     ApifyConfig     `mapstructure:"apify"`
}

// ChainsConfig holds the ordered backend names tried per platform.
type ChainsConfig struct {
	Instagram []string `mapstructure:"instagram"`
	YouTube   []string `mapstructure:"youtube"`
	TikTok    []string `mapstructure:"tiktok"`
}

// YtdlpConfig holds yt-dlp subprocess settings.
type YtdlpConfig struct {
	Path        string        `mapstructure:"path"`
	CookiesFile string        `mapstructure:"cookies_file"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GalleryDLConfig holds gallery-dl subprocess settings.
type GalleryDLConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ApifyConfig holds the Apify actor backend settings. RunLimit caps actor
// runs per token per quota window.
type ApifyConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	ActorID   string        `mapstructure:"actor_id"`
	Tokens    []string      `mapstructure:"tokens"`
	RunLimit  int           `mapstructure:"run_limit"`
	RunWindow time.Duration `mapstructure:"run_window"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     RetryConfig   `mapstructure:"retry"`
	CB        CBConfig      `mapstructure:"circuit_breaker"`
}

// SearchConfig holds the track search API settings, including the daily
// key quota model.
type SearchConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Keys        []string      `mapstructure:"keys"`
	QuotaLimit  int           `mapstructure:"quota_limit"`
	SearchCost  int           `mapstructure:"search_cost"`
	LookupCost  int           `mapstructure:"lookup_cost"`
	QuotaWindow time.Duration `mapstructure:"quota_window"`
	MaxResults  int           `mapstructure:"max_results"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
	CB          CBConfig      `mapstructure:"circuit_breaker"`
}

// RecognitionConfig holds acoustic fingerprinting settings.
type RecognitionConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	FpcalcPath  string        `mapstructure:"fpcalc_path"`
	ClipSeconds int           `mapstructure:"clip_seconds"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
	CB          CBConfig      `mapstructure:"circuit_breaker"`
}

// BlobConfig holds the delivery store settings.
type BlobConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	ChatID  string        `mapstructure:"chat_id"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
	CB      CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// JanitorConfig holds scratch directory sweep settings.
type JanitorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	MaxAge    time.Duration `mapstructure:"max_age"`
	OnStartup bool          `mapstructure:"on_startup"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds Redis caching settings for hot entries and search
// results.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	EntryTTL  time.Duration `mapstructure:"entry_ttl"`
	SearchTTL time.Duration `mapstructure:"search_ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found, continue with defaults + env vars
	}

	// Environment variable settings
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "media-acquisition-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "media_acquisition")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	// Media defaults
	v.SetDefault("media.scratch_dir", "/tmp/media-acquisition")
	v.SetDefault("media.pipeline_timeout", "5m")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.tool_timeout", "2m")

	// Backend chain defaults
	v.SetDefault("backend.chains.instagram", []string{"ytdlp", "gallerydl", "apify"})
	v.SetDefault("backend.chains.youtube", []string{"ytdlp", "ytdlp-cookies"})
	v.SetDefault("backend.chains.tiktok", []string{"ytdlp"})

	// yt-dlp defaults
	v.SetDefault("backend.ytdlp.path", "yt-dlp")
	v.SetDefault("backend.ytdlp.cookies_file", "")
	v.SetDefault("backend.ytdlp.timeout", "3m")

	// gallery-dl defaults
	v.SetDefault("backend.gallerydl.path", "gallery-dl")
	v.SetDefault("backend.gallerydl.timeout", "2m")

	// Apify defaults
	v.SetDefault("backend.apify.base_url", "https://api.apify.com")
	v.SetDefault("backend.apify.actor_id", "apify~instagram-scraper")
	v.SetDefault("backend.apify.tokens", []string{})
	v.SetDefault("backend.apify.run_limit", 100)
	v.SetDefault("backend.apify.run_window", "24h")
	v.SetDefault("backend.apify.timeout", "4m")
	v.SetDefault("backend.apify.retry.max_attempts", 2)
	v.SetDefault("backend.apify.retry.wait_time", "2s")
	v.SetDefault("backend.apify.retry.max_wait_time", "10s")
	v.SetDefault("backend.apify.circuit_breaker.max_requests", 3)
	v.SetDefault("backend.apify.circuit_breaker.interval", "60s")
	v.SetDefault("backend.apify.circuit_breaker.timeout", "30s")
	v.SetDefault("backend.apify.circuit_breaker.failure_ratio", 0.5)

	// Search defaults: quota numbers follow the upstream API's daily unit
	// model (search costs 100 units, detail lookups cost 1).
	v.SetDefault("search.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("search.keys", []string{})
	v.SetDefault("search.quota_limit", 10000)
	v.SetDefault("search.search_cost", 100)
	v.SetDefault("search.lookup_cost", 1)
	v.SetDefault("search.quota_window", "24h")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.retry.max_attempts", 2)
	v.SetDefault("search.retry.wait_time", "500ms")
	v.SetDefault("search.retry.max_wait_time", "3s")
	v.SetDefault("search.circuit_breaker.max_requests", 3)
	v.SetDefault("search.circuit_breaker.interval", "60s")
	v.SetDefault("search.circuit_breaker.timeout", "30s")
	v.SetDefault("search.circuit_breaker.failure_ratio", 0.6)

	// Recognition defaults
	v.SetDefault("recognition.base_url", "https://api.acoustid.org/v2")
	v.SetDefault("recognition.api_key", "")
	v.SetDefault("recognition.fpcalc_path", "fpcalc")
	v.SetDefault("recognition.clip_seconds", 30)
	v.SetDefault("recognition.timeout", "15s")
	v.SetDefault("recognition.retry.max_attempts", 2)
	v.SetDefault("recognition.retry.wait_time", "1s")
	v.SetDefault("recognition.retry.max_wait_time", "5s")
	v.SetDefault("recognition.circuit_breaker.max_requests", 3)
	v.SetDefault("recognition.circuit_breaker.interval", "60s")
	v.SetDefault("recognition.circuit_breaker.timeout", "30s")
	v.SetDefault("recognition.circuit_breaker.failure_ratio", 0.6)

	// Blob store defaults
	v.SetDefault("blob.base_url", "https://api.telegram.org")
	v.SetDefault("blob.token", "")
	v.SetDefault("blob.chat_id", "")
	v.SetDefault("blob.timeout", "2m")
	v.SetDefault("blob.retry.max_attempts", 3)
	v.SetDefault("blob.retry.wait_time", "1s")
	v.SetDefault("blob.retry.max_wait_time", "5s")
	v.SetDefault("blob.circuit_breaker.max_requests", 3)
	v.SetDefault("blob.circuit_breaker.interval", "60s")
	v.SetDefault("blob.circuit_breaker.timeout", "30s")
	v.SetDefault("blob.circuit_breaker.failure_ratio", 0.5)

	// Janitor defaults
	v.SetDefault("janitor.interval", "30m")
	v.SetDefault("janitor.max_age", "1h")
	v.SetDefault("janitor.on_startup", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")

	// Sentry defaults
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.entry_ttl", "6h")
	v.SetDefault("cache.search_ttl", "15m")
	v.SetDefault("cache.key_prefix", "media-acquisition")
}
