package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Rewards     RewardsConfig
	Validation  ValidationConfig
	Sessions    SessionsConfig
	Statements  StatementsConfig
	Events      EventsConfig
	Settings    SettingsAPIConfig
	Entitlement EntitlementConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RewardsConfig carries the economy tuning knobs. Defaults match the
// product rules: 20 points per learning hour, half credit for reward-app
// time, 10 points buy one minute, 3 hours of outstanding time per day,
// grants valid for 24 hours.
type RewardsConfig struct {
	DefaultPointsPerHour     int
	RewardCategoryAdjustment float64
	DefaultConversionRate    float64
	DailyCapMinutes          int
	RedemptionTTL            time.Duration
}

// ValidationConfig tunes the session validation pipeline.
type ValidationConfig struct {
	DefaultLevel     string
	SettingsCacheTTL time.Duration
}

// SessionsConfig controls asynchronous session ingestion.
type SessionsConfig struct {
	AsyncEnabled      bool
	WorkerConcurrency int
	WorkerRetries     int
}

// StatementsConfig configures asynchronous ledger statement exports.
type StatementsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// EventsConfig controls outbound event publishing.
type EventsConfig struct {
	Enabled       bool
	RedisEnabled  bool
	ChannelPrefix string
	BufferSize    int
}

// SettingsAPIConfig gates the family settings admin endpoints.
type SettingsAPIConfig struct {
	Enabled bool
}

// EntitlementConfig signs redemption grant tokens handed to device agents.
type EntitlementConfig struct {
	Secret string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Rewards = RewardsConfig{
		DefaultPointsPerHour:     v.GetInt("REWARDS_DEFAULT_POINTS_PER_HOUR"),
		RewardCategoryAdjustment: v.GetFloat64("REWARDS_CATEGORY_ADJUSTMENT"),
		DefaultConversionRate:    v.GetFloat64("REWARDS_DEFAULT_CONVERSION_RATE"),
		DailyCapMinutes:          v.GetInt("REWARDS_DAILY_CAP_MINUTES"),
		RedemptionTTL:            parseDuration(v.GetString("REWARDS_REDEMPTION_TTL"), 24*time.Hour),
	}

	cfg.Validation = ValidationConfig{
		DefaultLevel:     v.GetString("VALIDATION_DEFAULT_LEVEL"),
		SettingsCacheTTL: parseDuration(v.GetString("VALIDATION_SETTINGS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Sessions = SessionsConfig{
		AsyncEnabled:      v.GetBool("SESSIONS_ASYNC_ENABLED"),
		WorkerConcurrency: v.GetInt("SESSIONS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("SESSIONS_WORKER_RETRIES"),
	}

	cfg.Statements = StatementsConfig{
		Enabled:           v.GetBool("ENABLE_STATEMENTS"),
		StorageDir:        v.GetString("STATEMENTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("STATEMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("STATEMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("STATEMENTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("STATEMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("STATEMENTS_WORKER_RETRIES"),
	}

	cfg.Events = EventsConfig{
		Enabled:       v.GetBool("ENABLE_EVENTS"),
		RedisEnabled:  v.GetBool("EVENTS_REDIS_ENABLED"),
		ChannelPrefix: v.GetString("EVENTS_CHANNEL_PREFIX"),
		BufferSize:    v.GetInt("EVENTS_BUFFER_SIZE"),
	}

	cfg.Settings = SettingsAPIConfig{
		Enabled: v.GetBool("ENABLE_SETTINGS_API"),
	}

	cfg.Entitlement = EntitlementConfig{
		Secret: v.GetString("ENTITLEMENT_SECRET"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "famtime_rewards")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REWARDS_DEFAULT_POINTS_PER_HOUR", 20)
	v.SetDefault("REWARDS_CATEGORY_ADJUSTMENT", 0.5)
	v.SetDefault("REWARDS_DEFAULT_CONVERSION_RATE", 10.0)
	v.SetDefault("REWARDS_DAILY_CAP_MINUTES", 180)
	v.SetDefault("REWARDS_REDEMPTION_TTL", "24h")

	v.SetDefault("VALIDATION_DEFAULT_LEVEL", "moderate")
	v.SetDefault("VALIDATION_SETTINGS_CACHE_TTL", "5m")

	v.SetDefault("SESSIONS_ASYNC_ENABLED", true)
	v.SetDefault("SESSIONS_WORKER_CONCURRENCY", 2)
	v.SetDefault("SESSIONS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_STATEMENTS", false)
	v.SetDefault("STATEMENTS_STORAGE_DIR", "./statements")
	v.SetDefault("STATEMENTS_SIGNED_URL_SECRET", "dev_statements_secret")
	v.SetDefault("STATEMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("STATEMENTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("STATEMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("STATEMENTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_EVENTS", true)
	v.SetDefault("EVENTS_REDIS_ENABLED", false)
	v.SetDefault("EVENTS_CHANNEL_PREFIX", "rewards:events")
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)

	v.SetDefault("ENABLE_SETTINGS_API", false)

	v.SetDefault("ENTITLEMENT_SECRET", "dev_entitlement_secret")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
