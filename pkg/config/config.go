package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig drives the request-access tracking pipeline. It is loaded
// once at startup and passed into every component that needs it; nothing
// mutates it afterwards.
type TrackingConfig struct {
	Enabled     bool                `mapstructure:"enabled"`
	Async       bool                `mapstructure:"async"`
	Silent      bool                `mapstructure:"silent"`
	RequireRole bool                `mapstructure:"require_role"`
	Exclude     []string            `mapstructure:"exclude"`
	Mapping     ModuleMappingConfig `mapstructure:"module_mapping"`
	Detail      DetailConfig        `mapstructure:"detail"`
	Retention   RetentionConfig     `mapstructure:"retention"`
	Queue       QueueConfig         `mapstructure:"queue"`
}

type ModuleMappingConfig struct {
	// Patterns is an ordered list; the first matching rule wins.
	Patterns           []PatternRule `mapstructure:"patterns"`
	AutoExtractSegment int           `mapstructure:"auto_extract_segment"`
}

// PatternRule maps a path pattern (literal suffix, glob with '*', or
// "regex:" prefixed) to a "module[.submodule][|label]" target.
type PatternRule struct {
	Pattern string `mapstructure:"pattern"`
	Target  string `mapstructure:"target"`
}

const (
	DetailModeOff   = "off"
	DetailModeOptIn = "opt_in"
	DetailModeAll   = "all"
)

type DetailConfig struct {
	Mode string `mapstructure:"mode"`
	// Dedup selects one row per (user, role, endpoint, day) with visit
	// counters; when false every qualifying request appends its own row.
	Dedup bool `mapstructure:"dedup"`
}

type RetentionConfig struct {
	SummaryDays int `mapstructure:"summary_days"`
	DetailDays  int `mapstructure:"detail_days"`
}

type QueueConfig struct {
	Name        string        `mapstructure:"name"`
	MaxRetries  int           `mapstructure:"max_retries"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	ResultsTTL  time.Duration `mapstructure:"results_ttl"`
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// If CONFIG_FILE environment variable is set, use it
	if envConfigFile := os.Getenv("CONFIG_FILE"); envConfigFile != "" {
		configPath = envConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		dir := filepath.Dir(configPath)
		file := filepath.Base(configPath)
		name := strings.TrimSuffix(file, filepath.Ext(file))

		v.AddConfigPath(dir)
		v.SetConfigName(name)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("pkg/config")
		v.SetConfigName("config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error loading config file: %v", err)
		}
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envVars := map[string]string{
		"database.host":        "DB_HOST",
		"database.port":        "DB_PORT",
		"database.user":        "DB_USER",
		"database.password":    "DB_PASSWORD",
		"database.name":        "DB_NAME",
		"database.sslmode":     "DB_SSLMODE",
		"server.mode":          "SERVER_MODE",
		"server.timeout":       "SERVER_TIMEOUT",
		"redis.host":           "REDIS_HOST",
		"redis.port":           "REDIS_PORT",
		"redis.password":       "REDIS_PASSWORD",
		"redis.db":             "REDIS_DB",
		"auth.jwt_secret":      "JWT_SECRET",
		"auth.jwt_issuer":      "JWT_ISSUER",
		"tracking.enabled":     "TRACKER_ENABLED",
		"tracking.async":       "TRACKER_ASYNC",
		"tracking.silent":      "TRACKER_SILENT",
		"tracking.queue.name":  "TRACKER_QUEUE",
		"tracking.detail.mode": "TRACKER_DETAIL_MODE",
		"logging.level":        "LOG_LEVEL",
		"logging.format":       "LOG_FORMAT",
	}

	for configKey, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			switch envVar {
			case "DB_PORT", "REDIS_PORT", "REDIS_DB":
				if intVal, err := strconv.Atoi(value); err == nil {
					v.Set(configKey, intVal)
				}
			case "SERVER_TIMEOUT":
				if d, err := time.ParseDuration(value); err == nil {
					v.Set(configKey, d)
				}
			case "TRACKER_ENABLED", "TRACKER_ASYNC", "TRACKER_SILENT":
				if value == "true" || value == "1" {
					v.Set(configKey, true)
				} else if value == "false" || value == "0" {
					v.Set(configKey, false)
				}
			default:
				v.Set(configKey, value)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.async", false)
	v.SetDefault("tracking.silent", true)
	v.SetDefault("tracking.require_role", false)
	v.SetDefault("tracking.module_mapping.auto_extract_segment", 2)
	v.SetDefault("tracking.detail.mode", DetailModeOptIn)
	v.SetDefault("tracking.detail.dedup", true)
	v.SetDefault("tracking.retention.summary_days", 90)
	v.SetDefault("tracking.retention.detail_days", 30)
	v.SetDefault("tracking.queue.name", "tracker:access")
	v.SetDefault("tracking.queue.max_retries", 3)
	v.SetDefault("tracking.queue.task_timeout", "30s")
	v.SetDefault("tracking.queue.results_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
