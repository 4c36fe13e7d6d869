package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Security    SecurityConfig    `mapstructure:"security"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	StartupTimeout  time.Duration `mapstructure:"startup_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topics  struct {
		ModelEvents     string `mapstructure:"model_events"`
		RefitRequests   string `mapstructure:"refit_requests"`
		RefitDeadLetter string `mapstructure:"refit_dead_letter"`
	} `mapstructure:"topics"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type AuthConfig struct {
	JWTSecret string            `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration     `mapstructure:"token_ttl"`
	APIKeys   map[string]string `mapstructure:"api_keys"` // key -> role
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommenderConfig struct {
	Algorithm     string            `mapstructure:"algorithm"`
	Components    int               `mapstructure:"components"`
	MeanCentering bool              `mapstructure:"mean_centering"`
	DefaultTopN   int               `mapstructure:"default_top_n"`
	MaxTopN       int               `mapstructure:"max_top_n"`
	CacheTTL      time.Duration     `mapstructure:"cache_ttl"`
	DatasetPath   string            `mapstructure:"dataset_path"`
	FitOnStartup  bool              `mapstructure:"fit_on_startup"`
	HistorySize   int               `mapstructure:"history_size"`
	Catalog       map[string]string `mapstructure:"catalog"` // action id -> description
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// ParseCatalog converts the configured catalog keys to action identifiers.
// An empty catalog yields nil so callers can fall back to the built-in one.
func (c RecommenderConfig) ParseCatalog() (map[int]string, error) {
	if len(c.Catalog) == 0 {
		return nil, nil
	}
	catalog := make(map[int]string, len(c.Catalog))
	for key, desc := range c.Catalog {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid action id %q in recommender.catalog: %w", key, err)
		}
		catalog[id] = desc
	}
	return catalog, nil
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.startup_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_time", "15m")
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "localhost:6379")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "5s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "remedy-refit")
	v.SetDefault("kafka.topics.model_events", "remediation-model-events")
	v.SetDefault("kafka.topics.refit_requests", "remediation-refit-requests")
	v.SetDefault("kafka.topics.refit_dead_letter", "remediation-refit-requests-dlq")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_base_delay", "1s")

	// Auth defaults
	v.SetDefault("auth.token_ttl", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Recommender defaults
	v.SetDefault("recommender.algorithm", "svd")
	v.SetDefault("recommender.components", 3)
	v.SetDefault("recommender.mean_centering", false)
	v.SetDefault("recommender.default_top_n", 5)
	v.SetDefault("recommender.max_top_n", 10)
	v.SetDefault("recommender.cache_ttl", "15m")
	v.SetDefault("recommender.dataset_path", "data/security_matrix.csv")
	v.SetDefault("recommender.fit_on_startup", true)
	v.SetDefault("recommender.history_size", 10)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
}
