package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

type WebhookConfig struct {
	// URL may be empty: delivery is then skipped and every submission
	// goes straight to the fallback path.
	URL         string        `mapstructure:"url" envconfig:"WEBHOOK_URL"`
	Timeout     time.Duration `mapstructure:"timeout" envconfig:"WEBHOOK_TIMEOUT"`
	MaxAttempts int           `mapstructure:"max_attempts" envconfig:"WEBHOOK_MAX_ATTEMPTS"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
	To       string `mapstructure:"to" envconfig:"SMTP_TO"`
}

type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window" envconfig:"RATE_LIMIT_WINDOW"`
	Max         int           `mapstructure:"max" envconfig:"RATE_LIMIT_MAX"`
	GlobalRPS   float64       `mapstructure:"global_rps" envconfig:"RATE_LIMIT_GLOBAL_RPS"`
	GlobalBurst int           `mapstructure:"global_burst" envconfig:"RATE_LIMIT_GLOBAL_BURST"`
}

type DatabaseConfig struct {
	// DSN may be empty: submissions are then kept in process memory.
	DSN string `mapstructure:"dsn" envconfig:"DATABASE_DSN"`
}

type RedisConfig struct {
	// URL may be empty: the rate-limit window is then process-local.
	URL string `mapstructure:"url" envconfig:"REDIS_URL"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" envconfig:"LOG_PRETTY"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`

	AdminToken string        `mapstructure:"admin_token" envconfig:"ADMIN_TOKEN"`
	DedupTTL   time.Duration `mapstructure:"dedup_ttl" envconfig:"DEDUP_TTL"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 75*time.Second)
	viper.SetDefault("webhook.timeout", 15*time.Second)
	viper.SetDefault("webhook.max_attempts", 3)
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("rate_limit.window", 15*time.Minute)
	viper.SetDefault("rate_limit.max", 5)
	viper.SetDefault("rate_limit.global_rps", 50.0)
	viper.SetDefault("rate_limit.global_burst", 100)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("dedup_ttl", 5*time.Minute)
}

// LoadConfig reads the optional yaml config file, then applies
// environment overrides. A missing file is fine; everything has a
// default or comes from the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	return &config, nil
}
