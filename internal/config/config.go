// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTAlgorithm   string `mapstructure:"JWT_ALGORITHM"`
	TokenTTLDays   int    `mapstructure:"TOKEN_TTL_DAYS"`
	Port           string `mapstructure:"PORT"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBPath         string `mapstructure:"DB_PATH"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	DailyLikeLimit int `mapstructure:"DAILY_LIKE_LIMIT"`

	GeocoderURL       string        `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string        `mapstructure:"GEOCODER_USER_AGENT"`
	GeocoderTimeout   time.Duration `mapstructure:"GEOCODER_TIMEOUT"`
	DefaultAddress    string        `mapstructure:"DEFAULT_ADDRESS"`

	SMTPHost      string        `mapstructure:"SMTP_HOST"`
	SMTPPort      int           `mapstructure:"SMTP_PORT"`
	SMTPUsername  string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string        `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom      string        `mapstructure:"SMTP_FROM"`
	SMTPSSL       bool          `mapstructure:"SMTP_SSL"`
	NotifyTimeout time.Duration `mapstructure:"NOTIFY_TIMEOUT"`

	AvatarDir         string `mapstructure:"AVATAR_DIR"`
	AvatarMaxUploadMB int    `mapstructure:"AVATAR_MAX_UPLOAD_MB"`
	DefaultAvatar     string `mapstructure:"DEFAULT_AVATAR"`
	WatermarkPath     string `mapstructure:"WATERMARK_PATH"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "rendezvous")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "rendezvous.db")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ALGORITHM", "HS256")
	viper.SetDefault("TOKEN_TTL_DAYS", 30)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("DAILY_LIKE_LIMIT", 5)

	viper.SetDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org")
	viper.SetDefault("GEOCODER_USER_AGENT", "rendezvous-api/1.0")
	viper.SetDefault("GEOCODER_TIMEOUT", 5*time.Second)
	viper.SetDefault("DEFAULT_ADDRESS", "Россия, Москва, ул.Тверская 1")

	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("SMTP_SSL", true)
	viper.SetDefault("SMTP_FROM", "no-reply@rendezvous.local")
	viper.SetDefault("NOTIFY_TIMEOUT", 10*time.Second)

	viper.SetDefault("AVATAR_DIR", "/tmp/rendezvous/avatars")
	viper.SetDefault("AVATAR_MAX_UPLOAD_MB", 10)
	viper.SetDefault("DEFAULT_AVATAR", "/media/avatars/default_avatar.png")
	viper.SetDefault("WATERMARK_PATH", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(c.JWTAlgorithm))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TokenTTL returns the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLDays) * 24 * time.Hour
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM %q is not supported (use HS256, HS384 or HS512)", c.JWTAlgorithm)
	}
	if c.TokenTTLDays <= 0 {
		return errors.New("TOKEN_TTL_DAYS must be positive")
	}
	if c.DailyLikeLimit <= 0 {
		return errors.New("DAILY_LIKE_LIMIT must be positive")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver)
	}
	switch c.DBSchemaMode {
	case "", "hybrid", "sql", "auto":
	default:
		return fmt.Errorf("DB_SCHEMA_MODE %q is not supported (use hybrid, sql or auto)", c.DBSchemaMode)
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		return errors.New("SMTP_PORT must be positive when SMTP_HOST is set")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
