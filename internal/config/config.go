package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DevSecretKey is the signing key used when SECRET_KEY is not configured.
// Validate refuses to run with it in production.
const DevSecretKey = "dev-secret-key-change-in-production"

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI            string        `mapstructure:"MONGO_URI"`
	MongoDBName         string        `mapstructure:"MONGO_DBNAME"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	SecretKey           string        `mapstructure:"SECRET_KEY"`
	SessionLifetime     time.Duration `mapstructure:"SESSION_LIFETIME"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	CSRFEnabled         bool          `mapstructure:"CSRF_ENABLED"`
	DatasetPath         string        `mapstructure:"DATASET_PATH"`
	LogFile             string        `mapstructure:"LOG_FILE"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_URL", "sqlite://users.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/")
	v.SetDefault("MONGO_DBNAME", "stroke_prediction_db")
	v.SetDefault("SECRET_KEY", DevSecretKey)
	v.SetDefault("SESSION_LIFETIME", "30m")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("CSRF_ENABLED", true)
	v.SetDefault("DATASET_PATH", "data/healthcare-dataset-stroke-data.csv")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"MONGO_URI", "MONGO_DBNAME", "REDIS_URL", "SECRET_KEY",
		"SESSION_LIFETIME", "SESSION_COOKIE_SECURE", "CSRF_ENABLED",
		"DATASET_PATH", "LOG_FILE", "REQUEST_TIMEOUT",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}

	if cfg.IsDev() && cfg.SecretKey == DevSecretKey {
		log.Println("WARNING: SECRET_KEY is not set; sessions are signed with the development key.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether the account store lives in PostgreSQL rather
// than the default SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// SQLiteDSN returns DATABASE_URL with the optional sqlite:// scheme removed.
func (c *Config) SQLiteDSN() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.SecretKey == "" || c.SecretKey == DevSecretKey) {
		return fmt.Errorf("SECRET_KEY must be set to a non-default value in production")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must not be empty")
	}
	if c.SessionLifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive, got %s", c.SessionLifetime)
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DBNAME must not be empty")
	}
	return nil
}
