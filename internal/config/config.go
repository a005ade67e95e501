// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the production API.
const DefaultBaseURL = "https://60q4fmxnb7.execute-api.us-east-2.amazonaws.com/prod"

// Config holds every setting the client reads. Values come from an optional YAML file
// first; environment variables override them.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	LogLevel    string        `yaml:"log_level"`
	HTTPTimeout time.Duration `yaml:"http_timeout"` // 0 => calls are not bounded

	Cache    CacheConfig    `yaml:"cache"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Location LocationConfig `yaml:"location"`
}

// CacheConfig selects the local cache backend: memory, redis, sqlite or postgres.
type CacheConfig struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	Namespace   string `yaml:"namespace"`
}

// KeystoreConfig selects where the token is kept: memory, age or sealed.
type KeystoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase"`
}

// LocationConfig is the fixed coordinate reported when location sharing is on.
type LocationConfig struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	dir := defaultDir()
	return Config{
		BaseURL:  DefaultBaseURL,
		LogLevel: "info",
		Cache: CacheConfig{
			Backend:    "sqlite",
			RedisAddr:  "localhost:6379",
			SQLitePath: filepath.Join(dir, "cache.db"),
			Namespace:  "clique",
		},
		Keystore: KeystoreConfig{
			Backend: "age",
			Path:    filepath.Join(dir, "keys"),
		},
	}
}

// Load builds the configuration from the file named by CLIQUE_CONFIG (if any) and the
// environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CLIQUE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.BaseURL = getEnv("CLIQUE_BASE_URL", c.BaseURL)
	c.LogLevel = getEnv("CLIQUE_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("CLIQUE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("failed to parse CLIQUE_HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = d
	}

	c.Cache.Backend = getEnv("CLIQUE_CACHE", c.Cache.Backend)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisDB = getEnvInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.SQLitePath = getEnv("CLIQUE_SQLITE_PATH", c.Cache.SQLitePath)
	c.Cache.DatabaseURL = getEnv("DATABASE_URL", c.Cache.DatabaseURL)
	c.Cache.Namespace = getEnv("CLIQUE_CACHE_NAMESPACE", c.Cache.Namespace)

	c.Keystore.Backend = getEnv("CLIQUE_KEYSTORE", c.Keystore.Backend)
	c.Keystore.Path = getEnv("CLIQUE_KEYSTORE_PATH", c.Keystore.Path)
	c.Keystore.Passphrase = getEnv("CLIQUE_KEYSTORE_PASSPHRASE", c.Keystore.Passphrase)

	for _, f := range []struct {
		key string
		dst **float64
	}{
		{"CLIQUE_LATITUDE", &c.Location.Latitude},
		{"CLIQUE_LONGITUDE", &c.Location.Longitude},
	} {
		if v := os.Getenv(f.key); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", f.key, err)
			}
			*f.dst = &x
		}
	}
	return nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case "memory", "redis":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite cache needs CLIQUE_SQLITE_PATH"))
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres cache needs DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	switch c.Keystore.Backend {
	case "memory":
	case "age":
		if c.Keystore.Path == "" {
			errs = append(errs, errors.New("age keystore needs CLIQUE_KEYSTORE_PATH"))
		}
	case "sealed":
		if c.Keystore.Path == "" || c.Keystore.Passphrase == "" {
			errs = append(errs, errors.New("sealed keystore needs CLIQUE_KEYSTORE_PATH and CLIQUE_KEYSTORE_PASSPHRASE"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown keystore backend %q", c.Keystore.Backend))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		errs = append(errs, errors.New("latitude and longitude must be set together"))
	}
	return errors.Join(errs...)
}

// Logger returns a logrus logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clique")
	}
	return ".clique"
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
