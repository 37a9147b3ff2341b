package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	defaultPort     = 8080
	defaultEnv      = "development"
	defaultDriver   = DriverSQLite
	defaultDSN      = "hub.db"
	defaultJWTTTL   = 24 * time.Hour
	defaultCacheTTL = 5 * time.Minute
)

// Config holds runtime startup configuration loaded from YAML and the environment.
type Config struct {
	Env            string         `yaml:"env"` // "development" | "production"
	Port           int            `yaml:"port"`
	Database       DatabaseConfig `yaml:"database"`
	Redis          RedisConfig    `yaml:"redis"`
	JWT            JWTConfig      `yaml:"jwt"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Admin          AdminConfig    `yaml:"admin"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the catalog read cache. An empty URL disables it.
type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// AdminConfig describes the bootstrap admin created when no admin exists.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Env:  defaultEnv,
		Port: defaultPort,
		Database: DatabaseConfig{
			Driver: defaultDriver,
			DSN:    defaultDSN,
		},
		Redis: RedisConfig{TTL: defaultCacheTTL},
		JWT:   JWTConfig{TTL: defaultJWTTTL},
		Admin: AdminConfig{
			Email:    "admin@hub.local",
			Password: "changeme",
			Name:     "Admin",
		},
	}
}

// Load reads the YAML file at configPath (a missing file is not an error),
// applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := Default()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("HUB_ENV"); v != "" {
		cfg.Env = v
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := getenv("HUB_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := getenv("HUB_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := getenv("HUB_DB_PATH"); v != "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = v
	}
	if v := getenv("HUB_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
}

func normalize(cfg *Config) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDriver
	}
	if cfg.Database.Driver == DriverSQLite && strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = defaultDSN
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	if cfg.JWT.TTL <= 0 {
		cfg.JWT.TTL = defaultJWTTTL
	}
	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database dsn is required")
	}
	if !c.IsDev() && c.JWT.Secret == "" {
		return errors.New("jwt secret is required outside development")
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env != "production"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
