// Package platform holds the server configuration and its loaders.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Scoring  ScoringConfig  `yaml:"scoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address" env:"EXAMGATE_ADDRESS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"EXAMGATE_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig configures the persistence backend.
type DatabaseConfig struct {
	// Driver selects the backend: "postgres" or "sqlite".
	Driver string `yaml:"driver" env:"EXAMGATE_DB_DRIVER"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn" env:"DATABASE_URL"`

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"EXAMGATE_DB_PATH"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"EXAMGATE_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"EXAMGATE_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"EXAMGATE_DB_CONN_MAX_LIFETIME"`
}

// AdminConfig holds the single admin credential.
type AdminConfig struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME"`

	// Password is the credential value; a bcrypt hash ($2...) is recommended,
	// a plain value is compared in constant time.
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

// ScoringConfig configures the writing-score proxy. The proxy is disabled
// when no API key is set.
type ScoringConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"EXAMGATE_SCORING_BASE_URL"`
	Model   string `yaml:"model" env:"EXAMGATE_SCORING_MODEL"`
}

// LoadConfig loads configuration from a YAML file, expanding ${VAR}
// references from the environment.
// The path is expected to come from command line arguments, controlled by the
// administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds configuration from environment variables alone, for
// deployments without a config file.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin username and password are required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":3000"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.Driver == "" {
		// A postgres DSN in the environment selects postgres, otherwise
		// fall back to the embedded database.
		if cfg.Database.DSN != "" {
			cfg.Database.Driver = "postgres"
		} else {
			cfg.Database.Driver = "sqlite"
			if cfg.Database.Path == "" {
				cfg.Database.Path = "examgate.db"
			}
		}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
}
