package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/mafwalk/internal/models"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Health    HealthConfig    `yaml:"health"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Policy    PolicyConfig    `yaml:"policy"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the persistence backend. Postgres fields are only
// read when Driver is "postgres".
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
}

// AuthConfig holds the optional API key guarding mutating routes.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// HealthConfig selects the health platform adapter.
type HealthConfig struct {
	Mode         string        `yaml:"mode"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	PollInterval time.Duration `yaml:"poll_interval"` // 0 selects the platform default
	Timeout      time.Duration `yaml:"timeout"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// PolicyConfig overrides the step-to-distance and zone-width constants.
type PolicyConfig struct {
	StrideLengthKm float64 `yaml:"stride_length_km"`
	ZoneWidthBPM   int     `yaml:"zone_width_bpm"`
}

// Health modes.
const (
	HealthNative    = "native"
	HealthSimulated = "simulated"
)

// DSN returns the connection string for the configured driver: a file path
// for sqlite, a PostgreSQL URL for postgres.
func (s StorageConfig) DSN() string {
	if s.Driver != "postgres" {
		return s.SQLitePath
	}
	sslmode := s.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, sslmode)
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8480},
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "mafwalk.db", Port: 5432},
		Health: HealthConfig{
			Mode:    HealthSimulated,
			Port:    9000,
			Timeout: 10 * time.Second,
		},
		Tailscale: TailscaleConfig{Hostname: "mafwalk", StateDir: "tsnet-state"},
		Policy: PolicyConfig{
			StrideLengthKm: models.StrideLengthKm,
			ZoneWidthBPM:   models.ZoneWidthBPM,
		},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix MAFWALK_:
//
//	MAFWALK_SERVER_HOST, MAFWALK_SERVER_PORT,
//	MAFWALK_STORAGE_DRIVER, MAFWALK_SQLITE_PATH,
//	MAFWALK_DB_HOST, MAFWALK_DB_PORT, MAFWALK_DB_NAME,
//	MAFWALK_DB_USER, MAFWALK_DB_PASSWORD, MAFWALK_DB_SSLMODE,
//	MAFWALK_AUTH_API_KEY,
//	MAFWALK_HEALTH_MODE, MAFWALK_HEALTH_HOST, MAFWALK_HEALTH_PORT,
//	MAFWALK_TAILSCALE_ENABLED
//
// An empty path skips the file and starts from defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAFWALK_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MAFWALK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAFWALK_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MAFWALK_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("MAFWALK_DB_HOST"); v != "" {
		cfg.Storage.Host = v
	}
	if v := os.Getenv("MAFWALK_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Port = port
		}
	}
	if v := os.Getenv("MAFWALK_DB_NAME"); v != "" {
		cfg.Storage.Name = v
	}
	if v := os.Getenv("MAFWALK_DB_USER"); v != "" {
		cfg.Storage.User = v
	}
	if v := os.Getenv("MAFWALK_DB_PASSWORD"); v != "" {
		cfg.Storage.Password = v
	}
	if v := os.Getenv("MAFWALK_DB_SSLMODE"); v != "" {
		cfg.Storage.SSLMode = v
	}
	if v := os.Getenv("MAFWALK_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("MAFWALK_HEALTH_MODE"); v != "" {
		cfg.Health.Mode = v
	}
	if v := os.Getenv("MAFWALK_HEALTH_HOST"); v != "" {
		cfg.Health.Host = v
	}
	if v := os.Getenv("MAFWALK_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Health.Port = port
		}
	}
	if v := os.Getenv("MAFWALK_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required")
		}
	case "postgres":
		if c.Storage.Host == "" {
			return fmt.Errorf("storage.host is required")
		}
		if c.Storage.Port == 0 {
			return fmt.Errorf("storage.port is required")
		}
		if c.Storage.Name == "" {
			return fmt.Errorf("storage.name is required")
		}
		if c.Storage.User == "" {
			return fmt.Errorf("storage.user is required")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	switch c.Health.Mode {
	case HealthSimulated:
	case HealthNative:
		if c.Health.Host == "" {
			return fmt.Errorf("health.host is required in native mode")
		}
		if c.Health.Port == 0 {
			return fmt.Errorf("health.port is required in native mode")
		}
	default:
		return fmt.Errorf("health.mode %q is not one of native, simulated", c.Health.Mode)
	}
	if c.Health.PollInterval < 0 {
		return fmt.Errorf("health.poll_interval must not be negative")
	}
	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health.timeout must be positive")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Policy.StrideLengthKm <= 0 {
		return fmt.Errorf("policy.stride_length_km must be positive")
	}
	if c.Policy.ZoneWidthBPM <= 0 {
		return fmt.Errorf("policy.zone_width_bpm must be positive")
	}
	return nil
}
