package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/coresight/coresight/internal/evaluator"
)

type Config struct {
	ListenAddr   string `toml:"listen_addr" validate:"required"`
	DatabasePath string `toml:"database_path" validate:"required"`

	// TLS
	TLSMode      string `toml:"tls_mode" validate:"oneof=none autocert selfsigned manual"`
	Domain       string `toml:"domain" validate:"required_if=TLSMode autocert"`
	CertFile     string `toml:"cert_file" validate:"required_if=TLSMode manual"`
	KeyFile      string `toml:"key_file" validate:"required_if=TLSMode manual"`
	CertCacheDir string `toml:"cert_cache_dir"`

	// Auth
	AdminUser          string `toml:"admin_user"`
	AdminPasswordHash  string `toml:"admin_password_hash"`
	IngestPasswordHash string `toml:"ingest_password_hash"`

	// Ingest
	AutoRegister bool    `toml:"auto_register"`
	IngestRate   float64 `toml:"ingest_rate_per_second" validate:"gte=0"`
	IngestBurst  int     `toml:"ingest_burst" validate:"gte=0"`

	// Alerting
	Thresholds             evaluator.Thresholds `toml:"thresholds"`
	ThresholdOverridesFile string               `toml:"threshold_overrides_file"`
	AlertCooldownMinutes   int                  `toml:"alert_cooldown_minutes" validate:"gte=0"`
	NotifyQueueSize        int                  `toml:"notify_queue_size" validate:"gte=0"`

	// Probing
	ProbeIntervalSeconds int `toml:"probe_interval_seconds" validate:"gte=0"`
	ProbeTimeoutSeconds  int `toml:"probe_timeout_seconds" validate:"gte=0"`
	MaxConcurrentProbes  int `toml:"max_concurrent_probes" validate:"gte=0"`
	AgentHealthPort      int `toml:"agent_health_port" validate:"gte=0,lte=65535"`

	// Retention of samples, probe results and resolved alerts. Zero keeps
	// everything.
	RetentionDays int `toml:"retention_days" validate:"gte=0"`

	SentryDSN string `toml:"sentry_dsn"`
}

func DefaultServerConfig() *Config {
	return &Config{
		ListenAddr:           ":3000",
		DatabasePath:         defaultDatabasePath(),
		TLSMode:              "none",
		CertCacheDir:         defaultCertCacheDir(),
		AdminUser:            "admin",
		IngestRate:           0.5,
		IngestBurst:          30,
		Thresholds:           evaluator.DefaultThresholds,
		AlertCooldownMinutes: 60,
		NotifyQueueSize:      256,
		ProbeIntervalSeconds: 60,
		ProbeTimeoutSeconds:  5,
		MaxConcurrentProbes:  16,
		AgentHealthPort:      3001,
	}
}

func (c *Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMinutes) * time.Minute
}

func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Validate checks field constraints and that the auth hashes needed to
// serve requests are present.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if c.IngestPasswordHash == "" {
		return errors.New("invalid server config: ingest_password_hash is required")
	}
	if c.AdminPasswordHash == "" {
		return errors.New("invalid server config: admin_password_hash is required")
	}
	return nil
}

func LoadServerConfig(path string) (*Config, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read server config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

func SaveServerConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config for writing: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func DefaultServerConfigPath() string {
	return filepath.Join(configDir(), "server.toml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/coresight"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "CoreSight")
	}
	return filepath.Join(home, ".config", "coresight")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/coresight"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "CoreSight")
	}
	return filepath.Join(home, ".local", "share", "coresight")
}

func defaultDatabasePath() string {
	return filepath.Join(dataDir(), "coresight.db")
}

func defaultCertCacheDir() string {
	return filepath.Join(dataDir(), "certs")
}
