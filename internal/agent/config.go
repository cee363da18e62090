package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "CORESIGHT"

type Config struct {
	// EntityID pins reports to a registered entity. When empty the server
	// resolves the entity by hostname.
	EntityID        string `mapstructure:"entity_id" toml:"entity_id,omitempty" validate:"omitempty,uuid"`
	ServerURL       string `mapstructure:"server_url" toml:"server_url" validate:"required,http_url"`
	Password        string `mapstructure:"password" toml:"password" validate:"required"`
	IntervalSeconds int    `mapstructure:"interval_seconds" toml:"interval_seconds" validate:"gte=1,lte=3600"`
	HealthPort      int    `mapstructure:"health_port" toml:"health_port" validate:"gte=0,lte=65535"` // 0 disables /health
	DiskPath        string `mapstructure:"disk_path" toml:"disk_path,omitempty"`
	InsecureSkipTLS bool   `mapstructure:"insecure_skip_tls" toml:"insecure_skip_tls"` // allow self-signed certs

	path string `toml:"-"` // file path, not serialized
}

func DefaultConfig() *Config {
	return &Config{
		IntervalSeconds: 10,
		HealthPort:      3001,
		DiskPath:        defaultDiskPath(),
	}
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *Config) IsConfigured() bool {
	return c.ServerURL != "" && c.Password != ""
}

func (c *Config) Path() string {
	return c.path
}

// Validate joins every field failure into one error.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid agent config: %s", strings.Join(msgs, "; "))
}

// LoadConfig reads path (a missing file is not an error), then applies
// CORESIGHT_* environment overrides. The legacy variables SERVER_ID,
// BACKEND_HOST, BACKEND_PORT and HEALTH_PORT are honoured too.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// BindEnv only errors when called without a key.
	_ = v.BindEnv("entity_id", envPrefix+"_ENTITY_ID", "SERVER_ID")
	_ = v.BindEnv("health_port", envPrefix+"_HEALTH_PORT", "HEALTH_PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if v.GetString("server_url") == "" {
		if host := os.Getenv("BACKEND_HOST"); host != "" {
			port := os.Getenv("BACKEND_PORT")
			if port == "" {
				port = "3000"
			}
			v.Set("server_url", "http://"+host+":"+port)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.path = path
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("entity_id", "")
	v.SetDefault("server_url", "")
	v.SetDefault("password", "")
	v.SetDefault("interval_seconds", d.IntervalSeconds)
	v.SetDefault("health_port", d.HealthPort)
	v.SetDefault("disk_path", d.DiskPath)
	v.SetDefault("insecure_skip_tls", false)
}

func SaveConfig(cfg *Config, path string) error {
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

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/coresight/agent.toml"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "CoreSight", "agent.toml")
	}
	return filepath.Join(home, ".config", "coresight", "agent.toml")
}

func defaultDiskPath() string {
	if runtime.GOOS == "windows" {
		return "C:\\"
	}
	return "/"
}
