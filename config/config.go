package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MUZI_PORT.
const EnvPrefix = "MUZI_"

// Config 机器人配置
type Config struct {
	Host        string  `yaml:"host" toml:"host" env:"HOST"`
	Port        int     `yaml:"port" toml:"port" env:"PORT"`
	Path        string  `yaml:"path" toml:"path" env:"PATH"`
	AccessToken string  `yaml:"access_token" toml:"access_token" env:"ACCESS_TOKEN"`
	Superusers  []int64 `yaml:"superusers" toml:"superusers" env:"SUPERUSERS" envSeparator:","`

	// CallTimeout and RebootGrace are in seconds.
	CallTimeout   int  `yaml:"call_timeout" toml:"call_timeout" env:"CALL_TIMEOUT"`
	AutoReconnect bool `yaml:"auto_reconnect" toml:"auto_reconnect" env:"AUTO_RECONNECT"`
	RebootGrace   int  `yaml:"reboot_grace" toml:"reboot_grace" env:"REBOOT_GRACE"`

	// RateLimit is action calls per second, 0 for unlimited.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst" env:"RATE_BURST"`

	DataPath string `yaml:"data_path" toml:"data_path" env:"DATA_PATH"`
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`

	Extra   Extra                   `yaml:"extra" toml:"extra" envPrefix:"EXTRA_"`
	Plugins map[string]PluginConfig `yaml:"plugins" toml:"plugins"`
}

type Extra struct {
	AllowEmptyPlugins bool `yaml:"allow_empty_plugins" toml:"allow_empty_plugins" env:"ALLOW_EMPTY_PLUGINS"`
	HideEmptyPlugins  bool `yaml:"hide_empty_plugins" toml:"hide_empty_plugins" env:"HIDE_EMPTY_PLUGINS"`
}

type PluginConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

func Default() *Config {
	return &Config{
		Host:          "127.0.0.1",
		Port:          5700,
		Path:          "/onebot/v11/ws",
		CallTimeout:   15,
		AutoReconnect: true,
		RebootGrace:   10,
		RateBurst:     1,
		DataPath:      "data/muzi.db",
		LogLevel:      "info",
		Extra:         Extra{HideEmptyPlugins: true},
		Plugins:       map[string]PluginConfig{},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config from environment: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func decode(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Save writes cfg to path, as TOML for .toml files and YAML otherwise.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		_ = enc.Close()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("call_timeout must be positive"))
	}
	if c.RebootGrace < 0 {
		errs = append(errs, errors.New("reboot_grace must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

func (c *Config) RebootGraceDuration() time.Duration {
	return time.Duration(c.RebootGrace) * time.Second
}

func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// PluginFlags returns the configured enabled switches by plugin name.
func (c *Config) PluginFlags() map[string]bool {
	out := make(map[string]bool, len(c.Plugins))
	for name, p := range c.Plugins {
		out[name] = p.Enabled
	}
	return out
}
