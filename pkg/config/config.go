// Package config loads the client configuration: defaults, then an optional
// YAML file, then SEC_POLICY_LENS_* environment variables. Command-line flags
// are applied on top by the CLI.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rupeshbug/sec-policy-lens/pkg/answer"
	"github.com/rupeshbug/sec-policy-lens/pkg/logging"
	"github.com/rupeshbug/sec-policy-lens/pkg/redisstream"
)

const (
	AppName = "sec-policy-lens"
	// EnvPrefix is stripped from environment variables; "__" separates
	// nested keys, e.g. SEC_POLICY_LENS_SERVICE__URL sets service.url.
	EnvPrefix = "SEC_POLICY_LENS_"
)

type Config struct {
	Service ServiceConfig        `koanf:"service" yaml:"service"`
	Logging logging.Settings     `koanf:"logging" yaml:"logging"`
	Redis   redisstream.Settings `koanf:"redis" yaml:"redis"`
	UI      UIConfig             `koanf:"ui" yaml:"ui"`
}

type ServiceConfig struct {
	URL     string        `koanf:"url" yaml:"url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

type UIConfig struct {
	AltScreen bool `koanf:"alt_screen" yaml:"alt_screen"`
	// GlamourStyle is "auto", a glamour style name, or "plain".
	GlamourStyle string `koanf:"glamour_style" yaml:"glamour_style"`
}

func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:     answer.DefaultBaseURL,
			Timeout: answer.DefaultTimeout,
		},
		Logging: logging.DefaultSettings(),
		Redis:   redisstream.DefaultSettings(),
		UI: UIConfig{
			AltScreen:    true,
			GlamourStyle: "auto",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sec-policy-lens/config.yaml or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// DefaultLogFile is where the interactive client logs when no file is
// configured, so log lines never land on the TUI.
func DefaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName, AppName+".log")
}

// Load reads path (DefaultPath when empty) if it exists and overlays the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "access config %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment overrides")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) Save(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config to %s", path)
	}
	return nil
}

func (c *Config) YAML() ([]byte, error) {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return data, nil
}

var validLogFormats = map[string]bool{
	"":        true,
	"auto":    true,
	"json":    true,
	"console": true,
	"text":    true,
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid service url %q", c.Service.URL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("invalid service url %q: must be an absolute http(s) url", c.Service.URL)
	}
	if c.Service.Timeout <= 0 {
		return errors.Errorf("service timeout must be positive, got %s", c.Service.Timeout)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return errors.Errorf("invalid log format %q: must be one of auto, json, console", c.Logging.Format)
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when redis is enabled")
		}
		if c.Redis.Group == "" || c.Redis.Consumer == "" {
			return errors.New("redis.group and redis.consumer are required when redis is enabled")
		}
	}
	return nil
}
