package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittovec/pkg/store"
)

const (
	envPrefix = "DITTOVEC"
	appDir    = "dittovec"
	fileName  = "config.yaml"
)

// Load reads path (or the default location when empty), overlays DITTOVEC_*
// variables, applies defaults and validates. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	v := newViper(path)

	found, err := readIn(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, viper.DecodeHook(store.DecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for commands that need a real file: a missing file is an
// error that tells the user how to create one.
func MustLoad(path string) (*Config, error) {
	switch {
	case path == "" && !DefaultConfigExists():
		return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
			"Create one with:\n"+
			"  dittovec config init\n\n"+
			"or point at an existing file:\n"+
			"  dittovec <command> --config /path/to/config.yaml",
			GetDefaultConfigPath())
	case path == "":
		path = GetDefaultConfigPath()
	default:
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Create it with:\n"+
				"  dittovec config init --config %s",
				path, path)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, owner-readable only since store entries
// may hold credentials.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newViper binds DITTOVEC_SECTION_KEY variables, e.g.
// DITTOVEC_LOGGING_LEVEL=DEBUG, and points at the config file.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = GetDefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return v
}

func readIn(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
}

// GetConfigDir returns $XDG_CONFIG_HOME/dittovec, falling back to
// ~/.config/dittovec, or "." when the home directory is unknown.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", appDir)
	}
	return "."
}

func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), fileName)
}

func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
