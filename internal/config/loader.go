// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
	"github.com/coral-mesh/dwarf-type-reader/internal/safe"
)

// Loader reads the configuration file.
type Loader struct {
	path string
	// explicit is set when the path was requested by the user, in which case
	// a missing file is an error.
	explicit bool
	lookup   LookupFunc
}

// NewLoader resolves the config file path in this order:
//  1. path, when non-empty (the --config flag).
//  2. DWARF_TYPE_READER_CONFIG environment variable.
//  3. ~/.dwarf-type-reader/config.yaml.
//
// Without a home directory the loader falls back to defaults plus
// environment overrides.
func NewLoader(path string) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	if path != "" {
		l.path, l.explicit = path, true
		return l
	}
	if env := os.Getenv(constants.EnvConfigPath); env != "" {
		l.path, l.explicit = env, true
		return l
	}
	if home, err := os.UserHomeDir(); err == nil {
		l.path = filepath.Join(home, constants.DefaultDir, constants.ConfigFile)
	}
	return l
}

// Path returns the config file path, or "" when none could be resolved.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the config file over the defaults, applies environment
// overrides and validates the result. A missing default file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation.
func (l *Loader) Read() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			if !os.IsNotExist(err) || l.explicit {
				return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
			}
		} else {
			data, err := safe.ReadFile(l.path, &safe.Options{
				MaxSize:       constants.MaxConfigFileSize,
				AllowSymlinks: true,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", l.path, err)
			}
		}
	}

	if err := loadFromEnv(reflect.ValueOf(cfg), l.lookup); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the loader's path, creating the directory.
func (l *Loader) Save(cfg *Config) error {
	if l.path == "" {
		return fmt.Errorf("no config path")
	}

	//nolint:gosec // G301: Directory needs standard permissions for traversal
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(l.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
