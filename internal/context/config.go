package context

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where the config lives unless AGENTCTL_CONFIG says otherwise.
	DefaultConfigPath = "~/.agentctl/config"
	// ConfigAPIVersion is written into new files.
	ConfigAPIVersion = "v1"
	// ConfigKind is written into new files.
	ConfigKind = "Config"
)

// Store reads and writes the config file on an afero filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for path on fs.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// NewDefaultStore returns a Store for the user's config file on the OS filesystem.
func NewDefaultStore() (*Store, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStore(afero.NewOsFs(), path), nil
}

// Path returns the file the store operates on.
func (s *Store) Path() string {
	return s.path
}

// ConfigPath returns the config file path, expanding the home directory.
func ConfigPath() (string, error) {
	configPath := os.Getenv("AGENTCTL_CONFIG")
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if strings.HasPrefix(configPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, configPath[2:])
	}

	return configPath, nil
}

// Load reads the config. A missing file yields an empty config.
func (s *Store) Load() (*Config, error) {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		return &Config{
			APIVersion: ConfigAPIVersion,
			Kind:       ConfigKind,
			Contexts:   []NamedContext{},
			Users:      []NamedUser{},
		}, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Save writes the config with owner-only permissions since it holds tokens.
func (s *Store) Save(config *Config) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if config.APIVersion == "" {
		config.APIVersion = ConfigAPIVersion
	}
	if config.Kind == "" {
		config.Kind = ConfigKind
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
