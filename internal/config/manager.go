package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mullionhq/mullion/internal/logger"
	"gopkg.in/yaml.v3"
)

// Manager handles configuration loading, defaults and persistence
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. An empty configFile uses
// the default path under the user's config directory.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "mullion")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("second_instance", string(m.config.SecondInstance)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ServerPort:     7430,
		LogLevel:       "info",
		SecondInstance: SecondInstanceFocusMain,
		DefaultWindow: &WindowConfig{
			Title: "mullion",
			Route: "/",
		},
		DefaultOptions: &Options{
			Width:  1024,
			Height: 768,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.ServerPort == 0 {
		cfg.ServerPort = Defaults().ServerPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SecondInstance == "" {
		cfg.SecondInstance = SecondInstanceFocusMain
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Save persists the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetPort overrides the bridge server port
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ServerPort = port
}

// SetLogLevel overrides the log level
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// Validate checks constraints that must hold before the coordinator starts.
// Spawn-window mode requires defaults to seed second-launch windows with.
func (c *Config) Validate() error {
	switch c.SecondInstance {
	case SecondInstanceFocusMain:
	case SecondInstanceSpawnWindow:
		if c.DefaultWindow == nil || c.DefaultOptions == nil {
			return fmt.Errorf("second_instance %q requires default_window and default_options", c.SecondInstance)
		}
		if !c.DefaultWindow.HasContent() {
			return fmt.Errorf("default_window must name a url or route")
		}
	default:
		return fmt.Errorf("unknown second_instance mode: %q", c.SecondInstance)
	}
	return nil
}
