package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.castkitrc, $XDG_CONFIG_HOME/castkit/config.toml, ~/.config/castkit/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// Try loading from file
	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// Apply defaults, then environment variable overrides
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultStoragePath returns the default location of the positions database.
func DefaultStoragePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "positions.db"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "castkit", "positions.db")
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".castkitrc"),
	}

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "castkit", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Player
	if v := os.Getenv("CASTKIT_SKIP_BACK"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Player.SkipBackSeconds = i
		}
	}
	if v := os.Getenv("CASTKIT_SKIP_FORWARD"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Player.SkipForwardSeconds = i
		}
	}
	if v := os.Getenv("CASTKIT_SAVE_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Player.SaveIntervalSecs = i
		}
	}

	// Storage
	if v := os.Getenv("CASTKIT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	// TUI
	if v := os.Getenv("CASTKIT_TUI_REFRESH_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.TUI.RefreshInterval = i
		}
	}

	// Log
	if v := os.Getenv("CASTKIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CASTKIT_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
