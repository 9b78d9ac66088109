package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.vajra/config.toml.
type Config struct {
	Server ConfigServer `toml:"server"`
	Log    ConfigLog    `toml:"log"`
}

// ConfigServer points the CLI at a Vajra.Stream server.
type ConfigServer struct {
	BaseURL    string `toml:"base_url"`
	StreamURL  string `toml:"stream_url"`
	StreamPort int    `toml:"stream_port"`
}

// ConfigLog holds logging preferences.
type ConfigLog struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.vajra, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".vajra")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// getConfigValue reads a config field using dot notation (e.g. "server.base_url").
func getConfigValue(cfg *Config, key string) (string, error) {
	switch key {
	case "server.base_url":
		return cfg.Server.BaseURL, nil
	case "server.stream_url":
		return cfg.Server.StreamURL, nil
	case "server.stream_port":
		return strconv.Itoa(cfg.Server.StreamPort), nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.development":
		return strconv.FormatBool(cfg.Log.Development), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// setConfigValue sets a config field using dot notation (e.g. "server.base_url").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. server.base_url)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "server":
		switch field {
		case "base_url":
			cfg.Server.BaseURL = value
		case "stream_url":
			cfg.Server.StreamURL = value
		case "stream_port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("stream_port must be an integer: %w", err)
			}
			cfg.Server.StreamPort = port
		default:
			return fmt.Errorf("unknown field %q in section [server]", field)
		}
	case "log":
		switch field {
		case "level":
			cfg.Log.Level = value
		case "development":
			dev, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("development must be a boolean: %w", err)
			}
			cfg.Log.Development = dev
		default:
			return fmt.Errorf("unknown field %q in section [log]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: server, log)", section)
	}
	return nil
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "vajra",
	Short: "Vajra.Stream CLI",
	Long:  "Command-line interface for the Vajra.Stream audio server.\nManage configuration, run tone sessions, and follow the live feed.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
