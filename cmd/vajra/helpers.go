package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

// EnvOverrides are environment settings (prefix VAJRA_) that take precedence
// over the config file.
type EnvOverrides struct {
	ServerURL  string `envconfig:"SERVER_URL"`
	StreamURL  string `envconfig:"STREAM_URL"`
	StreamPort int    `envconfig:"STREAM_PORT"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
}

// resolveConfig loads the config file and applies environment overrides.
func resolveConfig() (*Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var env EnvOverrides
	if err := envconfig.Process("vajra", &env); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}
	if env.ServerURL != "" {
		cfg.Server.BaseURL = env.ServerURL
	}
	if env.StreamURL != "" {
		cfg.Server.StreamURL = env.StreamURL
	}
	if env.StreamPort != 0 {
		cfg.Server.StreamPort = env.StreamPort
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	return cfg, nil
}

// getClient builds an action client from the resolved configuration.
// It exits with a hint when no server is configured.
func getClient() *vajrastream.Client {
	cfg, err := resolveConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "No server configured. Run 'vajra init <server-url>' first, or set VAJRA_SERVER_URL.")
		os.Exit(1)
	}

	opts := []vajrastream.ClientOption{
		vajrastream.WithLogger(buildLogger(cfg)),
	}
	if cfg.Server.StreamURL != "" {
		opts = append(opts, vajrastream.WithStreamURL(cfg.Server.StreamURL))
	}
	if cfg.Server.StreamPort != 0 {
		opts = append(opts, vajrastream.WithStreamPort(cfg.Server.StreamPort))
	}
	return vajrastream.NewClient(cfg.Server.BaseURL, opts...)
}

// buildLogger constructs a zap logger from the [log] section. Commands stay
// quiet unless logging is configured explicitly.
func buildLogger(cfg *Config) *zap.Logger {
	if cfg.Log.Level == "" && !cfg.Log.Development {
		return zap.NewNop()
	}
	logger, err := vajrastream.NewLogger(vajrastream.LogConfig{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log config: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

// printResult renders an action result in a human-readable form.
func printResult(res *vajrastream.ActionResult) {
	fmt.Printf("Status:     %s\n", res.Status)
	if res.SessionID != "" {
		fmt.Printf("Session ID: %s\n", res.SessionID)
	}
	if res.Message != "" {
		fmt.Printf("Message:    %s\n", res.Message)
	}
	if !res.OK() && res.ErrorText() != res.Message {
		fmt.Printf("Error:      %s\n", res.ErrorText())
	}
}
