package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and live server stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Server URL: %s\n", valueOrDefault(cfg.Server.BaseURL, "(not set)"))
		fmt.Printf("  Stream URL: %s\n", streamURLSummary(cfg))
		fmt.Printf("  Log Level:  %s\n", valueOrDefault(cfg.Log.Level, "(off)"))

		if cfg.Server.BaseURL == "" {
			fmt.Println()
			fmt.Println("No server configured. Run 'vajra init <server-url>' first.")
			return nil
		}

		fmt.Println()
		fmt.Println("Live stats:")

		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		stats, err := client.Stats(ctx)
		if err != nil {
			fmt.Printf("  Error fetching stats: %v\n", err)
			return nil
		}
		if len(stats) == 0 {
			fmt.Println("  (none reported)")
			return nil
		}
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-20s %v\n", k+":", stats[k])
		}
		return nil
	},
}

// streamURLSummary reports the configured feed URL, or the one the client
// would derive from base_url.
func streamURLSummary(cfg *Config) string {
	if cfg.Server.StreamURL != "" {
		return cfg.Server.StreamURL
	}
	if cfg.Server.BaseURL == "" {
		return "(not set)"
	}
	port := cfg.Server.StreamPort
	if port == 0 {
		port = vajrastream.DefaultStreamPort
	}
	derived, err := vajrastream.DeriveStreamURL(cfg.Server.BaseURL, port)
	if err != nil {
		return fmt.Sprintf("(cannot derive: %v)", err)
	}
	return derived + " (derived)"
}
