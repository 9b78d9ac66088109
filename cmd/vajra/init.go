package main

import (
	"fmt"

	"github.com/spf13/cobra"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <server-url>",
	Short: "Initialize the CLI with a server URL",
	Long:  "Initialize the Vajra CLI by pointing it at a Vajra.Stream server.\nThe URL is stored in ~/.vajra/config.toml.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL := args[0]

		// Reject URLs the feed could never be derived from.
		if _, err := vajrastream.DeriveStreamURL(serverURL, 0); err != nil {
			return fmt.Errorf("invalid server url: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Server.BaseURL = serverURL
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Printf("Server URL saved to %s\n", path)
		return nil
	},
}
