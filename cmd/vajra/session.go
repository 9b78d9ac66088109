package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

var (
	sessionName       string
	sessionFrequency  float64
	sessionDuration   float64
	sessionVolume     float64
	sessionBowlMode   bool
	sessionHarmonics  float64
	sessionModulation float64
)

func init() {
	for _, cmd := range []*cobra.Command{sessionCreateCmd, sessionRunCmd} {
		cmd.Flags().StringVar(&sessionName, "name", "", "session name")
		cmd.Flags().Float64Var(&sessionFrequency, "frequency", 432, "tone frequency in Hz")
		cmd.Flags().Float64Var(&sessionDuration, "duration", 30, "duration in seconds (1-300)")
		cmd.Flags().Float64Var(&sessionVolume, "volume", 0.7, "volume (0-1)")
		cmd.Flags().BoolVar(&sessionBowlMode, "bowl", false, "enable prayer bowl mode")
		cmd.Flags().Float64Var(&sessionHarmonics, "harmonics", 0.5, "harmonic strength (0-1)")
		cmd.Flags().Float64Var(&sessionModulation, "modulation", 0.3, "modulation depth (0-1)")
	}
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionRunCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage tone sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session without starting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := client.Sessions.Create(ctx, sessionConfigFromFlags())
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <session-id>",
	Short: "Start a created session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := client.Sessions.Start(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := client.Sessions.Stop(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Create a session and start it immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := client.Sessions.Run(ctx, sessionConfigFromFlags())
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

func sessionConfigFromFlags() *vajrastream.SessionConfig {
	return &vajrastream.SessionConfig{
		Name: sessionName,
		ToneSettings: vajrastream.ToneSettings{
			Frequency:        sessionFrequency,
			Duration:         sessionDuration,
			Volume:           sessionVolume,
			PrayerBowlMode:   sessionBowlMode,
			HarmonicStrength: sessionHarmonics,
			ModulationDepth:  sessionModulation,
		},
	}
}
