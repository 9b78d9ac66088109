package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

var (
	toneFrequency  float64
	toneDuration   float64
	toneVolume     float64
	toneBowlMode   bool
	toneHarmonics  float64
	toneModulation float64
	playLevel      float64
	playGenerate   bool
)

func init() {
	for _, cmd := range []*cobra.Command{toneGenerateCmd, tonePlayCmd} {
		cmd.Flags().Float64Var(&toneFrequency, "frequency", 432, "tone frequency in Hz")
		cmd.Flags().Float64Var(&toneDuration, "duration", 30, "duration in seconds (1-300)")
		cmd.Flags().Float64Var(&toneVolume, "volume", 0.7, "volume (0-1)")
		cmd.Flags().BoolVar(&toneBowlMode, "bowl", false, "enable prayer bowl mode")
		cmd.Flags().Float64Var(&toneHarmonics, "harmonics", 0.5, "harmonic strength (0-1)")
		cmd.Flags().Float64Var(&toneModulation, "modulation", 0.3, "modulation depth (0-1)")
	}
	tonePlayCmd.Flags().Float64Var(&playLevel, "level", 0.8, "hardware output level (0-1)")
	tonePlayCmd.Flags().BoolVar(&playGenerate, "generate", false, "generate the tone before playing it")
	toneCmd.AddCommand(toneGenerateCmd)
	toneCmd.AddCommand(tonePlayCmd)
	rootCmd.AddCommand(toneCmd)
}

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Generate and play tones",
}

var toneGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a tone on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := client.Audio.Generate(ctx, toneSettingsFromFlags())
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	},
}

var tonePlayCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a generated tone through the hardware output",
	Long:  "Play a generated tone through the hardware output.\n\nThe play precondition is tracked per client, so a fresh CLI invocation\nhas no generated tone yet. Pass --generate to render one first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if playGenerate {
			gen, err := client.Audio.Generate(ctx, toneSettingsFromFlags())
			if err != nil {
				return err
			}
			if !gen.OK() {
				printResult(gen)
				return nil
			}
		}

		res, err := client.Audio.Play(ctx, playLevel)
		if err != nil {
			if errors.Is(err, vajrastream.ErrNoAudio) {
				return fmt.Errorf("no tone generated yet - pass --generate, or run 'vajra tone play --generate'")
			}
			return err
		}
		printResult(res)
		return nil
	},
}

func toneSettingsFromFlags() vajrastream.ToneSettings {
	return vajrastream.ToneSettings{
		Frequency:        toneFrequency,
		Duration:         toneDuration,
		Volume:           toneVolume,
		PrayerBowlMode:   toneBowlMode,
		HarmonicStrength: toneHarmonics,
		ModulationDepth:  toneModulation,
	}
}
