package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	vajrastream "github.com/LeouOn/vajra-stream-sub003"
)

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "refresh interval for the feed summary")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live feed in the terminal",
	Long:  "Connect to the realtime feed and print spectrum, session, and status\nupdates until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		store := client.Store()

		store.OnChange(vajrastream.EventStatus, func(_ string, payload any) {
			fmt.Printf("status: %v\n", payload)
		})
		store.OnChange(vajrastream.EventError, func(_ string, payload any) {
			if msg, ok := payload.(string); ok && msg != "" {
				fmt.Printf("error: %s\n", msg)
			}
		})

		stream := client.Stream(nil)
		defer stream.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := stream.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "connect: %v (recovery continues in the background)\n", err)
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return stream.Disconnect()
			case <-ticker.C:
				printFeedSummary(store)
			}
		}
	},
}

// printFeedSummary renders one status line from the current store snapshot.
func printFeedSummary(store *vajrastream.Store) {
	line := fmt.Sprintf("[%-12s] %s", store.Status(), sparkline(store.Spectrum(), 32))

	if sessions := store.Sessions(); len(sessions) > 0 {
		names := make([]string, 0, len(sessions))
		for _, rec := range sessions {
			names = append(names, fmt.Sprintf("%s(%s)", rec.Name, rec.Status))
		}
		sort.Strings(names)
		line += " sessions: " + strings.Join(names, ", ")
	}
	if wave := store.Wave(); wave.Active {
		line += fmt.Sprintf(" wave: %.2fHz", wave.RateHz)
	}
	if crystal := store.Crystal(); crystal.Active {
		line += " broadcast: " + crystal.Intention
	}
	fmt.Println(line)
}

// sparkline renders unit-scale magnitudes as a fixed-width bar strip.
func sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat(".", width)
	}
	ramp := []rune("▁▂▃▄▅▆▇█")
	var b strings.Builder
	for i := 0; i < width; i++ {
		v := values[i*len(values)/width]
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		b.WriteRune(ramp[int(v*float64(len(ramp)-1))])
	}
	return b.String()
}
