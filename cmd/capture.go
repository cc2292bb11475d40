// Package cmd holds cobra subcommands attached to the CLI root.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/depthnode/internal/logging"
	"github.com/smazurov/depthnode/internal/media"
	"github.com/smazurov/depthnode/internal/pipeline"
	"github.com/smazurov/depthnode/internal/sink"
	"github.com/smazurov/depthnode/internal/source"
	"github.com/spf13/cobra"
)

// CreateCaptureCmd creates the capture command: a headless capture
// session against synthetic sources, useful for exercising the
// correlation and persistence paths without the HTTP server.
func CreateCaptureCmd() *cobra.Command {
	var (
		selection       string
		duration        time.Duration
		dir             string
		frameIntervalMs int
		dropVideoEvery  int
		dropDepthEvery  int
		noDepthFilter   bool
		logJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a headless capture session",
		Long: `Runs a capture session against synthetic sources and persists calibration ` +
			`artifacts to the capture directory. Stops after the given duration or on SIGINT/SIGTERM.`,
		Run: func(_ *cobra.Command, _ []string) {
			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("capture")

			sel, err := source.ParseSelection(selection)
			if err != nil {
				logger.Error("Invalid source selection", "selection", selection, "error", err)
				os.Exit(1)
			}

			frameInterval := time.Duration(frameIntervalMs) * time.Millisecond
			provider := &source.SyntheticProvider{
				Video: source.VideoConfig{
					Interval: frameInterval,
					Drop:     dropFunc(dropVideoEvery, media.DropLateData),
				},
				Depth: source.DepthConfig{
					Interval: frameInterval,
					Drop:     dropFunc(dropDepthEvery, media.DropLateData),
				},
				Metadata: source.MetadataConfig{Interval: frameInterval},
			}

			pipe, err := pipeline.New(pipeline.Config{
				Provider:       provider,
				Selection:      sel,
				DepthFiltering: !noDepthFilter,
				Sink:           sink.Config{Dir: dir},
			})
			if err != nil {
				logger.Error("Failed to create capture pipeline", "error", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := pipe.Start(ctx); err != nil {
				logger.Error("Failed to start capture session", "error", err)
				os.Exit(1)
			}
			logger.Info("Capture session running", "selection", sel, "dir", dir, "duration", duration)

			select {
			case <-ctx.Done():
				logger.Info("Signal received, stopping")
			case <-time.After(duration):
			}

			if err := pipe.Stop(); err != nil {
				logger.Error("Error stopping capture session", "error", err)
				os.Exit(1)
			}

			stats := pipe.Stats()
			fmt.Printf("session %s finished\n", stats.SessionID)
			fmt.Printf("  ticks:          %d (%d aborted)\n", stats.Ticks, stats.TicksAborted)
			fmt.Printf("  bundles:        %d\n", stats.Bundles)
			fmt.Printf("  video frames:   %d\n", stats.VideoFrames)
			for key, n := range stats.SamplesDropped {
				fmt.Printf("  dropped %-14s %d\n", key+":", n)
			}
			if stats.LastError != "" {
				fmt.Printf("  last error:     %s\n", stats.LastError)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&selection, "source", "truedepth", "Source selection (color, truedepth)")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "How long to capture")
	cmd.Flags().StringVar(&dir, "dir", "capture", "Directory for persisted calibration artifacts")
	cmd.Flags().IntVar(&frameIntervalMs, "frame-interval", 33, "Synthetic frame interval in milliseconds")
	cmd.Flags().IntVar(&dropVideoEvery, "drop-video-every", 0, "Drop every nth video frame (0 disables)")
	cmd.Flags().IntVar(&dropDepthEvery, "drop-depth-every", 0, "Drop every nth depth frame (0 disables)")
	cmd.Flags().BoolVar(&noDepthFilter, "no-depth-filter", false, "Disable temporal depth filtering")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	return cmd
}

func dropFunc(every int, reason media.DropReason) source.DropFunc {
	if every < 1 {
		return nil
	}
	return source.DropEvery(every, reason)
}
