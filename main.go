package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/depthnode/cmd"
	"github.com/smazurov/depthnode/internal/api"
	"github.com/smazurov/depthnode/internal/archive"
	"github.com/smazurov/depthnode/internal/config"
	"github.com/smazurov/depthnode/internal/events"
	"github.com/smazurov/depthnode/internal/logging"
	"github.com/smazurov/depthnode/internal/metrics/exporters"
	"github.com/smazurov/depthnode/internal/pipeline"
	"github.com/smazurov/depthnode/internal/sink"
	"github.com/smazurov/depthnode/internal/source"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Capture settings
	CaptureDir             string `help:"Directory for persisted calibration artifacts" default:"capture" toml:"capture.dir" env:"CAPTURE_DIR"`
	CaptureSource          string `help:"Capture source selection (color, truedepth)" default:"truedepth" toml:"capture.source" env:"CAPTURE_SOURCE"`
	CaptureFrameIntervalMs int    `help:"Synthetic source frame interval in milliseconds" default:"33" toml:"capture.frame_interval_ms" env:"CAPTURE_FRAME_INTERVAL_MS"`
	CaptureWidth           int    `help:"Video frame width" default:"640" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight          int    `help:"Video frame height" default:"480" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureToleranceMs     int    `help:"Timestamp correlation tolerance in milliseconds" default:"16" toml:"capture.tolerance_ms" env:"CAPTURE_TOLERANCE_MS"`
	CaptureDepthFiltering  bool   `help:"Enable temporal depth filtering" default:"true" toml:"capture.depth_filtering" env:"CAPTURE_DEPTH_FILTERING"`
	CaptureAutostart       bool   `help:"Start a capture session on boot" default:"false" toml:"capture.autostart" env:"CAPTURE_AUTOSTART"`
	CaptureSinkQueueSize   int    `help:"Persistence queue capacity" default:"256" toml:"capture.sink_queue_size" env:"CAPTURE_SINK_QUEUE_SIZE"`

	// Archive settings
	ArchiveEnabled bool   `help:"Index sessions and calibrations in SQLite" default:"true" toml:"archive.enabled" env:"ARCHIVE_ENABLED"`
	ArchivePath    string `help:"Archive database path" default:"depthnode.db" toml:"archive.path" env:"ARCHIVE_PATH"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingSink     string `help:"Sink logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingSource   string `help:"Source logging level" default:"info" toml:"logging.source" env:"LOGGING_SOURCE"`
	LoggingArchive  string `help:"Archive logging level" default:"info" toml:"logging.archive" env:"LOGGING_ARCHIVE"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"pipeline": opts.LoggingPipeline,
				"sink":     opts.LoggingSink,
				"source":   opts.LoggingSource,
				"archive":  opts.LoggingArchive,
				"api":      opts.LoggingAPI,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward log entries onto the bus for SSE streaming
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Open the archive database if enabled
		var archiveDB *archive.DB
		if opts.ArchiveEnabled {
			db, err := archive.Open(opts.ArchivePath)
			if err != nil {
				logger.Error("Failed to open archive database", "path", opts.ArchivePath, "error", err)
				os.Exit(1)
			}
			archiveDB = db
		}

		frameInterval := time.Duration(opts.CaptureFrameIntervalMs) * time.Millisecond
		provider := &source.SyntheticProvider{
			Video: source.VideoConfig{
				Interval: frameInterval,
				Width:    opts.CaptureWidth,
				Height:   opts.CaptureHeight,
			},
			Depth:    source.DepthConfig{Interval: frameInterval},
			Metadata: source.MetadataConfig{Interval: frameInterval},
		}

		pipeCfg := pipeline.Config{
			Provider:       provider,
			Selection:      source.Selection(opts.CaptureSource),
			TolerancePTS:   time.Duration(opts.CaptureToleranceMs) * time.Millisecond,
			DepthFiltering: opts.CaptureDepthFiltering,
			Publisher:      eventBus,
			StatsInterval:  2 * time.Second,
			Sink: sink.Config{
				Dir:       opts.CaptureDir,
				QueueSize: opts.CaptureSinkQueueSize,
				Publisher: eventBus,
			},
		}
		if archiveDB != nil {
			pipeCfg.Sessions = archiveDB
			pipeCfg.Sink.Recorder = archiveDB
		}

		pipe, err := pipeline.New(pipeCfg)
		if err != nil {
			logger.Error("Failed to create capture pipeline", "error", err)
			os.Exit(1)
		}

		// Watch the config file for runtime-tunable settings
		watcher := config.NewConfigWatcher(
			opts.Config,
			loadRuntimeConfig,
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(rc runtimeConfig) {
			pipe.SetDepthFilteringEnabled(rc.DepthFiltering)
			if rc.Source != "" {
				if sel, selErr := source.ParseSelection(rc.Source); selErr == nil {
					if recErr := pipe.Reconfigure(sel); recErr != nil {
						logger.Warn("Failed to apply source selection from config", "error", recErr)
					}
				}
			}
			logging.Initialize(config.LoadLoggingConfig(opts.Config))
			eventBus.Publish(events.ConfigReloadedEvent{
				Path:      opts.Config,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Pipeline:          pipe,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		}
		if archiveDB != nil {
			apiOpts.Archive = archiveDB
		}
		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher not started", "error", watchErr)
			}

			if opts.CaptureAutostart {
				if startErr := pipe.Start(context.Background()); startErr != nil {
					logger.Error("Failed to autostart capture session", "error", startErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}

			// Stop the session last so in-flight persistence flushes
			if stopErr := pipe.Stop(); stopErr != nil {
				logger.Error("Error stopping capture pipeline", "error", stopErr)
			}

			if archiveDB != nil {
				if closeErr := archiveDB.Close(); closeErr != nil {
					logger.Warn("Error closing archive database", "error", closeErr)
				}
			}
		})
	})

	// Add capture command
	captureCmd := cmd.CreateCaptureCmd()
	cli.Root().AddCommand(captureCmd)

	// Run the CLI
	cli.Run()
}

// runtimeConfig is the subset of the config file applied without a
// restart.
type runtimeConfig struct {
	Source         string
	DepthFiltering bool
}

func loadRuntimeConfig(path string) (runtimeConfig, error) {
	rc := runtimeConfig{DepthFiltering: true}
	data, err := os.ReadFile(path)
	if err != nil {
		return rc, err
	}
	var raw struct {
		Capture struct {
			Source         string `toml:"source"`
			DepthFiltering *bool  `toml:"depth_filtering"`
		} `toml:"capture"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return rc, err
	}
	rc.Source = raw.Capture.Source
	if raw.Capture.DepthFiltering != nil {
		rc.DepthFiltering = *raw.Capture.DepthFiltering
	}
	return rc, nil
}
