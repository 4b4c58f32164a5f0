package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
	"github.com/jiggo089/conference-ai-assistant/internal/capture"
	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/control"
	"github.com/jiggo089/conference-ai-assistant/internal/device"
	"github.com/jiggo089/conference-ai-assistant/internal/logview"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/pipeline"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
	"github.com/jiggo089/conference-ai-assistant/internal/tray"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	if cfg.LogFile != "" {
		logFile := observability.RotatingFile(cfg.LogFile, cfg.LogFileMaxMB, cfg.LogFileBackups)
		defer logFile.Close()
		observability.InitLoggerTo(zerolog.MultiLevelWriter(os.Stdout, logFile), cfg.LogLevel, cfg.LogPretty)
	} else {
		observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	}
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("device", cfg.AudioDevice).
		Str("replay_file", cfg.ReplayFile).
		Str("processor", cfg.ProcessorCommand).
		Str("log_level", cfg.LogLevel).
		Bool("tray_enabled", cfg.TrayEnabled).
		Msg("Conference recorder starting")

	presets, _ := cfg.Presets() // validated by Load

	// Audio input: a WAV replay or a PortAudio device
	var opener capture.Opener
	deviceCheck := func(ctx context.Context) (bool, error) {
		_, err := device.Lookup(cfg.AudioDevice)
		return err == nil, err
	}
	if cfg.ReplayFile != "" {
		opener = capture.NewReplayOpener(cfg.ReplayFile, true)
		deviceCheck = func(ctx context.Context) (bool, error) {
			_, err := os.Stat(cfg.ReplayFile)
			return err == nil, err
		}
	} else {
		terminate, err := device.Initialize()
		if err != nil {
			logger.Fatal().Err(err).Msg("Audio subsystem unavailable")
		}
		defer terminate()

		if names, err := device.InputNames(); err == nil {
			logger.Debug().Strs("inputs", names).Msg("Audio inputs")
		}
		opener = device.Opener(cfg.AudioDevice)
	}

	rec, err := capture.NewRecorder(opener, capture.Options{
		Format: audio.Format{
			SampleRate:     cfg.AudioSampleRate,
			Channels:       cfg.AudioChannels,
			FramesPerChunk: cfg.AudioFramesPerChunk,
		},
		TargetChannel: cfg.AudioTargetChannel,
		MaxSeconds:    cfg.BufferMaxSeconds,
		OutputDir:     cfg.OutputDir,
		VAD: &audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
			FrameSize:       cfg.VADFrameSize,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create recorder")
	}

	breaker := resilience.NewCircuitBreaker("processor",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	runner, err := pipeline.NewRunner(strings.Fields(cfg.ProcessorCommand),
		time.Duration(cfg.PipelineTimeout)*time.Second, breaker)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	hub := logview.NewHub(cfg.LogHistory)
	ctl := control.NewController(rec, session.NewStore(cfg.SessionFile), runner, hub, control.Options{
		DefaultSeconds: presets[0],
		SkipSilent:     cfg.SkipSilentSnapshots,
	})
	rec.OnFailure(ctl.RecorderFailed)
	if cfg.TrayEnabled {
		ctl.OnNotify(tray.Notify)
	}

	var server *http.Server
	if cfg.ControlEnabled {
		mux := http.NewServeMux()

		// Control API and log view
		ctl.Register(mux)
		mux.HandleFunc("GET /api/log", hub.HandleHistory())
		mux.HandleFunc("/ws/log", hub.HandleWS())

		// Health check endpoint
		mux.HandleFunc("/health", observability.HealthCheckHandler())

		// Readiness endpoint - checks are built here to avoid import cycles
		processorCheck := func(ctx context.Context) (bool, error) {
			_, err := exec.LookPath(strings.Fields(cfg.ProcessorCommand)[0])
			return err == nil, err
		}
		mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
			"audio_device":      deviceCheck,
			"processor":         processorCheck,
			"processor_circuit": runner.Ready,
		}))

		// Metrics endpoint (Prometheus)
		if cfg.MetricsEnabled {
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Msg("Prometheus metrics enabled at /metrics")
		}

		// Create HTTP server with timeouts
		server = &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%s", cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in a goroutine
		go func() {
			logger.Info().
				Str("port", cfg.Port).
				Str("log_view", fmt.Sprintf("ws://localhost:%s/ws/log", cfg.Port)).
				Msg("Control server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Msg("Server failed to start")
			}
		}()
	}

	// Wait for interrupt signal or Quit from the tray
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if cfg.TrayEnabled {
		go func() {
			<-quit
			tray.Quit()
		}()
		// systray needs the main goroutine
		tray.Run(ctl, presets, nil)
	} else {
		<-quit
	}

	logger.Info().Msg("Shutting down recorder...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	ctl.Close()

	if rec.State() == capture.StateRecording {
		if snap, err := rec.Stop(cfg.BufferMaxSeconds); err != nil {
			logger.Error().Err(err).Msg("Failed to save buffer on exit")
		} else {
			logger.Info().Str("file", snap.Path).Msg("Buffer saved on exit")
		}
	}

	logger.Info().Msg("Recorder exited")
}
