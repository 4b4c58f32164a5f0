package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jiggo089/conference-ai-assistant/internal/assistant"
	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/openaiclient"
	"github.com/jiggo089/conference-ai-assistant/internal/processor"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
	"github.com/jiggo089/conference-ai-assistant/internal/stt"
)

func main() {
	args, err := processor.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadProcessor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the transcription and reply for the recorder's log view
	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	logger := observability.WithCorrelationID(observability.NewCorrelationID()).With().
		Str("file", args.Filename).
		Logger()

	transcriber, err := stt.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}

	conv := assistant.NewConversation(
		openaiclient.New(cfg),
		session.NewStore(cfg.SessionFile),
		assistant.OptionsFromConfig(cfg),
		cfg.RetryPolicy(),
		os.Stdout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug().Str("provider", transcriber.Name()).Bool("resume", args.IDs.Complete()).Msg("Processing snapshot")

	if _, err := processor.New(transcriber, conv, os.Stdout).Process(ctx, args); err != nil {
		logger.Error().Err(err).Msg("Processing failed")
		stop()
		os.Exit(1)
	}
}
