package stt

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/openaiclient"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
)

// WhisperTranscriber uses the OpenAI audio transcription endpoint
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	retry  *resilience.RetryConfig
	logger zerolog.Logger
}

// NewWhisperTranscriber creates a transcriber from processor configuration
func NewWhisperTranscriber(cfg *config.ProcessorConfig) *WhisperTranscriber {
	model := cfg.WhisperModel
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperTranscriber{
		client: openaiclient.New(cfg),
		model:  model,
		retry:  cfg.RetryPolicy(),
		logger: observability.WithComponent("stt").With().Str("provider", "openai").Logger(),
	}
}

// Name returns the provider name
func (w *WhisperTranscriber) Name() string {
	return "openai"
}

// Transcribe sends the file to Whisper, retrying transient failures
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (*TranscriptionResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	var resp openai.AudioResponse
	start := time.Now()
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		var err error
		resp, err = w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    w.model,
			FilePath: path,
		})
		if err != nil {
			w.logger.Warn().Err(err).Str("file", path).Msg("Transcription attempt failed")
		}
		return err
	}, w.retry, openaiclient.IsRetryable)
	if err != nil {
		observability.RecordError("transcription_failed", "stt")
		return nil, err
	}

	w.logger.Debug().Str("file", path).Dur("elapsed", time.Since(start)).Msg("Transcription complete")
	return &TranscriptionResult{Text: resp.Text, Duration: resp.Duration}, nil
}
