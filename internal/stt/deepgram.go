package stt

import (
	"context"
	"errors"
	"regexp"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
)

// ErrNoTranscript is returned when a response carries no alternatives
var ErrNoTranscript = errors.New("deepgram returned no alternatives")

// retryableDeepgram matches the HTTP status carried in SDK error messages
var retryableDeepgram = regexp.MustCompile(`(?i)\b(408|429|5\d\d)\b|service[ _]unavailable|internal[ _]server[ _]error|too[ _]many[ _]requests|bad[ _]gateway|gateway[ _]timeout`)

// DeepgramTranscriber uses Deepgram's prerecorded REST API
type DeepgramTranscriber struct {
	client  *api.Client
	options *interfaces.PreRecordedTranscriptionOptions
	retry   *resilience.RetryConfig
	logger  zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber from processor configuration
func NewDeepgramTranscriber(cfg *config.ProcessorConfig) *DeepgramTranscriber {
	c := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{Host: cfg.DeepgramHost})

	return &DeepgramTranscriber{
		client: api.New(c),
		options: &interfaces.PreRecordedTranscriptionOptions{
			Model:       cfg.DeepgramModel,
			Language:    cfg.DeepgramLanguage,
			Punctuate:   true,
			SmartFormat: true,
		},
		retry:  cfg.RetryPolicy(),
		logger: observability.WithComponent("stt").With().Str("provider", "deepgram").Logger(),
	}
}

// Name returns the provider name
func (d *DeepgramTranscriber) Name() string {
	return "deepgram"
}

// Transcribe uploads the file and returns the first alternative of the first channel
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, path string) (*TranscriptionResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	var result *TranscriptionResult
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		res, err := d.client.FromFile(ctx, path, d.options)
		if err != nil {
			d.logger.Warn().Err(err).Str("file", path).Msg("Transcription attempt failed")
			return err
		}
		if res == nil || res.Results == nil || len(res.Results.Channels) == 0 ||
			len(res.Results.Channels[0].Alternatives) == 0 {
			return ErrNoTranscript
		}

		alt := res.Results.Channels[0].Alternatives[0]
		result = &TranscriptionResult{
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
		}
		return nil
	}, d.retry, isRetryableDeepgram)
	if err != nil {
		observability.RecordError("transcription_failed", "stt")
		return nil, err
	}
	return result, nil
}

// isRetryableDeepgram retries network failures and 408, 429 and 5xx responses
func isRetryableDeepgram(err error) bool {
	if err == nil || errors.Is(err, ErrNoTranscript) {
		return false
	}
	return resilience.IsRetryableNetworkError(err) || retryableDeepgram.MatchString(err.Error())
}
