// Package openaiclient builds the OpenAI client shared by transcription and chat.
package openaiclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jiggo089/conference-ai-assistant/internal/config"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
)

// New creates a client for the configured key and optional base URL
func New(cfg *config.ProcessorConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	return openai.NewClientWithConfig(oc)
}

// IsRetryable classifies OpenAI client errors for resilience.Retry.
// Rate limits and server errors are retried; other API errors are not.
func IsRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsRetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.IsRetryableStatus(reqErr.HTTPStatusCode)
	}
	return resilience.IsRetryableNetworkError(err)
}
