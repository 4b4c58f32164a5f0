// Package stt transcribes snapshot files with a hosted speech-to-text service.
package stt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jiggo089/conference-ai-assistant/internal/config"
)

// ErrEmptyAudio is returned for files that hold no samples
var ErrEmptyAudio = errors.New("audio file is empty")

// TranscriptionResult represents the transcription of one file
type TranscriptionResult struct {
	// Text is the transcribed text
	Text string

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// Duration is the duration of the audio in seconds if reported
	Duration float64
}

// Transcriber is the interface for prerecorded speech-to-text clients
type Transcriber interface {
	// Transcribe uploads the file at path and returns its transcription
	Transcribe(ctx context.Context, path string) (*TranscriptionResult, error)

	// Name identifies the provider in logs
	Name() string
}

// New returns the transcriber selected by TRANSCRIPTION_PROVIDER
func New(cfg *config.ProcessorConfig) (Transcriber, error) {
	switch cfg.TranscriptionProvider {
	case "", "openai":
		return NewWhisperTranscriber(cfg), nil
	case "deepgram":
		return NewDeepgramTranscriber(cfg), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.TranscriptionProvider)
}

// checkFile rejects missing files and header-only WAV files
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() <= wavHeaderSize {
		return fmt.Errorf("%w: %s", ErrEmptyAudio, path)
	}
	return nil
}

const wavHeaderSize = 44
