// Package processor transcribes one snapshot and forwards it to the assistant.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
	"github.com/jiggo089/conference-ai-assistant/internal/stt"
)

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("usage: processor <filename> [<thread_id> <assistant_id>]")

// Asker continues or starts an assistant conversation
type Asker interface {
	Ask(ctx context.Context, ids session.IDs, text string) (session.IDs, error)
}

// Args is a parsed processor command line
type Args struct {
	Filename string
	IDs      session.IDs
}

// ParseArgs accepts a filename optionally followed by both session ids
func ParseArgs(args []string) (Args, error) {
	switch len(args) {
	case 1:
		return Args{Filename: args[0]}, nil
	case 3:
		return Args{Filename: args[0], IDs: session.IDs{ThreadID: args[1], AssistantID: args[2]}}, nil
	}
	return Args{}, ErrUsage
}

// Processor runs transcription then the assistant for one file
type Processor struct {
	stt    stt.Transcriber
	asker  Asker
	out    io.Writer
	logger zerolog.Logger
}

// New creates a processor writing user-facing lines to out
func New(transcriber stt.Transcriber, asker Asker, out io.Writer) *Processor {
	return &Processor{
		stt:    transcriber,
		asker:  asker,
		out:    out,
		logger: observability.WithComponent("processor"),
	}
}

// Process transcribes args.Filename, prints the transcription and asks the assistant
func (p *Processor) Process(ctx context.Context, args Args) (session.IDs, error) {
	logger := p.logger.With().Str("file", args.Filename).Str("provider", p.stt.Name()).Logger()

	res, err := p.stt.Transcribe(ctx, args.Filename)
	if err != nil {
		return args.IDs, fmt.Errorf("transcription failed: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	fmt.Fprintf(p.out, "Transcription: %s\n", text)

	if text == "" {
		logger.Info().Msg("Empty transcription, assistant not called")
		return args.IDs, nil
	}

	ids, err := p.asker.Ask(ctx, args.IDs, text)
	if err != nil {
		return ids, fmt.Errorf("assistant failed: %w", err)
	}
	logger.Info().Str("thread_id", ids.ThreadID).Msg("Reply delivered")
	return ids, nil
}
