// Package pipeline hands snapshot files to the downstream processor.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
)

// ErrTimeout is returned when a processor run exceeds its deadline
var ErrTimeout = errors.New("processor timed out")

// Stream names passed to a LineFunc
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// LineFunc receives every output line of the processor verbatim.
// It is called from two goroutines, one per stream.
type LineFunc func(stream, line string)

// Runner invokes `<command...> <filename> [<thread_id> <assistant_id>]`
type Runner struct {
	argv    []string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewRunner creates a runner for argv. A nil breaker disables circuit breaking.
func NewRunner(argv []string, timeout time.Duration, breaker *resilience.CircuitBreaker) (*Runner, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("processor command is empty")
	}
	if breaker != nil {
		breaker.OnStateChange(func(name string, state resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(state))
		})
	}
	return &Runner{
		argv:    argv,
		timeout: timeout,
		breaker: breaker,
		logger:  observability.WithComponent("pipeline"),
	}, nil
}

// Args builds the processor arguments. Session ids are passed only as a pair.
func Args(filename string, ids session.IDs) []string {
	if ids.Complete() {
		return []string{filename, ids.ThreadID, ids.AssistantID}
	}
	return []string{filename}
}

// Run executes the processor for filename and blocks until it exits
func (r *Runner) Run(ctx context.Context, filename string, ids session.IDs, sink LineFunc) error {
	if r.breaker == nil {
		return r.run(ctx, filename, ids, sink)
	}
	err := r.breaker.Call(func() error {
		return r.run(ctx, filename, ids, sink)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		observability.RecordPipelineRun("rejected", 0)
		r.logger.Warn().Str("file", filename).Msg("Processor circuit open, run skipped")
	}
	return err
}

// Ready reports whether runs are currently accepted. It fails while the
// circuit is open and reports the failure counts seen so far.
func (r *Runner) Ready(ctx context.Context) (bool, error) {
	if r.breaker == nil {
		return true, nil
	}
	state, requests, failures, rate := r.breaker.GetStats()
	if state == resilience.StateOpen {
		return false, fmt.Errorf("%w: %d of %d runs failed (%.0f%%)", resilience.ErrCircuitOpen, failures, requests, rate)
	}
	return true, nil
}

// Reset closes the circuit so the next snapshot is processed again
func (r *Runner) Reset() {
	if r.breaker == nil {
		return
	}
	r.breaker.Reset()
	r.logger.Info().Str("breaker", r.breaker.Name()).Msg("Processor circuit reset")
}

func (r *Runner) run(ctx context.Context, filename string, ids session.IDs, sink LineFunc) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.argv[1:]...), Args(filename, ids)...)
	cmd := exec.CommandContext(ctx, r.argv[0], args...)
	cmd.WaitDelay = 5 * time.Second

	stdout := &lineWriter{stream: Stdout, sink: sink}
	stderr := &lineWriter{stream: Stderr, sink: sink}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger := r.logger.With().Str("file", filename).Bool("resume", ids.Complete()).Logger()
	logger.Info().Str("command", r.argv[0]).Msg("Starting processor")

	start := time.Now()
	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		} else {
			err = fmt.Errorf("processor failed: %w", err)
		}
		if r.breaker != nil {
			observability.IncrementCircuitBreakerFailures(r.breaker.Name())
		}
		observability.RecordPipelineRun("error", elapsed)
		observability.RecordError("pipeline_failed", "pipeline")
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Processor run failed")
		return err
	}

	observability.RecordPipelineRun("success", elapsed)
	logger.Info().Dur("elapsed", elapsed).Msg("Processor finished")
	return nil
}

// lineWriter splits a byte stream into lines for a LineFunc
type lineWriter struct {
	stream string
	sink   LineFunc
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline
func (w *lineWriter) Flush() {
	if w.buf.Len() > 0 {
		w.emit(strings.TrimRight(w.buf.String(), "\r"))
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	if w.sink != nil {
		w.sink(w.stream, line)
	}
}
