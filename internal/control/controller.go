// Package control drives the recorder from the tray and the HTTP API.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/capture"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
	"github.com/jiggo089/conference-ai-assistant/internal/pipeline"
	"github.com/jiggo089/conference-ai-assistant/internal/session"
)

// Recorder is the capture side of the controller
type Recorder interface {
	Start() error
	Stop(seconds int) (*capture.Snapshot, error)
	Export(seconds int) (*capture.Snapshot, error)
	Status() capture.Status
}

// Pipeline runs the downstream processor for one snapshot.
// Reset lets a held-back pipeline accept runs again.
type Pipeline interface {
	Run(ctx context.Context, filename string, ids session.IDs, sink pipeline.LineFunc) error
	Reset()
}

// LogSink is the user-facing log view
type LogSink interface {
	Publish(source, text string)
}

// Options tunes the controller
type Options struct {
	DefaultSeconds int  // Used when a stop request names no length
	SkipSilent     bool // Do not hand off snapshots without detected speech
}

// Result describes what happened to a saved snapshot
type Result struct {
	Snapshot   *capture.Snapshot `json:"snapshot"`
	Dispatched bool              `json:"dispatched"`
	Reason     string            `json:"reason,omitempty"` // Why the snapshot was not dispatched
}

// Status combines recorder and pipeline state
type Status struct {
	Recorder  capture.Status `json:"recorder"`
	Pipelines int32          `json:"pipelines_running"`
	Session   session.IDs    `json:"session"`
}

// Controller serializes user commands and hands snapshots to the pipeline
type Controller struct {
	rec    Recorder
	store  *session.Store
	pipe   Pipeline
	log    LogSink
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex // one command at a time
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Int32
	notify  atomic.Pointer[func(title, message string)]
}

// NewController wires the recorder, session store, pipeline and log view
func NewController(rec Recorder, store *session.Store, pipe Pipeline, log LogSink, opts Options) *Controller {
	if opts.DefaultSeconds <= 0 {
		opts.DefaultSeconds = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		rec:    rec,
		store:  store,
		pipe:   pipe,
		log:    log,
		opts:   opts,
		logger: observability.WithComponent("control"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnNotify registers a desktop notification hook
func (c *Controller) OnNotify(fn func(title, message string)) {
	c.notify.Store(&fn)
}

// DefaultSeconds returns the snapshot length used when none is given
func (c *Controller) DefaultSeconds() int {
	return c.opts.DefaultSeconds
}

func (c *Controller) logf(format string, args ...any) {
	c.log.Publish("recorder", fmt.Sprintf(format, args...))
}

func (c *Controller) alert(title, message string) {
	if fn := c.notify.Load(); fn != nil && *fn != nil {
		(*fn)(title, message)
	}
}

// Start begins recording
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec.Status().State == capture.StateRecording.String() {
		c.logf("Already recording")
		return nil
	}

	c.logf("Recording...")
	if err := c.rec.Start(); err != nil {
		c.logf("Error: %v", err)
		c.alert("Recording failed", err.Error())
		return err
	}
	return nil
}

// Stop ends recording, saves the last seconds and dispatches the file
func (c *Controller) Stop(seconds int) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds <= 0 {
		seconds = c.opts.DefaultSeconds
	}
	c.logf("Stopping recording, saving last %d sec...", seconds)

	snap, err := c.rec.Stop(seconds)
	if err != nil {
		return nil, c.exportFailed(err)
	}
	if snap == nil {
		c.logf("Not recording")
		return &Result{Reason: "not recording"}, nil
	}
	return c.saved(snap), nil
}

// Export saves the last seconds of the stopped recording again
func (c *Controller) Export(seconds int) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds <= 0 {
		seconds = c.opts.DefaultSeconds
	}
	c.logf("Exporting last %d sec...", seconds)

	snap, err := c.rec.Export(seconds)
	if err != nil {
		return nil, c.exportFailed(err)
	}
	return c.saved(snap), nil
}

func (c *Controller) exportFailed(err error) error {
	c.logf("Error: %v", err)
	if errors.Is(err, capture.ErrFileWrite) {
		c.logf("The recording is kept, export again to retry")
	}
	c.alert("Save failed", err.Error())
	return err
}

func (c *Controller) saved(snap *capture.Snapshot) *Result {
	c.logf("Recording saved as %s", snap.Path)
	c.alert("Recording saved", snap.Path)

	res := &Result{Snapshot: snap}
	switch {
	case snap.Empty():
		res.Reason = "snapshot is empty"
	case c.opts.SkipSilent && !snap.Level.HasSpeech():
		res.Reason = "no speech detected"
	}
	if res.Reason != "" {
		c.logf("Not processing %s: %s", snap.Path, res.Reason)
		return res
	}

	ids, _, err := c.store.Load()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Session file unreadable, starting a new thread")
		ids = session.IDs{}
	}

	c.dispatch(snap.Path, ids)
	res.Dispatched = true
	return res
}

func (c *Controller) dispatch(path string, ids session.IDs) {
	c.wg.Add(1)
	c.running.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Add(-1)

		err := c.pipe.Run(c.ctx, path, ids, func(stream, line string) {
			c.log.Publish(stream, line)
		})
		if err != nil {
			c.logf("Processing failed: %v", err)
			c.alert("Processing failed", err.Error())
		}
	}()
}

// Reset forgets the assistant conversation and lets the processor run again
// after repeated failures
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pipe.Reset()
	if err := c.store.Reset(); err != nil {
		c.logf("Error: %v", err)
		return err
	}
	c.logf("Thread ID reset")
	return nil
}

// RecorderFailed reports a capture loop failure to the user
func (c *Controller) RecorderFailed(err error) {
	c.logf("Error: %v", err)
	c.logf("Recording stopped, save to keep the audio captured so far")
	c.alert("Recording interrupted", err.Error())
}

// Status is safe to call from any goroutine
func (c *Controller) Status() Status {
	st := Status{
		Recorder:  c.rec.Status(),
		Pipelines: c.running.Load(),
	}
	if ids, found, err := c.store.Load(); err == nil && found {
		st.Session = ids
	}
	return st
}

// Wait blocks until every dispatched pipeline has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels running pipelines and waits for them
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
