package capture

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
)

// FilenameLayout names snapshot files after the local time of export
const FilenameLayout = "output_2006-01-02 15.04.05.wav"

// State of the capture loop
type State int32

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Options configures a Recorder
type Options struct {
	Format        audio.Format
	TargetChannel int    // Channel written to snapshots
	MaxSeconds    int    // Rolling buffer length
	OutputDir     string // Directory for snapshot files
	VAD           *audio.VADConfig
	Now           func() time.Time
}

// Snapshot describes one exported file
type Snapshot struct {
	Path      string        `json:"path"`
	CaptureID string        `json:"capture_id"`
	Seconds   int           `json:"seconds"`  // Requested length
	Chunks    int           `json:"chunks"`   // Chunks actually exported
	Samples   int           `json:"samples"`  // Mono samples written
	Duration  time.Duration `json:"duration"` // Length of the written audio
	Level     audio.Level   `json:"level"`
}

// Empty reports whether the snapshot holds no audio
func (s *Snapshot) Empty() bool {
	return s == nil || s.Samples == 0
}

// Status is a point-in-time view of the recorder
type Status struct {
	State           string  `json:"state"`
	CaptureID       string  `json:"capture_id,omitempty"`
	ChunksCaptured  int64   `json:"chunks_captured"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	LastFile        string  `json:"last_file,omitempty"`
	LastError       string  `json:"last_error,omitempty"`
}

// Recorder runs the capture loop into a rolling buffer and exports snapshots.
//
// The ring has no lock. Only the capture goroutine pushes, and Stop joins
// that goroutine (via done) before it snapshots or releases the device, so
// no chunk can be pushed once the ring is read. Export is refused while
// recording for the same reason.
type Recorder struct {
	opts   Options
	opener Opener
	ring   *audio.ChunkRing
	logger zerolog.Logger

	mu      sync.Mutex // serializes Start, Stop and Export
	state   atomic.Int32
	stop    atomic.Bool
	pushed  atomic.Int64
	done    chan struct{}
	source  Source
	metrics *observability.Metrics

	infoMu    sync.RWMutex
	captureID string
	lastFile  string
	err       error
	onFailure func(error)
}

// NewRecorder creates an idle recorder
func NewRecorder(opener Opener, opts Options) (*Recorder, error) {
	if opener == nil {
		return nil, errors.New("recorder requires an opener")
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, err
	}
	if opts.TargetChannel < 0 || opts.TargetChannel >= opts.Format.Channels {
		return nil, fmt.Errorf("%w: target %d with %d channels", audio.ErrInvalidChannel, opts.TargetChannel, opts.Format.Channels)
	}
	if opts.MaxSeconds <= 0 {
		return nil, fmt.Errorf("buffer length must be positive, got %d seconds", opts.MaxSeconds)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.VAD == nil {
		opts.VAD = audio.DefaultVADConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Recorder{
		opts:   opts,
		opener: opener,
		ring:   audio.NewChunkRingForFormat(opts.Format, opts.MaxSeconds),
		logger: observability.WithComponent("capture"),
	}, nil
}

// OnFailure registers a hook called from the capture goroutine when a read
// error ends the loop. The hook must not call Stop synchronously.
func (r *Recorder) OnFailure(fn func(error)) {
	r.infoMu.Lock()
	r.onFailure = fn
	r.infoMu.Unlock()
}

// State returns the current state of the capture loop
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// Start opens the input and spawns the capture loop. It is a no-op while recording.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateRecording {
		return nil
	}

	captureID := uuid.New().String()
	logger := r.logger.With().Str("capture_id", captureID).Logger()

	src, err := r.opener.Open(r.opts.Format)
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			err = fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
		observability.RecordError("device_not_found", "capture")
		logger.Error().Err(err).Msg("Failed to open audio input")
		r.setErr(err)
		return err
	}

	// The buffer survives a failed open and is cleared only once the input is live
	r.ring.Clear()
	r.stop.Store(false)
	r.pushed.Store(0)

	r.infoMu.Lock()
	r.captureID = captureID
	r.err = nil
	r.infoMu.Unlock()

	r.source = src
	r.done = make(chan struct{})
	r.metrics = observability.NewCaptureMetrics(captureID)
	r.metrics.RecordCaptureStart()
	r.state.Store(int32(StateRecording))

	go r.loop(src, r.done, r.metrics, logger)

	logger.Info().
		Int("sample_rate", r.opts.Format.SampleRate).
		Int("channels", r.opts.Format.Channels).
		Int("capacity_chunks", r.ring.Cap()).
		Msg("Recording started")
	return nil
}

func (r *Recorder) loop(src Source, done chan struct{}, metrics *observability.Metrics, logger zerolog.Logger) {
	defer close(done)

	chunk := make([]byte, r.opts.Format.ChunkBytes())
	for !r.stop.Load() {
		if err := src.Read(chunk); err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Int64("chunks", r.pushed.Load()).Msg("Input source exhausted")
				return
			}
			r.fail(fmt.Errorf("%w: %v", ErrReadFailure, err), metrics, logger)
			return
		}
		if err := r.ring.Push(chunk); err != nil {
			r.fail(fmt.Errorf("%w: %v", ErrReadFailure, err), metrics, logger)
			return
		}
		r.pushed.Add(1)
		metrics.RecordChunk(r.ring.Len())
	}
}

func (r *Recorder) fail(err error, metrics *observability.Metrics, logger zerolog.Logger) {
	metrics.RecordError("read_failure", "capture")
	logger.Error().Err(err).Int64("chunks", r.pushed.Load()).Msg("Capture loop stopped on read error")

	r.infoMu.Lock()
	r.err = err
	hook := r.onFailure
	r.infoMu.Unlock()

	if hook != nil {
		hook(err)
	}
}

// Stop ends the capture loop, exports the last seconds of audio and releases
// the input. It returns a nil snapshot and nil error while idle.
func (r *Recorder) Stop(seconds int) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateIdle {
		return nil, nil
	}

	r.stop.Store(true)
	<-r.done

	snap, err := r.export(seconds)

	if cerr := r.source.Close(); cerr != nil {
		r.logger.Warn().Err(cerr).Msg("Failed to release audio input")
	}
	r.source = nil
	r.metrics.RecordCaptureEnd()
	r.state.Store(int32(StateIdle))

	return snap, err
}

// Export writes the last seconds of the frozen buffer again. It is the retry
// path after a failed write and is refused while recording.
func (r *Recorder) Export(seconds int) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() == StateRecording {
		return nil, ErrRecording
	}
	return r.export(seconds)
}

// export must only run with the capture loop joined.
// Requests longer than the buffer are clamped to it.
func (r *Recorder) export(seconds int) (*Snapshot, error) {
	if seconds > r.opts.MaxSeconds {
		seconds = r.opts.MaxSeconds
	}
	metrics := r.metrics
	if metrics == nil {
		metrics = observability.NewCaptureMetrics(r.CaptureID())
	}
	metrics.RecordExportStart()

	chunks := r.ring.Snapshot(r.opts.Format.ChunksFor(seconds))
	mono, err := audio.Downmix(chunks, r.opts.Format.Channels, r.opts.TargetChannel)
	if err != nil {
		metrics.RecordExportEnd(false, 0)
		return nil, err
	}

	path := filepath.Join(r.opts.OutputDir, r.opts.Now().Format(FilenameLayout))
	snap := &Snapshot{
		Path:      path,
		CaptureID: r.CaptureID(),
		Seconds:   seconds,
		Chunks:    len(chunks),
		Samples:   len(mono),
		Duration:  r.opts.Format.SamplesDuration(len(mono)),
		Level:     audio.Analyze(mono, r.opts.VAD),
	}

	if err := audio.WriteMonoWAV(path, mono, r.opts.Format.SampleRate); err != nil {
		err = fmt.Errorf("%w: %v", ErrFileWrite, err)
		metrics.RecordExportEnd(false, 0)
		metrics.RecordError("file_write", "capture")
		r.setErr(err)
		r.logger.Error().Err(err).Str("capture_id", snap.CaptureID).Msg("Snapshot export failed")
		return nil, err
	}
	metrics.RecordExportEnd(true, snap.Duration)

	r.infoMu.Lock()
	r.lastFile = path
	r.infoMu.Unlock()

	r.logger.Info().
		Str("capture_id", snap.CaptureID).
		Str("file", path).
		Int("chunks", snap.Chunks).
		Dur("duration", snap.Duration).
		Bool("speech", snap.Level.HasSpeech()).
		Bool("ends_in_speech", snap.Level.EndsInSpeech).
		Msg("Snapshot saved")
	return snap, nil
}

func (r *Recorder) setErr(err error) {
	r.infoMu.Lock()
	r.err = err
	r.infoMu.Unlock()
}

// Err returns the last error reported by the recorder
func (r *Recorder) Err() error {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.err
}

// CaptureID returns the id of the current or most recent capture session
func (r *Recorder) CaptureID() string {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.captureID
}

// Format returns the capture format
func (r *Recorder) Format() audio.Format {
	return r.opts.Format
}

// Status is safe to call from any goroutine
func (r *Recorder) Status() Status {
	buffered := r.pushed.Load()
	if c := int64(r.ring.Cap()); buffered > c {
		buffered = c
	}

	r.infoMu.RLock()
	defer r.infoMu.RUnlock()

	st := Status{
		State:           r.State().String(),
		CaptureID:       r.captureID,
		ChunksCaptured:  r.pushed.Load(),
		BufferedSeconds: float64(buffered) * float64(r.opts.Format.FramesPerChunk) / float64(r.opts.Format.SampleRate),
		LastFile:        r.lastFile,
	}
	if r.err != nil {
		st.LastError = r.err.Error()
	}
	return st
}
