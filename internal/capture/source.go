package capture

import (
	"errors"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
)

var (
	// ErrDeviceNotFound is returned by Start when the input device cannot be opened
	ErrDeviceNotFound = errors.New("audio input device not found")
	// ErrReadFailure wraps a device read error that ended the capture loop
	ErrReadFailure = errors.New("audio read failed")
	// ErrFileWrite wraps a failure to write a snapshot; the buffer is left intact
	ErrFileWrite = errors.New("snapshot write failed")
	// ErrRecording is returned by Export while the capture loop is running
	ErrRecording = errors.New("recorder is recording")
)

// Source is an opened audio input.
// Read blocks until chunk is completely filled with interleaved 16-bit frames.
// A finite source returns io.EOF once it has no whole chunk left.
type Source interface {
	Read(chunk []byte) error
	Close() error
}

// Opener opens an input source for a capture format
type Opener interface {
	Open(format audio.Format) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(format audio.Format) (Source, error)

// Open calls f(format)
func (f OpenerFunc) Open(format audio.Format) (Source, error) {
	return f(format)
}
