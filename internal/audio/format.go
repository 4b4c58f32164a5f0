package audio

import (
	"fmt"
	"time"
)

// BytesPerSample is the width of one signed 16-bit PCM sample
const BytesPerSample = 2

// Format describes the fixed capture format of the input device
type Format struct {
	SampleRate     int // Frames per second
	Channels       int // Interleaved channels per frame
	FramesPerChunk int // Frames delivered by a single device read
}

// DefaultFormat returns the capture format of the conference aggregate device
func DefaultFormat() Format {
	return Format{
		SampleRate:     44100,
		Channels:       3,
		FramesPerChunk: 1024,
	}
}

// Validate checks that every field of the format is usable
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", f.Channels)
	}
	if f.FramesPerChunk <= 0 {
		return fmt.Errorf("frames per chunk must be positive, got %d", f.FramesPerChunk)
	}
	return nil
}

// ChunkBytes returns the size in bytes of one interleaved chunk
func (f Format) ChunkBytes() int {
	return f.FramesPerChunk * f.Channels * BytesPerSample
}

// ChunksFor returns ceil(SampleRate / FramesPerChunk * seconds).
// Computed in integers so that exact multiples never round up.
func (f Format) ChunksFor(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	total := f.SampleRate * seconds
	return (total + f.FramesPerChunk - 1) / f.FramesPerChunk
}

// ChunkDuration returns the wall-clock span of one chunk
func (f Format) ChunkDuration() time.Duration {
	return time.Duration(f.FramesPerChunk) * time.Second / time.Duration(f.SampleRate)
}

// SamplesDuration returns the playback length of n mono samples
func (f Format) SamplesDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}
