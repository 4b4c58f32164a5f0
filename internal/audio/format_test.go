package audio

import (
	"testing"
	"time"
)

func TestFormat_ChunksFor(t *testing.T) {
	f := DefaultFormat()

	tests := []struct {
		seconds int
		want    int
	}{
		{0, 0},
		{-5, 0},
		{1, 44},   // 43.07 rounds up
		{10, 431}, // 430.66 rounds up
		{60, 2584},
	}

	for _, tt := range tests {
		if got := f.ChunksFor(tt.seconds); got != tt.want {
			t.Errorf("ChunksFor(%d): expected %d, got %d", tt.seconds, tt.want, got)
		}
	}

	exact := Format{SampleRate: 8000, Channels: 1, FramesPerChunk: 160}
	if got := exact.ChunksFor(2); got != 100 {
		t.Errorf("Expected exact multiple not to round up, got %d", got)
	}
}

func TestFormat_Validate(t *testing.T) {
	if err := DefaultFormat().Validate(); err != nil {
		t.Errorf("Expected default format to be valid, got %v", err)
	}

	bad := []Format{
		{SampleRate: 0, Channels: 3, FramesPerChunk: 1024},
		{SampleRate: 44100, Channels: 0, FramesPerChunk: 1024},
		{SampleRate: 44100, Channels: 3, FramesPerChunk: -1},
	}
	for _, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("Expected %+v to be invalid", f)
		}
	}
}

func TestFormat_Durations(t *testing.T) {
	f := Format{SampleRate: 8000, Channels: 2, FramesPerChunk: 160}

	if f.ChunkBytes() != 640 {
		t.Errorf("Expected 640 bytes per chunk, got %d", f.ChunkBytes())
	}
	if f.ChunkDuration() != 20*time.Millisecond {
		t.Errorf("Expected 20ms chunks, got %v", f.ChunkDuration())
	}
	if f.SamplesDuration(4000) != 500*time.Millisecond {
		t.Errorf("Expected 500ms for 4000 samples, got %v", f.SamplesDuration(4000))
	}
}
