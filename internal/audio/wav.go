package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file is not a readable PCM WAV file
var ErrNotWAV = errors.New("not a valid WAV file")

// WAVInfo describes the layout of a PCM WAV file
type WAVInfo struct {
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	BitsPerSample int `json:"bits_per_sample"`
}

// WriteMonoWAV writes samples as a single-channel 16-bit PCM WAV file.
// An empty sample slice produces a valid header-only file.
func WriteMonoWAV(path string, samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return f.Close()
}

// ReadWAV decodes a 16-bit PCM WAV file into interleaved samples
func ReadWAV(path string) ([]int16, WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return nil, WAVInfo{}, fmt.Errorf("%w: %s: %v", ErrNotWAV, path, err)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return nil, WAVInfo{}, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}

	info := WAVInfo{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}
	if info.BitsPerSample != 16 {
		return nil, info, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}

	// Header-only files carry an empty data chunk
	if dec.PCMLen() == 0 {
		return []int16{}, info, nil
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, info, fmt.Errorf("failed to read PCM data: %w", err)
	}

	samples := make([]int16, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = int16(v)
	}
	return samples, info, nil
}
