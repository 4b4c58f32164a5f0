package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidChannel is returned when the target channel is outside the frame
var ErrInvalidChannel = errors.New("invalid channel")

// ExtractChannel returns one channel of an interleaved 16-bit little-endian chunk.
// For every frame it yields sample[frame*channels+target].
func ExtractChannel(chunk []byte, channels, target int) ([]int16, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if target < 0 || target >= channels {
		return nil, fmt.Errorf("%w: index %d with %d channels", ErrInvalidChannel, target, channels)
	}

	frameBytes := channels * BytesPerSample
	if len(chunk)%frameBytes != 0 {
		return nil, fmt.Errorf("chunk length %d is not a multiple of frame size %d", len(chunk), frameBytes)
	}

	frames := len(chunk) / frameBytes
	out := make([]int16, frames)
	off := target * BytesPerSample
	for i := 0; i < frames; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(chunk[off:]))
		off += frameBytes
	}
	return out, nil
}

// Downmix extracts the target channel from each chunk and concatenates the result
func Downmix(chunks [][]byte, channels, target int) ([]int16, error) {
	var out []int16
	if channels > 0 {
		total := 0
		for _, c := range chunks {
			total += len(c)
		}
		out = make([]int16, 0, total/(channels*BytesPerSample))
	}

	for i, c := range chunks {
		mono, err := ExtractChannel(c, channels, target)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out = append(out, mono...)
	}
	return out, nil
}

// SamplesToBytes encodes samples as little-endian 16-bit PCM into dst.
// dst must hold at least len(samples)*2 bytes.
func SamplesToBytes(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(s))
	}
}
