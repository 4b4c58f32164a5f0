package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
)

// ReplaySource plays an interleaved WAV file back as if it were a device
type ReplaySource struct {
	data     []byte
	off      int
	realtime bool
	pace     time.Duration
	next     time.Time
}

// NewReplayOpener returns an Opener that reads chunks from a WAV file.
// With realtime set each Read is paced to the chunk duration.
func NewReplayOpener(path string, realtime bool) Opener {
	return OpenerFunc(func(format audio.Format) (Source, error) {
		samples, info, err := audio.ReadWAV(path)
		if err != nil {
			return nil, fmt.Errorf("%w: replay %s: %v", ErrDeviceNotFound, path, err)
		}
		if info.Channels != format.Channels {
			return nil, fmt.Errorf("%w: replay %s has %d channels, capture expects %d",
				ErrDeviceNotFound, path, info.Channels, format.Channels)
		}
		if info.SampleRate != format.SampleRate {
			return nil, fmt.Errorf("%w: replay %s is %d Hz, capture expects %d Hz",
				ErrDeviceNotFound, path, info.SampleRate, format.SampleRate)
		}

		data := make([]byte, len(samples)*audio.BytesPerSample)
		audio.SamplesToBytes(data, samples)
		return &ReplaySource{
			data:     data,
			realtime: realtime,
			pace:     format.ChunkDuration(),
		}, nil
	})
}

// Read copies the next chunk. A trailing partial chunk is dropped.
func (s *ReplaySource) Read(chunk []byte) error {
	if s.off+len(chunk) > len(s.data) {
		return io.EOF
	}
	if s.realtime {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			time.Sleep(wait)
		}
		s.next = s.next.Add(s.pace)
	}
	copy(chunk, s.data[s.off:])
	s.off += len(chunk)
	return nil
}

// Close releases the decoded file
func (s *ReplaySource) Close() error {
	s.data = nil
	return nil
}
