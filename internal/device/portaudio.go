// Package device opens PortAudio inputs for the capture loop.
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
	"github.com/jiggo089/conference-ai-assistant/internal/capture"
)

// Initialize starts PortAudio. The returned function terminates it.
func Initialize() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	return func() { _ = portaudio.Terminate() }, nil
}

// Lookup finds an input device by name. An empty name selects the default input.
func Lookup(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", capture.ErrDeviceNotFound, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.EqualFold(dev.Name, name) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", capture.ErrDeviceNotFound, name)
}

// InputNames lists every device that can record
func InputNames() ([]string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			names = append(names, dev.Name)
		}
	}
	return names, nil
}

// Opener returns a capture.Opener for the named input device
func Opener(name string) capture.Opener {
	return capture.OpenerFunc(func(format audio.Format) (capture.Source, error) {
		dev, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if dev.MaxInputChannels < format.Channels {
			return nil, fmt.Errorf("%w: %q has %d input channels, capture needs %d",
				capture.ErrDeviceNotFound, dev.Name, dev.MaxInputChannels, format.Channels)
		}

		buf := make([]int16, format.FramesPerChunk*format.Channels)
		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   dev,
				Channels: format.Channels,
				Latency:  dev.DefaultLowInputLatency,
			},
			SampleRate:      float64(format.SampleRate),
			FramesPerBuffer: format.FramesPerChunk,
		}

		stream, err := portaudio.OpenStream(params, buf)
		if err != nil {
			return nil, fmt.Errorf("%w: open %q: %v", capture.ErrDeviceNotFound, dev.Name, err)
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return nil, fmt.Errorf("%w: start %q: %v", capture.ErrDeviceNotFound, dev.Name, err)
		}
		return &input{stream: stream, buf: buf}, nil
	})
}

// input reads one interleaved chunk per blocking stream read
type input struct {
	stream *portaudio.Stream
	buf    []int16
}

func (in *input) Read(chunk []byte) error {
	if len(chunk) != len(in.buf)*audio.BytesPerSample {
		return fmt.Errorf("chunk of %d bytes does not match stream buffer of %d samples", len(chunk), len(in.buf))
	}
	if err := in.stream.Read(); err != nil {
		return err
	}
	audio.SamplesToBytes(chunk, in.buf)
	return nil
}

func (in *input) Close() error {
	return errors.Join(in.stream.Stop(), in.stream.Close())
}
