package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/jiggo089/conference-ai-assistant/internal/control"
)

// State selects the tray icon colour
type State int

const (
	StateIdle       State = iota // gray: waiting
	StateRecording               // red: capture loop running
	StateProcessing              // amber: processor running
	StateError                   // orange: last operation failed
)

var icons map[State][]byte

func initIcons() {
	icons = map[State][]byte{
		StateIdle:       circleIcon(130, 130, 130),
		StateRecording:  circleIcon(220, 50, 50),
		StateProcessing: circleIcon(230, 170, 0),
		StateError:      circleIcon(255, 100, 0),
	}
}

// stateFor picks the icon for a controller status
func stateFor(st control.Status) State {
	switch {
	case st.Recorder.State == "recording":
		return StateRecording
	case st.Pipelines > 0:
		return StateProcessing
	case st.Recorder.LastError != "":
		return StateError
	}
	return StateIdle
}

func circleIcon(r, g, b uint8) []byte {
	const size = 22
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	outer := float64(size)/2 - 1
	inner := outer - 1.2 // anti-alias edge width

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist <= inner {
				img.SetNRGBA(x, y, color.NRGBA{r, g, b, 255})
			} else if dist <= outer {
				alpha := uint8(255 * (outer - dist) / (outer - inner))
				img.SetNRGBA(x, y, color.NRGBA{r, g, b, alpha})
			}
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
