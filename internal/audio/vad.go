package audio

import "math"

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per analysis frame
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       1024, // ~23ms at 44.1kHz
	}
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{
		config: config,
	}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// Level summarizes the loudness of a mono snapshot
type Level struct {
	RMS          float64 `json:"rms"`
	Peak         int     `json:"peak"`
	SpeechFrames int     `json:"speech_frames"`  // frames above the energy threshold
	Segments     int     `json:"segments"`       // utterances separated by at least SilenceFrames quiet frames
	EndsInSpeech bool    `json:"ends_in_speech"` // the last utterance was still open at the end
}

// HasSpeech reports whether any analysis frame crossed the speech threshold
func (l Level) HasSpeech() bool {
	return l.SpeechFrames > 0
}

// Analyze walks samples frame by frame through a fresh detector.
// A pause shorter than SilenceFrames frames does not end an utterance, so it
// neither adds a segment nor closes the trailing one.
func Analyze(samples []int16, config *VADConfig) Level {
	vad := NewVADDetector(config)
	frame := vad.config.FrameSize
	if frame <= 0 {
		frame = len(samples)
	}

	level := Level{
		RMS:  CalculateRMS(samples),
		Peak: Peak(samples),
	}
	for start := 0; start < len(samples); start += frame {
		end := start + frame
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[start:end]
		if CalculateRMS(window) > vad.config.EnergyThreshold {
			level.SpeechFrames++
		}
		if _, started, _ := vad.ProcessFrame(window); started {
			level.Segments++
		}
	}
	level.EndsInSpeech = vad.IsSpeaking()
	return level
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
