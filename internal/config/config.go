package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jiggo089/conference-ai-assistant/internal/resilience"
)

// Config holds all configuration for the recorder process
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	ControlEnabled bool   `envconfig:"CONTROL_ENABLED" default:"true"` // Serve the local HTTP/WebSocket control API
	TrayEnabled    bool   `envconfig:"TRAY_ENABLED" default:"true"`    // Show the system tray menu

	// Audio input configuration
	AudioDevice         string `envconfig:"AUDIO_DEVICE" default:"Aggregate Device"` // Input device name; empty selects the default input
	AudioChannels       int    `envconfig:"AUDIO_CHANNELS" default:"3"`
	AudioTargetChannel  int    `envconfig:"AUDIO_TARGET_CHANNEL" default:"2"` // Zero-based channel written to the snapshot
	AudioSampleRate     int    `envconfig:"AUDIO_SAMPLE_RATE" default:"44100"`
	AudioFramesPerChunk int    `envconfig:"AUDIO_FRAMES_PER_CHUNK" default:"1024"`

	// Buffer and snapshot configuration
	BufferMaxSeconds int    `envconfig:"BUFFER_MAX_SECONDS" default:"60"`
	SnapshotPresets  string `envconfig:"SNAPSHOT_PRESETS" default:"10,20,30,60"` // Comma separated seconds shown in the tray
	OutputDir        string `envconfig:"OUTPUT_DIR" default:"."`
	ReplayFile       string `envconfig:"REPLAY_FILE" default:""` // Capture from a WAV file instead of a device

	// Speech detection on snapshots
	VADEnergyThreshold  float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"`
	VADFrameSize        int     `envconfig:"VAD_FRAME_SIZE" default:"1024"`
	VADSilenceFrames    int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`
	SkipSilentSnapshots bool    `envconfig:"SKIP_SILENT_SNAPSHOTS" default:"false"`

	// Downstream processor
	ProcessorCommand string `envconfig:"PROCESSOR_COMMAND" default:"conference-processor"`
	SessionFile      string `envconfig:"SESSION_FILE" default:"session_ids.txt"`
	PipelineTimeout  int    `envconfig:"PIPELINE_TIMEOUT" default:"300"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"3"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	LogHistory     int    `envconfig:"LOG_HISTORY" default:"500"`      // Lines kept for new log view clients
	LogFile        string `envconfig:"LOG_FILE" default:""`            // Also write logs to this rotated file
	LogFileMaxMB   int    `envconfig:"LOG_FILE_MAX_MB" default:"10"`   // Rotate after this many megabytes
	LogFileBackups int    `envconfig:"LOG_FILE_BACKUPS" default:"3"`   // Rotated files kept
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// ProcessorConfig holds configuration for the transcription and assistant pipeline
type ProcessorConfig struct {
	// OpenAI configuration
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`

	// Transcription configuration
	TranscriptionProvider string `envconfig:"TRANSCRIPTION_PROVIDER" default:"openai"` // openai or deepgram
	WhisperModel          string `envconfig:"WHISPER_MODEL" default:"whisper-1"`
	DeepgramAPIKey        string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel         string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage      string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	DeepgramHost          string `envconfig:"DEEPGRAM_HOST" default:""` // Self-hosted endpoint; empty uses api.deepgram.com

	// Assistant configuration
	AssistantModel        string `envconfig:"ASSISTANT_MODEL" default:"gpt-4-turbo"`
	AssistantName         string `envconfig:"ASSISTANT_NAME" default:"Interview Assistant"`
	AssistantDescription  string `envconfig:"ASSISTANT_DESCRIPTION" default:"Answers questions heard during a conference call"`
	AssistantInstructions string `envconfig:"ASSISTANT_INSTRUCTIONS" default:"Answer the question in the transcript concisely."`
	RunPollInterval       int    `envconfig:"RUN_POLL_INTERVAL" default:"500"` // milliseconds
	RunTimeout            int    `envconfig:"RUN_TIMEOUT" default:"120"`       // seconds

	SessionFile string `envconfig:"SESSION_FILE" default:"session_ids.txt"`

	// Resilience configuration
	RetryMaxAttempts    int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`      // Maximum attempts per API call
	RetryInitialBackoff int `envconfig:"RETRY_INITIAL_BACKOFF" default:"500"` // Initial backoff in milliseconds

	// Observability configuration
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads recorder configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads recorder configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the audio layout and buffer settings
func (c *Config) Validate() error {
	var errs []error
	if c.AudioChannels <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_CHANNELS must be positive, got %d", c.AudioChannels))
	}
	if c.AudioTargetChannel < 0 || c.AudioTargetChannel >= c.AudioChannels {
		errs = append(errs, fmt.Errorf("AUDIO_TARGET_CHANNEL %d is outside 0..%d", c.AudioTargetChannel, c.AudioChannels-1))
	}
	if c.AudioSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate))
	}
	if c.AudioFramesPerChunk <= 0 {
		errs = append(errs, fmt.Errorf("AUDIO_FRAMES_PER_CHUNK must be positive, got %d", c.AudioFramesPerChunk))
	}
	if c.BufferMaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("BUFFER_MAX_SECONDS must be positive, got %d", c.BufferMaxSeconds))
	}
	if c.ProcessorCommand == "" {
		errs = append(errs, errors.New("PROCESSOR_COMMAND is required"))
	}
	if _, err := c.Presets(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Presets parses SNAPSHOT_PRESETS into snapshot lengths in seconds
func (c *Config) Presets() ([]int, error) {
	var presets []int
	for _, field := range strings.Split(c.SnapshotPresets, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SNAPSHOT_PRESETS: invalid preset %q", field)
		}
		presets = append(presets, n)
	}
	if len(presets) == 0 {
		return nil, errors.New("SNAPSHOT_PRESETS must list at least one preset")
	}
	return presets, nil
}

// LoadProcessor reads processor configuration, loading .env first
func LoadProcessor() (*ProcessorConfig, error) {
	_ = godotenv.Load()
	return LoadProcessorFromEnv()
}

// LoadProcessorFromEnv reads processor configuration from the environment only
func LoadProcessorFromEnv() (*ProcessorConfig, error) {
	var cfg ProcessorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	switch cfg.TranscriptionProvider {
	case "openai":
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY is required when TRANSCRIPTION_PROVIDER=deepgram")
		}
	default:
		return nil, fmt.Errorf("unknown TRANSCRIPTION_PROVIDER %q (want openai or deepgram)", cfg.TranscriptionProvider)
	}
	if cfg.RunPollInterval <= 0 {
		return nil, fmt.Errorf("RUN_POLL_INTERVAL must be positive, got %d", cfg.RunPollInterval)
	}

	return &cfg, nil
}

// RetryPolicy maps RETRY_* settings onto a retry configuration
func (c *ProcessorConfig) RetryPolicy() *resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	if c.RetryMaxAttempts > 0 {
		retry.MaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(c.RetryInitialBackoff) * time.Millisecond
	}
	return retry
}
