package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jiggo089/conference-ai-assistant/internal/audio"
	"github.com/jiggo089/conference-ai-assistant/internal/config"
)

func testConfig(baseURL string) *config.ProcessorConfig {
	return &config.ProcessorConfig{
		OpenAIAPIKey:          "test-key",
		OpenAIBaseURL:         baseURL,
		TranscriptionProvider: "openai",
		WhisperModel:          "whisper-1",
		DeepgramAPIKey:        "test-deepgram-key",
		DeepgramModel:         "nova-2",
		DeepgramLanguage:      "en",
		RetryMaxAttempts:      3,
		RetryInitialBackoff:   1,
	}
}

func writeTestWAV(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output.wav")
	if err := audio.WriteMonoWAV(path, make([]int16, samples), 44100); err != nil {
		t.Fatalf("WriteMonoWAV failed: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"openai", "openai", false},
		{"", "openai", false},
		{"deepgram", "deepgram", false},
		{"other", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig("")
			cfg.TranscriptionProvider = tt.provider
			tr, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tr.Name() != tt.want {
				t.Errorf("Expected provider %q, got %q", tt.want, tr.Name())
			}
		})
	}
}

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Expected multipart upload: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("Expected model whisper-1, got %q", model)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"What is your biggest weakness?"}`)
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(testConfig(srv.URL + "/v1"))
	res, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "What is your biggest weakness?" {
		t.Errorf("Unexpected text %q", res.Text)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", calls.Load())
	}
}

func TestWhisperTranscriber_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		fmt.Fprint(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(testConfig(srv.URL + "/v1"))
	res, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "ok" || calls.Load() != 3 {
		t.Errorf("Expected success on third attempt, got text=%q calls=%d", res.Text, calls.Load())
	}
}

func TestWhisperTranscriber_NoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(testConfig(srv.URL + "/v1"))
	if _, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410)); err == nil {
		t.Fatal("Expected error for unauthorized request")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestTranscribe_EmptyFile(t *testing.T) {
	tr := NewWhisperTranscriber(testConfig("http://127.0.0.1:1/v1"))
	_, err := tr.Transcribe(context.Background(), writeTestWAV(t, 0))
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	tr := NewDeepgramTranscriber(testConfig(""))
	_, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func deepgramConfig(host string) *config.ProcessorConfig {
	cfg := testConfig("")
	cfg.TranscriptionProvider = "deepgram"
	cfg.DeepgramHost = host
	return cfg
}

func TestDeepgramTranscriber_Transcribe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/listen") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); !strings.Contains(got, "test-deepgram-key") {
			t.Errorf("Unexpected authorization header %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-2" {
			t.Errorf("Expected model nova-2, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"metadata":{"request_id":"r1"},"results":{"channels":[{"alternatives":[{"transcript":"Tell me about yourself.","confidence":0.97}]}]}}`)
	}))
	defer srv.Close()

	tr := NewDeepgramTranscriber(deepgramConfig(srv.URL))
	res, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "Tell me about yourself." {
		t.Errorf("Unexpected text %q", res.Text)
	}
	if res.Confidence < 0.96 || res.Confidence > 0.98 {
		t.Errorf("Expected confidence 0.97, got %v", res.Confidence)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", calls.Load())
	}
}

func TestDeepgramTranscriber_NoAlternatives(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"metadata":{"request_id":"r2"},"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	tr := NewDeepgramTranscriber(deepgramConfig(srv.URL))
	_, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410))
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("Expected ErrNoTranscript, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestDeepgramTranscriber_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"err_code":"SERVICE_UNAVAILABLE","err_msg":"upstream overloaded","request_id":"r3"}`)
			return
		}
		fmt.Fprint(w, `{"metadata":{"request_id":"r4"},"results":{"channels":[{"alternatives":[{"transcript":"ok","confidence":0.9}]}]}}`)
	}))
	defer srv.Close()

	tr := NewDeepgramTranscriber(deepgramConfig(srv.URL))
	res, err := tr.Transcribe(context.Background(), writeTestWAV(t, 4410))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if res.Text != "ok" || calls.Load() < 2 {
		t.Errorf("Expected success after a retry, got text=%q calls=%d", res.Text, calls.Load())
	}
}

func TestIsRetryableDeepgram(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no transcript", ErrNoTranscript, false},
		{"status 503", errors.New("503 Service Unavailable"), true},
		{"status 429", errors.New("request failed with status 429"), true},
		{"err code", errors.New("INTERNAL_SERVER_ERROR: something broke"), true},
		{"status 401", errors.New("401 Unauthorized"), false},
		{"bad request", errors.New("INVALID_AUTH: invalid credentials"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableDeepgram(tt.err); got != tt.want {
				t.Errorf("isRetryableDeepgram(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
