package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "healthy" || status.Service != "conference-recorder" {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	ok := func(ctx context.Context) (bool, error) { return true, nil }
	failing := func(ctx context.Context) (bool, error) { return false, errors.New("device missing") }

	tests := []struct {
		name     string
		checks   map[string]HealthCheckFunc
		code     int
		status   string
		failures []string
	}{
		{"no checks", nil, http.StatusOK, "ready", nil},
		{"all healthy", map[string]HealthCheckFunc{"audio_device": ok, "processor": ok}, http.StatusOK, "ready", nil},
		{"one failing", map[string]HealthCheckFunc{"audio_device": failing, "processor": ok}, http.StatusServiceUnavailable, "not_ready", []string{"audio_device"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}

			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if status.Status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, status.Status)
			}
			for _, name := range tt.failures {
				dep := status.Dependencies[name]
				if dep.Status != "unhealthy" || dep.Message == "" {
					t.Errorf("Expected %s to be reported unhealthy with a message, got %+v", name, dep)
				}
			}
		})
	}
}
