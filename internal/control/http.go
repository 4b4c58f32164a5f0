package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jiggo089/conference-ai-assistant/internal/capture"
)

// Register mounts the control API on mux
func (c *Controller) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/start", c.handleStart)
	mux.HandleFunc("POST /api/stop", c.handleStop)
	mux.HandleFunc("POST /api/export", c.handleExport)
	mux.HandleFunc("POST /api/reset", c.handleReset)
	mux.HandleFunc("GET /api/status", c.handleStatus)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// seconds reads the optional ?seconds= query parameter
func (c *Controller) seconds(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("seconds")
	if raw == "" {
		return c.opts.DefaultSeconds, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("seconds must be a positive integer")
	}
	return n, nil
}

// statusFor maps controller errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, capture.ErrRecording):
		return http.StatusConflict
	case errors.Is(err, capture.ErrDeviceNotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := c.Start(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (c *Controller) handleStop(w http.ResponseWriter, r *http.Request) {
	seconds, err := c.seconds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := c.Stop(seconds)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Controller) handleExport(w http.ResponseWriter, r *http.Request) {
	seconds, err := c.seconds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := c.Export(seconds)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Controller) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := c.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (c *Controller) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Status())
}
