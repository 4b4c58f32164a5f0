// Package logview fans log lines out to WebSocket clients.
package logview

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jiggo089/conference-ai-assistant/internal/observability"
)

const (
	clientBuffer = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	// The log view is served on the local control port only
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Entry is one line of the log view
type Entry struct {
	Seq    int64     `json:"seq"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"` // recorder, stdout or stderr
	Text   string    `json:"text"`
}

// Subscription receives entries published after it was created
type Subscription struct {
	C       <-chan Entry
	ch      chan Entry
	dropped atomic.Int64
}

// Dropped returns how many entries were discarded because the client lagged
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Hub keeps a bounded history and broadcasts new entries.
// Publish never blocks; entries for a full subscriber are dropped.
type Hub struct {
	mu      sync.Mutex
	history []Entry
	max     int
	seq     int64
	subs    map[*Subscription]struct{}
	logger  zerolog.Logger
}

// NewHub creates a hub remembering the last historySize entries
func NewHub(historySize int) *Hub {
	if historySize < 0 {
		historySize = 0
	}
	return &Hub{
		max:    historySize,
		subs:   make(map[*Subscription]struct{}),
		logger: observability.WithComponent("logview"),
	}
}

// Publish records a line and sends it to every subscriber
func (h *Hub) Publish(source, text string) {
	h.logger.Info().Str("source", source).Msg(text)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	e := Entry{Seq: h.seq, Time: time.Now(), Source: source, Text: text}

	if h.max > 0 {
		h.history = append(h.history, e)
		if len(h.history) > 2*h.max {
			h.history = append([]Entry(nil), h.history[len(h.history)-h.max:]...)
		}
	}

	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}

// History returns up to the last historySize entries, oldest first
func (h *Hub) History() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.historyLocked()
}

func (h *Hub) historyLocked() []Entry {
	start := 0
	if len(h.history) > h.max {
		start = len(h.history) - h.max
	}
	return append([]Entry{}, h.history[start:]...)
}

// Subscribe returns the current history and a subscription to everything after it
func (h *Hub) Subscribe(buffer int) ([]Entry, *Subscription) {
	if buffer <= 0 {
		buffer = clientBuffer
	}
	ch := make(chan Entry, buffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
	return h.historyLocked(), sub
}

// Unsubscribe stops delivery to sub
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Clients returns the number of live subscribers
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// HandleHistory serves the history as JSON
func (h *Hub) HandleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h.History())
	}
}

// HandleWS streams the history and then live entries as JSON messages
func (h *Hub) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to upgrade log view connection")
			return
		}
		defer conn.Close()

		history, sub := h.Subscribe(clientBuffer)
		defer h.Unsubscribe(sub)

		logger := h.logger.With().Str("remote", r.RemoteAddr).Logger()
		logger.Debug().Int("history", len(history)).Int("clients", h.Clients()).Msg("Log view client connected")

		done := make(chan struct{})
		go h.readPump(conn, done, logger)

		for _, e := range history {
			if err := writeEntry(conn, e); err != nil {
				return
			}
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				logger.Debug().Int64("dropped", sub.Dropped()).Msg("Log view client disconnected")
				return
			case e := <-sub.C:
				if err := writeEntry(conn, e); err != nil {
					logger.Warn().Err(err).Msg("Log view write failed")
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// readPump discards client messages and detects disconnects
func (h *Hub) readPump(conn *websocket.Conn, done chan struct{}, logger zerolog.Logger) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Log view read error")
			}
			return
		}
	}
}

func writeEntry(conn *websocket.Conn, e Entry) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
