package logview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_HistoryBounded(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 10; i++ {
		h.Publish("recorder", "line "+strconv.Itoa(i))
	}

	got := h.History()
	if len(got) != 3 {
		t.Fatalf("Expected 3 history entries, got %d", len(got))
	}
	for i, want := range []string{"line 7", "line 8", "line 9"} {
		if got[i].Text != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, got[i].Text)
		}
		if got[i].Source != "recorder" {
			t.Errorf("entry %d: expected source recorder, got %q", i, got[i].Source)
		}
	}
}

func TestHub_ZeroHistory(t *testing.T) {
	h := NewHub(0)
	h.Publish("stdout", "hello")
	if len(h.History()) != 0 {
		t.Error("Expected no history when history size is zero")
	}
}

func TestHub_SubscribeReceivesLaterEntries(t *testing.T) {
	h := NewHub(10)
	h.Publish("stdout", "before")

	history, sub := h.Subscribe(4)
	defer h.Unsubscribe(sub)

	if len(history) != 1 || history[0].Text != "before" {
		t.Fatalf("Expected history [before], got %+v", history)
	}

	h.Publish("stderr", "after")
	select {
	case e := <-sub.C:
		if e.Text != "after" || e.Source != "stderr" {
			t.Errorf("Unexpected entry %+v", e)
		}
		if e.Seq != history[0].Seq+1 {
			t.Errorf("Expected sequence %d, got %d", history[0].Seq+1, e.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
	}
}

func TestHub_SlowSubscriberDropsEntries(t *testing.T) {
	h := NewHub(10)
	_, sub := h.Subscribe(1)
	defer h.Unsubscribe(sub)

	h.Publish("stdout", "one")
	h.Publish("stdout", "two")
	h.Publish("stdout", "three")

	if sub.Dropped() != 2 {
		t.Errorf("Expected 2 dropped entries, got %d", sub.Dropped())
	}
	if e := <-sub.C; e.Text != "one" {
		t.Errorf("Expected first entry to be kept, got %q", e.Text)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(10)
	_, sub := h.Subscribe(1)
	if h.Clients() != 1 {
		t.Fatalf("Expected 1 client, got %d", h.Clients())
	}
	h.Unsubscribe(sub)
	if h.Clients() != 0 {
		t.Errorf("Expected 0 clients, got %d", h.Clients())
	}
}

func TestHub_HandleHistory(t *testing.T) {
	h := NewHub(10)
	h.Publish("stdout", "Transcription: hi")

	rec := httptest.NewRecorder()
	h.HandleHistory()(rec, httptest.NewRequest(http.MethodGet, "/api/log", nil))

	var entries []Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "Transcription: hi" {
		t.Errorf("Unexpected history %+v", entries)
	}
}

func TestHub_HandleWS(t *testing.T) {
	h := NewHub(10)
	h.Publish("recorder", "Recording...")

	srv := httptest.NewServer(h.HandleWS())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Entry
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if first.Text != "Recording..." {
		t.Errorf("Expected history entry first, got %q", first.Text)
	}

	// Wait for the handler to register before publishing
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Publish("stdout", "assistant > ")

	var live Entry
	if err := conn.ReadJSON(&live); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if live.Text != "assistant > " || live.Source != "stdout" {
		t.Errorf("Unexpected live entry %+v", live)
	}
}
