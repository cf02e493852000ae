package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
)

// Behavior selects how a FakeRelay answers EVENT frames.
type Behavior int

const (
	// Accept acks every event with ["OK", id, true, ""].
	Accept Behavior = iota

	// Reject acks every event with ["OK", id, false, "blocked: test"].
	Reject

	// Silent receives events but never acknowledges them.
	Silent

	// Drop closes the connection as soon as an event arrives.
	Drop
)

// FakeRelay is an in-process relay endpoint for tests. It records every
// event it receives and answers REQ subscriptions with a scripted event
// list followed by EOSE.
type FakeRelay struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	behavior Behavior

	mu        sync.Mutex
	received  []nostr.Event
	scripted  []nostr.Event
	connCount int
}

// NewFakeRelay starts a fake relay with the given behavior. Callers must
// Close it.
func NewFakeRelay(behavior Behavior) *FakeRelay {
	r := &FakeRelay{behavior: behavior}
	r.srv = httptest.NewServer(http.HandlerFunc(r.handle))
	return r
}

// URL returns the ws:// endpoint of the relay.
func (r *FakeRelay) URL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

// Close shuts the relay down.
func (r *FakeRelay) Close() {
	r.srv.Close()
}

// Received returns a copy of every event received so far.
func (r *FakeRelay) Received() []nostr.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nostr.Event(nil), r.received...)
}

// ConnCount returns how many websocket connections were opened.
func (r *FakeRelay) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connCount
}

// ServeEvents scripts the events returned for any subsequent REQ.
func (r *FakeRelay) ServeEvents(evts ...nostr.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripted = append(r.scripted, evts...)
}

func (r *FakeRelay) handle(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	r.mu.Lock()
	r.connCount++
	r.mu.Unlock()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return ws.WriteMessage(websocket.TextMessage, data)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
			continue
		}
		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil {
			continue
		}

		switch label {
		case "EVENT":
			var evt nostr.Event
			if err := json.Unmarshal(frame[1], &evt); err != nil {
				continue
			}
			r.mu.Lock()
			r.received = append(r.received, evt)
			r.mu.Unlock()

			switch r.behavior {
			case Accept:
				writeJSON([]any{"OK", evt.ID, true, ""})
			case Reject:
				writeJSON([]any{"OK", evt.ID, false, "blocked: test"})
			case Silent:
				// No ack on purpose.
			case Drop:
				return
			}
		case "REQ":
			var subID string
			if err := json.Unmarshal(frame[1], &subID); err != nil {
				continue
			}
			r.mu.Lock()
			scripted := append([]nostr.Event(nil), r.scripted...)
			r.mu.Unlock()
			for _, evt := range scripted {
				writeJSON([]any{"EVENT", subID, evt})
			}
			writeJSON([]any{"EOSE", subID})
		case "CLOSE":
			// Subscription teardown needs no reply.
		}
	}
}
