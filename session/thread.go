package session

import "sync"

// Thread tracks the root and last event id of the user's own posting
// session, supporting reply-chain continuation. Both start empty and are
// advanced only after a successful publish.
type Thread struct {
	mu          sync.Mutex
	rootEventID string
	lastEventID string
}

// NewThread returns an empty thread state.
func NewThread() *Thread {
	return &Thread{}
}

// Snapshot returns the current root and last event ids.
func (t *Thread) Snapshot() (rootEventID, lastEventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootEventID, t.lastEventID
}

// Advance records a newly published event id. The last id always moves;
// the root is set only on the first publish and never overwritten here.
func (t *Thread) Advance(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastEventID = eventID
	if t.rootEventID == "" {
		t.rootEventID = eventID
	}
}

// SetRoot overrides the thread root. Used when a leading note reference in
// the input starts a new thread.
func (t *Thread) SetRoot(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rootEventID = eventID
}

// Reset clears both ids, ending the current chain.
func (t *Thread) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rootEventID = ""
	t.lastEventID = ""
}
