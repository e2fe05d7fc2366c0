// Package presence derives the set of online users from presence frames.
//
// The tracker is a pure reducer over user_online/user_offline frames. No
// snapshot is requested from the server on reconnect: presence events that
// occurred while disconnected are never observed, so the set can go stale
// until a fresh event for the affected user arrives. That approximation is
// deliberate; callers needing authoritative presence must consult the
// server directly.
package presence

import (
	"sort"
	"sync"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/wire"
)

// Tracker maintains the set of user identifiers currently believed online.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		online: make(map[string]struct{}),
	}
}

// Apply consumes one frame. Frames other than user_online/user_offline,
// and presence frames without a user_id, are ignored.
func (t *Tracker) Apply(f *wire.Frame) {
	id := f.UserID()
	if id == "" {
		return
	}

	switch f.Type {
	case wire.TypeUserOnline:
		t.mu.Lock()
		t.online[id] = struct{}{}
		t.mu.Unlock()
	case wire.TypeUserOffline:
		t.mu.Lock()
		delete(t.online, id)
		t.mu.Unlock()
	}
}

// IsOnline reports whether the user is currently recorded as online.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.online[userID]

	return ok
}

// Online returns a sorted snapshot of all users recorded as online.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]string, 0, len(t.online))
	for id := range t.online {
		users = append(users, id)
	}

	sort.Strings(users)

	return users
}

// Len returns the number of users recorded as online.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.online)
}

// Reset clears the set. Called on explicit disconnect, when the app
// session ends; reconnects within a session intentionally do not reset.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.online = make(map[string]struct{})
}
