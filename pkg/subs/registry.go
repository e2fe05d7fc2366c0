// Package subs tracks the set of channels the process is interested in.
//
// The registry stores the union of all consumers' interest with reference
// counting: a channel stays on the wire subscription list until the last
// consumer interested in it lets go. The connection layer replays the full
// channel set after every reconnect, so the registry is the single source
// of truth for what the server should be sending us.
package subs

import (
	"sort"
	"sync"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/metrics"
)

// Registry is a reference-counted set of channel names.
type Registry struct {
	mu   sync.Mutex
	refs map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		refs: make(map[string]int),
	}
}

// Add increments the reference count for channel and reports whether this
// was the first reference (0 -> 1). The caller sends a subscribe frame on
// the wire only for first references.
func (r *Registry) Add(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refs[channel]++

	if r.refs[channel] == 1 {
		metrics.SubscribedChannels.Set(float64(len(r.refs)))
		return true
	}

	return false
}

// Remove decrements the reference count for channel and reports whether
// this was the last reference (1 -> 0). Removing a channel that was never
// added is a no-op returning false.
func (r *Registry) Remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, ok := r.refs[channel]
	if !ok {
		return false
	}

	if count <= 1 {
		delete(r.refs, channel)
		metrics.SubscribedChannels.Set(float64(len(r.refs)))

		return true
	}

	r.refs[channel] = count - 1

	return false
}

// Count returns the current reference count for channel.
func (r *Registry) Count(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refs[channel]
}

// Channels returns a sorted snapshot of all channels with at least one
// reference. Used to replay subscriptions after a reconnect.
func (r *Registry) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels := make([]string, 0, len(r.refs))
	for ch := range r.refs {
		channels = append(channels, ch)
	}

	sort.Strings(channels)

	return channels
}

// Len returns the number of distinct channels currently referenced.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.refs)
}
