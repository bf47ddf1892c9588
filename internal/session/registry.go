// Package session owns the per-device triple of state stores and the
// dispatcher that applies the event stream to them.
package session

import (
	"sort"
	"sync"

	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/state"
)

// Session is the triple of stores for one device identifier.
type Session struct {
	Device   *state.DeviceState
	Nodes    *state.NodeDB
	Messages *state.MessageLog
}

// Registry maps device identifiers to their sessions. Creation happens
// lazily and exactly once per identifier.
type Registry struct {
	mu       sync.Mutex
	sessions map[models.DeviceID]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[models.DeviceID]*Session),
	}
}

// GetOrCreate returns the session for id, creating it on first access.
// Concurrent callers for the same identifier always observe the same
// session; duplicates cannot be constructed. Store construction is pure
// allocation, so a single registry lock is the whole single-flight story.
func (r *Registry) GetOrCreate(id models.DeviceID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &Session{
			Device:   state.NewDeviceState(id),
			Nodes:    state.NewNodeDB(),
			Messages: state.NewMessageLog(),
		}
		r.sessions[id] = s
	}
	return s
}

// Get returns the session for id if it exists.
func (r *Registry) Get(id models.DeviceID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// IDs returns the known device identifiers in ascending order.
func (r *Registry) IDs() []models.DeviceID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.DeviceID, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
