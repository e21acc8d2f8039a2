package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/fake-audience/backend/internal/model/chat"
)

var (
	ErrStreamIDRequired = errors.New("stream id is required")
	ErrSessionNotFound  = errors.New("session not found")
)

// DefaultStreamerName is used until the client sends update-streamer-name.
const DefaultStreamerName = "Streamer"

// State is the mutable record behind one stream. It is only touched while the
// registry lock is held.
type State struct {
	ID           string
	StreamerName string
	Active       bool
	AudienceSize int
	PresentFaces map[string]struct{}
	LastMention  time.Time
	CreatedAt    time.Time
}

// Snapshot copies the state into its wire form.
func (s *State) Snapshot() chat.Session {
	faces := make([]string, 0, len(s.PresentFaces))
	for label := range s.PresentFaces {
		faces = append(faces, label)
	}
	sort.Strings(faces)

	out := chat.Session{
		ID:           s.ID,
		StreamerName: s.StreamerName,
		IsActive:     s.Active,
		AudienceSize: s.AudienceSize,
		PresentFaces: faces,
		CreatedAt:    s.CreatedAt,
	}
	if !s.LastMention.IsZero() {
		at := s.LastMention
		out.LastMention = &at
	}
	return out
}

type entry struct {
	state  State
	ctx    context.Context
	cancel context.CancelFunc
}

// Handle identifies one incarnation of a session. A handle taken before a
// stop/start cycle never matches the re-created session.
type Handle struct {
	ID string
	e  *entry
}

// Context is cancelled when this incarnation is destroyed.
func (h Handle) Context() context.Context {
	if h.e == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return h.e.ctx
}

// Registry is the authoritative stream id -> session map.
type Registry struct {
	mu       sync.Mutex
	parent   context.Context
	sessions map[string]*entry
}

// NewRegistry creates an empty registry. Session contexts derive from parent.
func NewRegistry(parent context.Context) *Registry {
	if parent == nil {
		parent = context.Background()
	}
	return &Registry{
		parent:   parent,
		sessions: make(map[string]*entry),
	}
}

// Create registers id if absent and runs init on the fresh state under the lock.
// created is false when the session already existed; init is not run then.
func (r *Registry) Create(id string, init func(*State)) (Handle, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Handle{}, false, ErrStreamIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		return Handle{ID: id, e: e}, false, nil
	}

	ctx, cancel := context.WithCancel(r.parent)
	e := &entry{
		state: State{
			ID:           id,
			StreamerName: DefaultStreamerName,
			Active:       true,
			PresentFaces: make(map[string]struct{}),
			CreatedAt:    time.Now().UTC(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	if init != nil {
		init(&e.state)
	}
	r.sessions[id] = e
	return Handle{ID: id, e: e}, true, nil
}

// Lookup returns the handle of the live session for id.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Handle{}, false
	}
	return Handle{ID: id, e: e}, true
}

// Do runs fn under the registry lock only if h still names the live session.
// Timer bodies and deferred emits go through Do so nothing touches a destroyed
// or re-created session.
func (r *Registry) Do(h Handle, fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[h.ID]
	if !ok || e != h.e {
		return false
	}
	fn(&e.state)
	return true
}

// Update mutates the live session for id.
func (r *Registry) Update(id string, fn func(*State)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(&e.state)
	return nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (chat.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.state.Snapshot(), nil
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Destroy removes the session and cancels its context in one step. fn, if
// given, runs on the final state under the same lock.
func (r *Registry) Destroy(id string, fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	e.state.Active = false
	e.cancel()
	if fn != nil {
		fn(&e.state)
	}
	return true
}

// List returns snapshots ordered by creation time.
func (r *Registry) List() []chat.Session {
	r.mu.Lock()
	out := make([]chat.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.state.Snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close destroys every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.cancel()
		delete(r.sessions, id)
	}
}
