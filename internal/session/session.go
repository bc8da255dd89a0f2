// Package session implements the session registry (C3): minting,
// look-up, and expiry of 32-bit session IDs for authenticated connections.
package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// MaxSessions bounds both the registry's capacity and the ID space sessions
// are drawn from.
const MaxSessions = 100_000

// MaxUsernameLen bounds the username carried on a Record; usernames longer
// than this are rejected at Add time.
const MaxUsernameLen = 255

var (
	// ErrFull is returned by Add when the registry already holds
	// MaxSessions live sessions.
	ErrFull = errors.New("session: registry full")
	// ErrBadInput is returned by Add for an empty or oversized username.
	ErrBadInput = errors.New("session: bad input")
	// ErrNotFound is returned when a session ID has no matching Record.
	ErrNotFound = errors.New("session: not found")
)

// Record is one live session. Identity is by SessionID, never by pointer:
// the source's check_session/find_session compare the session_id field, and
// callers here must do the same (two *Record values can be distinct
// allocations of the same logical session after a lookup round-trip).
type Record struct {
	SessionID   uint32
	Permissions uint8
	Username    string
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// Registry mints, looks up, and expires sessions. It is safe for concurrent
// use. Internally it keeps records in insertion order so ExpireOldest has an
// O(1) victim to evict, mirroring the source's FIFO sessions queue.
type Registry struct {
	mu    sync.Mutex
	order []*Record
	byID  map[uint32]*Record
	rng   *rand.Rand
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{
		byID: make(map[uint32]*Record, 64),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Add mints a new session for username at the given permission level.
// Session IDs are drawn pseudo-randomly modulo MaxSessions and swept
// forward past collisions, reproducing add_session's allocation strategy.
// Returns ErrFull once MaxSessions sessions are live, ErrBadInput for an
// empty or oversized username.
func (r *Registry) Add(permissions uint8, username string) (uint32, error) {
	if username == "" || len(username) > MaxUsernameLen {
		return 0, ErrBadInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) >= MaxSessions {
		return 0, ErrFull
	}

	id := uint32(r.rng.Intn(MaxSessions))
	for {
		if _, exists := r.byID[id]; !exists {
			break
		}
		id = (id + 1) % MaxSessions
	}

	now := time.Now()
	rec := &Record{
		SessionID:   id,
		Permissions: permissions,
		Username:    username,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	r.byID[id] = rec
	r.order = append(r.order, rec)
	return id, nil
}

// Find returns a copy of the Record for id, or ErrNotFound.
func (r *Registry) Find(id uint32) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// Check returns the permission level for id, or 0 if absent — matching
// check_session's "0 means absent" contract (permissions == 0 is reserved
// and never assigned to a real session).
func (r *Registry) Check(id uint32) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return 0
	}
	rec.LastSeenAt = time.Now()
	return rec.Permissions
}

// Touch refreshes a session's LastSeenAt without returning its permissions.
func (r *Registry) Touch(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok {
		rec.LastSeenAt = time.Now()
	}
}

// Destroy removes id from the registry. Returns ErrNotFound if it was
// already absent.
func (r *Registry) Destroy(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, rec := range r.order {
		if rec.SessionID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ExpireOldest evicts the longest-lived session, the Go equivalent of
// dequeue_session(sessions_queue, 1). Returns ErrNotFound if the registry is
// empty.
func (r *Registry) ExpireOldest() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		return ErrNotFound
	}
	victim := r.order[0]
	r.order = r.order[1:]
	delete(r.byID, victim.SessionID)
	return nil
}

// ExpireIdleBefore evicts every session whose LastSeenAt predates cutoff,
// returning the count evicted. This is the reaper the source only gestures
// at in comments; internal/server does not schedule it, so it runs only
// when a caller invokes it.
func (r *Registry) ExpireIdleBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0:0]
	evicted := 0
	for _, rec := range r.order {
		if rec.LastSeenAt.Before(cutoff) {
			delete(r.byID, rec.SessionID)
			evicted++
			continue
		}
		kept = append(kept, rec)
	}
	r.order = kept
	return evicted
}

// Clear drops every live session, matching destroy_sessions' teardown of
// the whole sessions queue at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byID = make(map[uint32]*Record, 64)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
