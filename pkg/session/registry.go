package session

import (
	"sync"
	"sync/atomic"
)

// Registry is the process-wide session table and room index (spec §4.6).
// A single lock guards both the id->session map and the room->ids index;
// per-session mutable state is guarded separately by the Session itself.
type Registry struct {
	mu      sync.RWMutex
	byID    map[uint64]*Session
	byRoom  map[string]map[uint64]struct{}
	roomSeq map[string]uint64
	nextID  uint64 // atomic
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[uint64]*Session),
		byRoom:  make(map[string]map[uint64]struct{}),
		roomSeq: make(map[string]uint64),
	}
}

// NextRoomSeq returns the next strictly increasing sequence number for
// room, used to order chat broadcasts (spec §5, Open Question (a)).
func (r *Registry) NextRoomSeq(room string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.roomSeq[room]
	r.roomSeq[room] = seq + 1
	return seq
}

// NextClientID allocates the next monotonic client id, unique for the
// process lifetime (spec §3).
func (r *Registry) NextClientID() uint64 {
	return atomic.AddUint64(&r.nextID, 1) - 1
}

// Insert adds a session to the registry and its room index. Returns
// ErrDuplicateClientID if the client id is already present.
func (r *Registry) Insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[s.ClientID]; exists {
		return ErrDuplicateClientID
	}
	r.byID[s.ClientID] = s
	r.addToRoomLocked(s.Room(), s.ClientID)
	return nil
}

// Remove discards a session from the registry and its room index. A room
// with no remaining members is dropped from the index (spec §4.6: rooms
// are created on first join, destroyed when the last member leaves).
func (r *Registry) Remove(clientID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[clientID]
	if !ok {
		return
	}
	delete(r.byID, clientID)
	r.removeFromRoomLocked(s.Room(), clientID)
}

// Get looks up a session by client id.
func (r *Registry) Get(clientID uint64) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// ByRoom returns a point-in-time snapshot of the sessions currently in
// room. The lock is released before the slice is returned, so callers
// must not assume membership is still current by the time they act on it
// (spec §4.6 broadcast: snapshot, then fan out without holding the lock).
func (r *Registry) ByRoom(room string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byRoom[room]
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		if s, ok := r.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// RenameRoom atomically moves a client's membership from its current room
// to newRoom, used by /join (spec §4.7).
func (r *Registry) RenameRoom(clientID uint64, newRoom string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[clientID]
	if !ok {
		return ErrNotFound
	}
	r.removeFromRoomLocked(s.Room(), clientID)
	s.SetRoom(newRoom)
	r.addToRoomLocked(newRoom, clientID)
	return nil
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// RoomCount returns the number of active (non-empty) rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom)
}

func (r *Registry) addToRoomLocked(room string, clientID uint64) {
	members, ok := r.byRoom[room]
	if !ok {
		members = make(map[uint64]struct{})
		r.byRoom[room] = members
	}
	members[clientID] = struct{}{}
}

func (r *Registry) removeFromRoomLocked(room string, clientID uint64) {
	members, ok := r.byRoom[room]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(r.byRoom, room)
	}
}
