package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mayankSinghx/QuickShow/internal/element"
)

// Registry maps room ids to their authority instances. Authorities are
// created lazily on first join and evicted once membership reaches
// zero, so idle rooms cost nothing.
type Registry struct {
	store Store
	log   zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*Authority
}

func NewRegistry(store Store, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log,
		rooms: make(map[string]*Authority),
	}
}

// Join routes a session into the room's authority, creating it on
// demand. The retry loop covers the window where an authority is
// evicted between lookup and join.
func (r *Registry) Join(ctx context.Context, roomID string, s Session) {
	for {
		a := r.getOrCreate(roomID)
		if a.Join(ctx, s) {
			return
		}
	}
}

// Leave removes the session from the room and evicts the authority if
// it was the last member.
func (r *Registry) Leave(roomID, sessionID string) {
	a := r.lookup(roomID)
	if a == nil {
		return
	}
	if a.Leave(sessionID) > 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the authority's own lock: a join may have raced in
	if r.rooms[roomID] == a && a.closeIfEmpty() {
		delete(r.rooms, roomID)
		r.log.Debug().Str("room", roomID).Msg("room evicted (empty)")
	}
}

func (r *Registry) ApplyUpdate(roomID string, sender Session, el element.Element) {
	if a := r.lookup(roomID); a != nil {
		a.ApplyUpdate(sender, el)
	}
}

func (r *Registry) Commit(ctx context.Context, roomID string, sender Session, el element.Element) {
	if a := r.lookup(roomID); a != nil {
		a.Commit(ctx, sender, el)
	}
}

func (r *Registry) CursorMove(roomID string, sender Session, cursor element.Point) {
	if a := r.lookup(roomID); a != nil {
		a.CursorMove(sender, cursor)
	}
}

// RoomCount reports the number of live authorities.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SessionCount reports the total connected sessions across rooms.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, a := range r.rooms {
		total += a.MemberCount()
	}
	return total
}

// ActiveRooms maps room id to member count for the live authorities.
func (r *Registry) ActiveRooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := make(map[string]int, len(r.rooms))
	for id, a := range r.rooms {
		active[id] = a.MemberCount()
	}
	return active
}

func (r *Registry) lookup(roomID string) *Authority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) getOrCreate(roomID string) *Authority {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.rooms[roomID]; ok {
		return a
	}
	a := newAuthority(roomID, r.store, r.log)
	r.rooms[roomID] = a
	return a
}
