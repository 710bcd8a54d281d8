package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mayankSinghx/QuickShow/internal/element"
	"github.com/mayankSinghx/QuickShow/internal/protocol"
)

// Session is a live connection as seen by the authority. Send must not
// block; slow consumers are the transport's problem.
type Session interface {
	ID() string
	User() element.User
	Send(msg protocol.ServerMessage)
}

// Store is the persistence boundary the authority coordinates with.
// These are the only calls that may block.
type Store interface {
	CreateRoomIfAbsent(ctx context.Context, id string) error
	RoomElements(ctx context.Context, roomID string) ([]element.Element, error)
	GetElement(ctx context.Context, id string) (*element.Element, error)
	ApplyElementMutation(ctx context.Context, roomID string, el element.Element) error
}

// Authority owns one room's membership set and serializes every
// operation against its element collection. The commit path is a
// read-modify-write against the store, so it runs one-at-a-time per
// room; different rooms never share state.
type Authority struct {
	id    string
	store Store
	log   zerolog.Logger

	mu      sync.Mutex
	members map[string]Session
	closed  bool
}

func newAuthority(id string, store Store, log zerolog.Logger) *Authority {
	return &Authority{
		id:      id,
		store:   store,
		log:     log.With().Str("room", id).Logger(),
		members: make(map[string]Session),
	}
}

// Join registers the session, lazily creates the room record, sends the
// full element snapshot to the joiner and broadcasts the membership
// list to everyone. Returns false if the authority has already been
// evicted; the caller retries against a fresh instance.
func (a *Authority) Join(ctx context.Context, s Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}

	a.members[s.ID()] = s
	a.broadcastUsersLocked()

	a.log.Info().
		Str("user", s.User().Name).
		Int("members", len(a.members)).
		Msg("session joined")

	// INSERT OR IGNORE keeps two simultaneous first joins from racing
	if err := a.store.CreateRoomIfAbsent(ctx, a.id); err != nil {
		a.log.Error().Err(err).Msg("failed to ensure room record")
		return true
	}

	elements, err := a.store.RoomElements(ctx, a.id)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to load room snapshot")
		return true
	}
	s.Send(protocol.RoomState(elements))
	return true
}

// Leave removes the session and broadcasts the updated membership list
// exactly once. Returns the number of remaining members.
func (a *Authority) Leave(sessionID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.members[sessionID]; !ok {
		return len(a.members)
	}
	delete(a.members, sessionID)
	a.broadcastUsersLocked()

	a.log.Info().Int("members", len(a.members)).Msg("session left")
	return len(a.members)
}

// ApplyUpdate relays an in-progress edit to every member except the
// sender. Never persisted, never conflict-checked: last arrival wins at
// the consumer.
func (a *Authority) ApplyUpdate(sender Session, el element.Element) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked(protocol.Update(el), sender.ID())
}

// CursorMove relays a pointer position to every member except the
// sender. Overwrite-and-forward, nothing stored.
func (a *Authority) CursorMove(sender Session, cursor element.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcastLocked(protocol.CursorMove(sender.User().ID, cursor), sender.ID())
}

// Commit runs a durable write attempt through the resolver. Accepted
// states are persisted together with their audit record and then
// relayed to the other members; rejected states go back to the sender
// only, as a staleness notice carrying the authoritative state.
// Persistence failures are logged and produce no broadcast.
func (a *Authority) Commit(ctx context.Context, sender Session, el element.Element) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, err := a.store.GetElement(ctx, el.ID)
	if err != nil {
		a.log.Error().Err(err).Str("element", el.ID).Msg("commit: fetch failed")
		return
	}

	if !element.Resolve(el, stored) {
		sender.Send(protocol.Stale(*stored))
		a.log.Debug().
			Str("element", el.ID).
			Int64("candidate_version", el.Version).
			Int64("stored_version", stored.Version).
			Msg("commit rejected as stale")
		return
	}

	if err := a.store.ApplyElementMutation(ctx, a.id, el); err != nil {
		a.log.Error().Err(err).Str("element", el.ID).Msg("commit: persist failed")
		return
	}

	a.broadcastLocked(protocol.Commit(el), sender.ID())
}

// Users returns a snapshot of the current membership.
func (a *Authority) Users() []element.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usersLocked()
}

func (a *Authority) MemberCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.members)
}

// closeIfEmpty marks an empty authority as evicted so late joins
// against a stale pointer fail and retry.
func (a *Authority) closeIfEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.members) != 0 {
		return false
	}
	a.closed = true
	return true
}

func (a *Authority) usersLocked() []element.User {
	users := make([]element.User, 0, len(a.members))
	for _, s := range a.members {
		users = append(users, s.User())
	}
	return users
}

func (a *Authority) broadcastUsersLocked() {
	msg := protocol.RoomUsers(a.usersLocked())
	for _, s := range a.members {
		s.Send(msg)
	}
}

func (a *Authority) broadcastLocked(msg protocol.ServerMessage, exceptID string) {
	for id, s := range a.members {
		if id != exceptID {
			s.Send(msg)
		}
	}
}
