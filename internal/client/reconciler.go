package client

import (
	"sync"
	"time"

	"github.com/mayankSinghx/QuickShow/internal/element"
	"github.com/mayankSinghx/QuickShow/internal/protocol"
)

// Emitter carries the reconciler's intents to the server.
type Emitter interface {
	Emit(msg protocol.ClientMessage)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(msg protocol.ClientMessage)

func (f EmitterFunc) Emit(msg protocol.ClientMessage) { f(msg) }

// Reconciler is the client-side mirror of a room: a local element cache
// that applies optimistic edits immediately and converges to the
// authority's state as server messages arrive. All methods are safe for
// the usual two callers (local input handling and the inbound message
// loop), but each element is only ever mutated by one of them at a time.
type Reconciler struct {
	roomID string
	user   element.User
	emitter Emitter
	style   Style
	now     func() int64

	mu       sync.Mutex
	elements map[string]element.Element
	order    []string
	active   *element.Element
	tool     Tool
	drawing  bool
	lastX    float64
	lastY    float64
	// element ids edited locally whose last commit has not been sent yet
	unconfirmed map[string]bool
	cursors     map[string]element.Point
	users       []element.User
}

func NewReconciler(roomID string, user element.User, emitter Emitter) *Reconciler {
	return &Reconciler{
		roomID:      roomID,
		user:        user,
		emitter:     emitter,
		style:       DefaultStyle(),
		now:         func() int64 { return time.Now().UnixMilli() },
		elements:    make(map[string]element.Element),
		unconfirmed: make(map[string]bool),
		cursors:     make(map[string]element.Point),
	}
}

// SetStyle changes the style applied to elements created from now on.
func (r *Reconciler) SetStyle(style Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.style = style
}

// Join emits the join intent. The resulting room-state message resets
// the local cache.
func (r *Reconciler) Join() {
	r.emitter.Emit(protocol.ClientMessage{
		Event:  protocol.EventJoinRoom,
		RoomID: r.roomID,
		User:   &r.user,
	})
}

// PointerDown starts a gesture. Drawing tools create a new element
// optimistically at version 1; pan does nothing; select needs the
// picked element id and goes through StartDrag instead.
func (r *Reconciler) PointerDown(tool Tool, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tool = tool
	r.lastX, r.lastY = x, y

	typ, ok := tool.elementType()
	if !ok {
		return
	}

	el := newElement(typ, x, y, r.style, r.now())
	r.upsertLocked(el)
	r.active = &el
	r.unconfirmed[el.ID] = true
	r.drawing = true
}

// StartDrag begins a select/move gesture on an existing element. The
// caller supplies the picked id; hit-testing lives outside the core.
func (r *Reconciler) StartDrag(id string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tool = ToolSelect
	r.lastX, r.lastY = x, y

	el, ok := r.elements[id]
	if !ok {
		r.active = nil
		return
	}
	r.active = &el
	r.unconfirmed[el.ID] = true
	r.drawing = true
}

// PointerMove advances the current gesture and always shares the
// cursor position. Every move bumps the local version and emits an
// ephemeral update for live preview on peers.
func (r *Reconciler) PointerMove(x, y float64) {
	r.mu.Lock()

	r.emitLocked(protocol.ClientMessage{
		Event:  protocol.EventCursorMove,
		RoomID: r.roomID,
		Cursor: &element.Point{X: x, Y: y},
	})

	if !r.drawing || r.active == nil {
		r.lastX, r.lastY = x, y
		r.mu.Unlock()
		return
	}

	el := r.active
	switch {
	case r.tool == ToolSelect:
		el.X += x - r.lastX
		el.Y += y - r.lastY
	case el.Type == element.TypeFreehand:
		el.Points = append(el.Points, element.Point{X: x, Y: y})
	default:
		el.Width = x - el.X
		el.Height = y - el.Y
	}
	bump(el, r.now())
	r.lastX, r.lastY = x, y
	r.upsertLocked(*el)

	update := *el
	r.emitLocked(protocol.ClientMessage{
		Event:   protocol.EventUpdate,
		RoomID:  r.roomID,
		Element: &update,
	})
	r.mu.Unlock()
}

// PointerUp ends the gesture. Text elements defer their commit until
// SetText; the select tool keeps the element active so further drags
// keep accumulating version bumps on the same lineage.
func (r *Reconciler) PointerUp() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.drawing || r.active == nil {
		r.drawing = false
		return
	}
	r.drawing = false

	if r.active.Type == element.TypeText {
		return
	}

	r.commitActiveLocked()
	if r.tool != ToolSelect {
		r.active = nil
	}
}

// SetText finishes a text element: applies the entered text, bumps the
// version and commits.
func (r *Reconciler) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.Type != element.TypeText {
		return
	}
	r.active.Text = text
	bump(r.active, r.now())
	r.upsertLocked(*r.active)
	r.commitActiveLocked()
	r.active = nil
}

// HandleServer merges one inbound authority message into the local
// cache.
func (r *Reconciler) HandleServer(msg protocol.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch msg.Event {
	case protocol.EventRoomState:
		r.elements = make(map[string]element.Element, len(msg.Elements))
		r.order = r.order[:0]
		for _, el := range msg.Elements {
			r.upsertLocked(el)
		}

	case protocol.EventRoomUsers:
		r.users = msg.Users
		// Cursors of departed users go with them
		present := make(map[string]bool, len(msg.Users))
		for _, u := range msg.Users {
			present[u.ID] = true
		}
		for id := range r.cursors {
			if !present[id] {
				delete(r.cursors, id)
			}
		}

	case protocol.EventUpdate, protocol.EventCommit:
		// Preview layer and confirmed peer commits alike: trust the
		// server, upsert unconditionally
		if msg.Element != nil {
			r.upsertLocked(*msg.Element)
		}

	case protocol.EventStale:
		// Our commit lost; discard the optimistic state for that id
		if msg.Element != nil {
			r.upsertLocked(*msg.Element)
			delete(r.unconfirmed, msg.Element.ID)
			if r.active != nil && r.active.ID == msg.Element.ID {
				r.active = nil
				r.drawing = false
			}
		}

	case protocol.EventCursorMove:
		if msg.Cursor != nil {
			r.cursors[msg.UserID] = *msg.Cursor
		}
	}
}

// Elements returns the cache in stable insertion order for rendering.
func (r *Reconciler) Elements() []element.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]element.Element, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.elements[id])
	}
	return out
}

// Element returns the cached state for id.
func (r *Reconciler) Element(id string) (element.Element, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.elements[id]
	return el, ok
}

// Active returns a copy of the element currently being edited, if any.
func (r *Reconciler) Active() (element.Element, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return element.Element{}, false
	}
	return *r.active, true
}

// Unconfirmed reports whether id is a local edit not yet committed.
func (r *Reconciler) Unconfirmed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unconfirmed[id]
}

// Users returns the last membership broadcast.
func (r *Reconciler) Users() []element.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]element.User(nil), r.users...)
}

// Cursors returns the latest known peer pointer positions.
func (r *Reconciler) Cursors() map[string]element.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]element.Point, len(r.cursors))
	for id, p := range r.cursors {
		out[id] = p
	}
	return out
}

func (r *Reconciler) commitActiveLocked() {
	el := *r.active
	r.emitLocked(protocol.ClientMessage{
		Event:   protocol.EventCommit,
		RoomID:  r.roomID,
		Element: &el,
	})
	delete(r.unconfirmed, el.ID)
}

func (r *Reconciler) upsertLocked(el element.Element) {
	if _, ok := r.elements[el.ID]; !ok {
		r.order = append(r.order, el.ID)
	}
	r.elements[el.ID] = el
}

func (r *Reconciler) emitLocked(msg protocol.ClientMessage) {
	r.emitter.Emit(msg)
}
