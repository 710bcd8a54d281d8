package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mayankSinghx/QuickShow/internal/element"
)

// Room-scoped event names, shared by both directions of the wire
type Event string

const (
	EventJoinRoom   Event = "join-room"
	EventRoomState  Event = "room-state"
	EventRoomUsers  Event = "room-users"
	EventUpdate     Event = "element:update"
	EventCommit     Event = "element:commit"
	EventStale      Event = "element:stale"
	EventCursorMove Event = "cursor:move"
)

// ClientMessage is the inbound envelope: one of join-room,
// element:update, element:commit or cursor:move.
type ClientMessage struct {
	Event   Event            `json:"event"`
	RoomID  string           `json:"roomId,omitempty"`
	User    *element.User    `json:"user,omitempty"`
	Element *element.Element `json:"element,omitempty"`
	Cursor  *element.Point   `json:"cursor,omitempty"`
}

// ServerMessage is the outbound envelope. Exactly one payload field is
// set, matching the event.
type ServerMessage struct {
	Event    Event             `json:"event"`
	Elements []element.Element `json:"elements,omitempty"`
	Users    []element.User    `json:"users,omitempty"`
	Element  *element.Element  `json:"element,omitempty"`
	UserID   string            `json:"userId,omitempty"`
	Cursor   *element.Point    `json:"cursor,omitempty"`
}

// Parses and validates an inbound frame. Messages missing required
// fields are rejected here so handlers never see a half-formed intent.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch msg.Event {
	case EventJoinRoom:
		if msg.RoomID == "" {
			return nil, fmt.Errorf("join-room: missing roomId")
		}
		if msg.User == nil || msg.User.ID == "" {
			return nil, fmt.Errorf("join-room: missing user")
		}
	case EventUpdate, EventCommit:
		if msg.RoomID == "" {
			return nil, fmt.Errorf("%s: missing roomId", msg.Event)
		}
		if msg.Element == nil || msg.Element.ID == "" {
			return nil, fmt.Errorf("%s: missing element", msg.Event)
		}
		if !msg.Element.Type.Valid() {
			return nil, fmt.Errorf("%s: unknown element type %q", msg.Event, msg.Element.Type)
		}
	case EventCursorMove:
		if msg.RoomID == "" {
			return nil, fmt.Errorf("cursor:move: missing roomId")
		}
		if msg.Cursor == nil {
			return nil, fmt.Errorf("cursor:move: missing cursor")
		}
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}

	return &msg, nil
}

func RoomState(elements []element.Element) ServerMessage {
	return ServerMessage{Event: EventRoomState, Elements: elements}
}

func RoomUsers(users []element.User) ServerMessage {
	return ServerMessage{Event: EventRoomUsers, Users: users}
}

func Update(el element.Element) ServerMessage {
	return ServerMessage{Event: EventUpdate, Element: &el}
}

func Commit(el element.Element) ServerMessage {
	return ServerMessage{Event: EventCommit, Element: &el}
}

func Stale(el element.Element) ServerMessage {
	return ServerMessage{Event: EventStale, Element: &el}
}

func CursorMove(userID string, cursor element.Point) ServerMessage {
	return ServerMessage{Event: EventCursorMove, UserID: userID, Cursor: &cursor}
}
