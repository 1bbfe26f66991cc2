package chat

import (
	"time"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/wire"
)

// EventType names a change that live subscribers of a room are told about.
type EventType string

const (
	EventMessageCreated = EventType(wire.FrameMessageCreated)
	EventMessagesRead   = EventType(wire.FrameMessagesRead)
	EventRoomClosed     = EventType(wire.FrameRoomClosed)
)

// Event is a change to one room.
type Event struct {
	Type      EventType      `json:"type"`
	RoomID    string         `json:"roomId"`
	ActorID   string         `json:"actorId,omitempty"`
	Message   *model.Message `json:"message,omitempty"`
	Count     int64          `json:"count,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier receives room events after they are committed. Publish must not block.
type Notifier interface {
	Publish(ev Event)
}

type discardNotifier struct{}

func (discardNotifier) Publish(Event) {}
