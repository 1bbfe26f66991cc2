package live

import (
	"hotelchat/internal/app/chat"
	"hotelchat/internal/pkg/wire"
)

// Frame and its constants live in wire so the client can decode frames without this package.
type (
	Frame     = wire.Frame
	FrameType = wire.FrameType
)

const (
	FrameInit           = wire.FrameInit
	FrameUserJoined     = wire.FrameUserJoined
	FrameUserLeft       = wire.FrameUserLeft
	FrameMessageCreated = wire.FrameMessageCreated
	FrameMessagesRead   = wire.FrameMessagesRead
	FrameRoomClosed     = wire.FrameRoomClosed

	CloseCodeSessionKicked  = wire.CloseCodeSessionKicked
	CloseCodeRoomClosed     = wire.CloseCodeRoomClosed
	CloseCodeSessionExpired = wire.CloseCodeSessionExpired
)

// FrameFromEvent converts a committed chat event into its wire frame.
func FrameFromEvent(ev chat.Event) Frame {
	return Frame{
		Type:      FrameType(ev.Type),
		RoomID:    ev.RoomID,
		ActorID:   ev.ActorID,
		Message:   ev.Message,
		Count:     ev.Count,
		Timestamp: ev.Timestamp,
	}
}
