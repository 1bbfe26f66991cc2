/*
Package wire defines the frames pushed over a room's live websocket channel and the close codes
that end it. The service encodes them and the client decodes them, so both sides share this
package instead of each other's internals.
*/
package wire

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"hotelchat/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FrameType names a server → client websocket frame.
type FrameType string

const (
	FrameInit           FrameType = "INIT"
	FrameUserJoined     FrameType = "USER_JOINED"
	FrameUserLeft       FrameType = "USER_LEFT"
	FrameMessageCreated FrameType = "MESSAGE_CREATED"
	FrameMessagesRead   FrameType = "MESSAGES_READ"
	FrameRoomClosed     FrameType = "ROOM_CLOSED"
)

const (
	// CloseCodeSessionKicked tells the client its connection was replaced.
	CloseCodeSessionKicked = 4001

	// CloseCodeRoomClosed tells the client the room was closed by an operator.
	CloseCodeRoomClosed = 4002

	// CloseCodeSessionExpired tells the client its token ran out; it should sign in again.
	CloseCodeSessionExpired = 4003
)

// Frame is the JSON document pushed to live subscribers.
type Frame struct {
	Type      FrameType              `json:"type"`
	RoomID    string                 `json:"roomId"`
	ActorID   string                 `json:"actorId,omitempty"`
	Message   *model.Message         `json:"message,omitempty"`
	Count     int64                  `json:"count,omitempty"`
	User      *model.ParticipantRef  `json:"user,omitempty"`
	Online    []model.ParticipantRef `json:"online,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Encode returns the wire form of f.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses a frame received from the service.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
