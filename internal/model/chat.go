package model

import (
	"slices"
	"time"
)

// RoomStatus is the lifecycle state of a chat room. Closed is terminal.
type RoomStatus string

const (
	RoomOpen   RoomStatus = "open"
	RoomClosed RoomStatus = "closed"
)

// MaxMessageBytes is the upper bound of a message body after trimming.
const MaxMessageBytes = 5000

// DeliveryState of a message. Only sent → read transitions are produced today;
// delivered is reserved.
type DeliveryState string

const (
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
)

// ParticipantRef identifies a participant of a chat room.
type ParticipantRef struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// Message is a single entry of a room's append-only message sequence.
type Message struct {
	ID            string        `json:"id"`
	ChatRoomID    string        `json:"chatRoomId"`
	SenderID      string        `json:"senderId"`
	Seq           int64         `json:"seq"`
	Content       string        `json:"content"`
	Timestamp     time.Time     `json:"timestamp"`
	DeliveryState DeliveryState `json:"status"`
}

// MessageLess orders messages by timestamp, then by server-assigned sequence.
func MessageLess(a, b Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

// SortMessages sorts msgs in place in room order. The sort is stable.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		switch {
		case MessageLess(a, b):
			return -1
		case MessageLess(b, a):
			return 1
		default:
			return 0
		}
	})
}

// ChatRoom is a conversation about one hotel between one guest and the hotel's staff.
// Hotel is nil when the hotel no longer resolves (orphaned room).
type ChatRoom struct {
	ID           string           `json:"id"`
	Hotel        *HotelRef        `json:"hotel"`
	Participants []ParticipantRef `json:"participants"`
	Messages     []Message        `json:"messages"`
	Status       RoomStatus       `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// HasParticipant reports whether identityID takes part in the room.
func (r ChatRoom) HasParticipant(identityID string) bool {
	return slices.ContainsFunc(r.Participants, func(p ParticipantRef) bool {
		return p.ID == identityID
	})
}

// Guest returns the single guest participant of the room.
func (r ChatRoom) Guest() (ParticipantRef, bool) {
	for _, p := range r.Participants {
		if p.Role == RoleGuest {
			return p, true
		}
	}
	return ParticipantRef{}, false
}

// Orphaned reports whether the room's hotel no longer resolves.
func (r ChatRoom) Orphaned() bool {
	return r.Hotel == nil
}

// LastMessage returns the most recent message, if any.
func (r ChatRoom) LastMessage() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

// SortRoomsByRecency sorts rooms by UpdatedAt descending, ties by ID.
func SortRoomsByRecency(rooms []ChatRoom) {
	slices.SortStableFunc(rooms, func(a, b ChatRoom) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
