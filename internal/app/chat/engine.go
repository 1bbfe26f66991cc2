/*
Package chat contains the authoritative chat logic: creating or reusing the room between a guest
and a hotel, appending messages, closing rooms and listing them for the caller.

Every operation checks the caller's role and participation before touching the store, and every
committed change is handed to a Notifier so live connections can be updated.
*/
package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/randx"
)

// NewRoom is the row created by Repository.CreateRoomIfAbsent.
type NewRoom struct {
	ID        string
	PlaceID   string
	GuestID   string
	StaffIDs  []string
	CreatedAt time.Time
}

// NewMessage is the row appended by Repository.InsertMessage.
type NewMessage struct {
	ID       string
	RoomID   string
	SenderID string
	Content  string

	// Timestamp is the proposed time. The store raises it to the room's last message time so
	// timestamps never decrease within a room.
	Timestamp time.Time

	// JoinSender adds the sender to the room's participants in the same transaction.
	JoinSender bool
}

// RoomFilter narrows ListRooms. An empty ParticipantID lists every open room.
type RoomFilter struct {
	ParticipantID string
}

// Repository persists rooms and messages.
//
// RoomByID and InsertMessage return errs.ErrRoomNotFound for unknown and closed rooms.
// Rooms whose hotel no longer exists are returned with a nil Hotel. ListRooms returns only the
// last message of each room.
type Repository interface {
	CreateRoomIfAbsent(ctx context.Context, room NewRoom) (model.ChatRoom, bool, error)
	RoomByID(ctx context.Context, roomID string) (model.ChatRoom, error)
	InsertMessage(ctx context.Context, msg NewMessage) (model.Message, error)
	CloseRoom(ctx context.Context, roomID string) error
	ListRooms(ctx context.Context, filter RoomFilter) ([]model.ChatRoom, error)
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
}

// HotelResolver is the part of the hotel registry the engine needs.
type HotelResolver interface {
	Resolve(ctx context.Context, placeID string) (model.Hotel, error)
	Staff(ctx context.Context, h model.Hotel) ([]string, error)
}

// DefaultInquiry is the first message of a room when the guest does not write one.
func DefaultInquiry(hotelName string) string {
	return fmt.Sprintf("I am interested in hotel %s and would like more information.", hotelName)
}

// Engine is the chat engine.
type Engine struct {
	repo     Repository
	hotels   HotelResolver
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the receiver of room events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns a chat engine.
func NewEngine(repo Repository, hotels HotelResolver, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		hotels:   hotels,
		notifier: discardNotifier{},
		now:      time.Now,
		logger:   logx.Component("chat"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errs.NewError(errs.ErrEmptyContent)
	}
	if len(content) > model.MaxMessageBytes {
		return "", errs.NewError(errs.ErrMessageContentTooLong)
	}
	return content, nil
}

// CreateOrGetRoom returns the open room between the guest and the hotel, creating it when none
// exists. A new room is seeded with inquiry, or with DefaultInquiry when inquiry is blank. An
// existing room is returned unchanged. The boolean reports whether the room was created.
func (e *Engine) CreateOrGetRoom(ctx context.Context, caller model.Identity, placeID, inquiry string) (model.ChatRoom, bool, error) {
	if caller.ID == "" {
		return model.ChatRoom{}, false, errs.NewError(errs.ErrUnauthorized)
	}
	if caller.Role != model.RoleGuest {
		return model.ChatRoom{}, false, errs.NewError(errs.ErrForbidden)
	}

	hotel, err := e.hotels.Resolve(ctx, placeID)
	if err != nil {
		return model.ChatRoom{}, false, err
	}

	first := strings.TrimSpace(inquiry)
	if first == "" {
		first = DefaultInquiry(hotel.Name)
	}
	if first, err = normalizeContent(first); err != nil {
		return model.ChatRoom{}, false, err
	}

	staff, err := e.hotels.Staff(ctx, hotel)
	if err != nil {
		return model.ChatRoom{}, false, err
	}
	staff = slices.DeleteFunc(slices.Clone(staff), func(id string) bool { return id == caller.ID })

	room, created, err := e.repo.CreateRoomIfAbsent(ctx, NewRoom{
		ID:        randx.RoomID(),
		PlaceID:   hotel.PlaceID,
		GuestID:   caller.ID,
		StaffIDs:  staff,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		return model.ChatRoom{}, false, err
	}
	if !created {
		return room, false, nil
	}

	msg, err := e.insert(ctx, room.ID, caller.ID, first, false)
	if err != nil {
		e.logger.Error().Err(err).Str("room_id", room.ID).Msg("Failed to seed inquiry message")
		// An open room without its inquiry would be handed back to every retry.
		if closeErr := e.repo.CloseRoom(ctx, room.ID); closeErr != nil {
			e.logger.Error().Err(closeErr).Str("room_id", room.ID).Msg("Failed to close unseeded chat room")
		}
		return model.ChatRoom{}, false, err
	}
	room.Messages = append(room.Messages, msg)
	room.UpdatedAt = msg.Timestamp

	e.logger.Info().
		Str("room_id", room.ID).
		Str("place_id", hotel.PlaceID).
		Str("guest_id", caller.ID).
		Int("staff", len(staff)).
		Msg("Chat room opened")
	return room, true, nil
}

// AppendMessage appends a message from the caller to a room.
//
// The caller must be a participant. An operator who staffs the room's hotel but is not yet a
// participant joins the room with the message.
func (e *Engine) AppendMessage(ctx context.Context, caller model.Identity, roomID, content string) (model.Message, error) {
	if caller.ID == "" {
		return model.Message{}, errs.NewError(errs.ErrUnauthorized)
	}

	content, err := normalizeContent(content)
	if err != nil {
		return model.Message{}, err
	}

	room, err := e.repo.RoomByID(ctx, roomID)
	if err != nil {
		return model.Message{}, err
	}

	join := false
	if !room.HasParticipant(caller.ID) {
		if !e.staffs(ctx, caller, room) {
			return model.Message{}, errs.NewError(errs.ErrNotAParticipant)
		}
		join = true
	}

	msg, err := e.insert(ctx, room.ID, caller.ID, content, join)
	if err != nil {
		return model.Message{}, err
	}
	if join {
		e.logger.Info().Str("room_id", room.ID).Str("operator_id", caller.ID).Msg("Operator joined chat room")
	}
	return msg, nil
}

// staffs reports whether an operator answers for the hotel of room.
func (e *Engine) staffs(ctx context.Context, caller model.Identity, room model.ChatRoom) bool {
	if caller.Role != model.RoleOperator || room.Hotel == nil {
		return false
	}
	hotel, err := e.hotels.Resolve(ctx, room.Hotel.PlaceID)
	if err != nil {
		return false
	}
	staff, err := e.hotels.Staff(ctx, hotel)
	if err != nil {
		return false
	}
	return slices.Contains(staff, caller.ID)
}

func (e *Engine) insert(ctx context.Context, roomID, senderID, content string, join bool) (model.Message, error) {
	msg, err := e.repo.InsertMessage(ctx, NewMessage{
		ID:         randx.MessageID(),
		RoomID:     roomID,
		SenderID:   senderID,
		Content:    content,
		Timestamp:  e.now().UTC(),
		JoinSender: join,
	})
	if err != nil {
		return model.Message{}, err
	}

	e.notifier.Publish(Event{
		Type:      EventMessageCreated,
		RoomID:    roomID,
		ActorID:   senderID,
		Message:   &msg,
		Timestamp: msg.Timestamp,
	})
	return msg, nil
}

// CloseRoom closes a room. Only operators may close rooms; closing is terminal.
func (e *Engine) CloseRoom(ctx context.Context, caller model.Identity, roomID string) error {
	if caller.ID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if caller.Role != model.RoleOperator {
		return errs.NewError(errs.ErrForbidden)
	}

	if err := e.repo.CloseRoom(ctx, roomID); err != nil {
		return err
	}

	e.notifier.Publish(Event{
		Type:      EventRoomClosed,
		RoomID:    roomID,
		ActorID:   caller.ID,
		Timestamp: e.now().UTC(),
	})
	e.logger.Info().Str("room_id", roomID).Str("operator_id", caller.ID).Msg("Chat room closed")
	return nil
}

// GetRoom returns a room with its full message history. Participants can read their rooms;
// operators and admins can read every room.
func (e *Engine) GetRoom(ctx context.Context, caller model.Identity, roomID string) (model.ChatRoom, error) {
	if caller.ID == "" {
		return model.ChatRoom{}, errs.NewError(errs.ErrUnauthorized)
	}

	room, err := e.repo.RoomByID(ctx, roomID)
	if err != nil {
		return model.ChatRoom{}, err
	}
	if !room.HasParticipant(caller.ID) && !caller.Role.SeesAllRooms() {
		return model.ChatRoom{}, errs.NewError(errs.ErrForbidden)
	}
	return room, nil
}

// ListRooms returns the open rooms visible to the caller, most recently active first. By default
// every caller sees the rooms it takes part in; with all set, operators and admins see every
// room. Orphaned rooms are left out.
func (e *Engine) ListRooms(ctx context.Context, caller model.Identity, all bool) ([]model.ChatRoom, error) {
	if caller.ID == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	filter := RoomFilter{ParticipantID: caller.ID}
	if all {
		if !caller.Role.SeesAllRooms() {
			return nil, errs.NewError(errs.ErrForbidden)
		}
		filter.ParticipantID = ""
	}

	rooms, err := e.repo.ListRooms(ctx, filter)
	if err != nil {
		return nil, err
	}

	rooms = slices.DeleteFunc(rooms, func(r model.ChatRoom) bool {
		return r.Orphaned() || r.Status != model.RoomOpen
	})
	model.SortRoomsByRecency(rooms)
	return rooms, nil
}

// MarkRead marks every message of the room not sent by the caller as read.
func (e *Engine) MarkRead(ctx context.Context, caller model.Identity, roomID string) (int64, error) {
	if caller.ID == "" {
		return 0, errs.NewError(errs.ErrUnauthorized)
	}

	room, err := e.repo.RoomByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !room.HasParticipant(caller.ID) {
		return 0, errs.NewError(errs.ErrNotAParticipant)
	}

	n, err := e.repo.MarkRead(ctx, roomID, caller.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.notifier.Publish(Event{
			Type:      EventMessagesRead,
			RoomID:    roomID,
			ActorID:   caller.ID,
			Count:     n,
			Timestamp: e.now().UTC(),
		})
	}
	return n, nil
}
