/*
Package conversation is the client side of the chat room engine.

It speaks the chat protocol of the service and keeps a read-through cache of the rooms the user
opened. The service owns the message sequence: cached messages are always kept in the service's
order, and a message being sent is shown as pending at the end until the service confirms it.
*/
package conversation

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/randx"
)

// pendingPrefix marks the ID of a message the service has not confirmed yet.
const pendingPrefix = "pending:"

// IsPending reports whether msg is a local placeholder for a message being sent.
func IsPending(msg model.Message) bool {
	return strings.HasPrefix(msg.ID, pendingPrefix)
}

// Engine is the client chat engine of one session store.
type Engine struct {
	api   *api.Client
	store *session.Store

	mu       sync.Mutex
	rooms    map[string]model.ChatRoom
	revision int64

	now    func() time.Time
	logger zerolog.Logger
}

// New returns an engine with an empty cache.
func New(client *api.Client, store *session.Store) *Engine {
	return &Engine{
		api:    client,
		store:  store,
		rooms:  make(map[string]model.ChatRoom),
		now:    time.Now,
		logger: logx.Component("conversation"),
	}
}

// syncLocked drops the cache when the session changed since it was filled.
func (e *Engine) syncLocked() int64 {
	rev := e.store.Revision()
	if rev != e.revision {
		clear(e.rooms)
		e.revision = rev
	}
	return rev
}

// remember caches room if the session is still the one the room was fetched under.
func (e *Engine) remember(revision int64, room model.ChatRoom) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.syncLocked() != revision {
		return session.ErrStale
	}
	if pending := pendingOf(e.rooms[room.ID]); len(pending) > 0 {
		room.Messages = append(slices.Clone(room.Messages), pending...)
	}
	e.rooms[room.ID] = room
	return nil
}

func pendingOf(room model.ChatRoom) []model.Message {
	var out []model.Message
	for _, m := range room.Messages {
		if IsPending(m) {
			out = append(out, m)
		}
	}
	return out
}

func cloneRoom(room model.ChatRoom) model.ChatRoom {
	room.Participants = slices.Clone(room.Participants)
	room.Messages = slices.Clone(room.Messages)
	return room
}

func roomPath(roomID string) string {
	return "/api/chat/" + url.PathEscape(roomID)
}

type offerRequest struct {
	Message string `json:"message,omitempty"`
}

type offerResponse struct {
	Room    model.ChatRoom `json:"room"`
	Created bool           `json:"created"`
}

// CreateOrGetRoom opens the inquiry about placeID, or returns the one the guest already has.
// A non-empty inquiry becomes the first message of a new room. created reports whether this call
// created the room.
func (e *Engine) CreateOrGetRoom(ctx context.Context, placeID, inquiry string) (room model.ChatRoom, created bool, err error) {
	if strings.TrimSpace(placeID) == "" {
		return model.ChatRoom{}, false, errs.NewError(errs.ErrHotelNotFound)
	}

	var out offerResponse
	revision, err := e.api.Do(ctx, http.MethodPost, "/api/chat/offer/"+url.PathEscape(placeID), offerRequest{Message: inquiry}, &out)
	if err != nil {
		return model.ChatRoom{}, false, err
	}
	if err := e.remember(revision, out.Room); err != nil {
		return model.ChatRoom{}, false, err
	}
	return cloneRoom(out.Room), out.Created, nil
}

// Room returns the room from the cache, fetching it on a miss.
func (e *Engine) Room(ctx context.Context, roomID string) (model.ChatRoom, error) {
	e.mu.Lock()
	e.syncLocked()
	room, ok := e.rooms[roomID]
	e.mu.Unlock()
	if ok {
		return cloneRoom(room), nil
	}
	return e.Reload(ctx, roomID)
}

// Reload fetches the room from the service and replaces the cached copy.
func (e *Engine) Reload(ctx context.Context, roomID string) (model.ChatRoom, error) {
	var room model.ChatRoom
	revision, err := e.api.Do(ctx, http.MethodGet, roomPath(roomID), nil, &room)
	if err != nil {
		if errs.Is(err, errs.ErrRoomNotFound) {
			e.Forget(roomID)
		}
		return model.ChatRoom{}, err
	}
	model.SortMessages(room.Messages)
	if err := e.remember(revision, room); err != nil {
		return model.ChatRoom{}, err
	}
	return e.cached(roomID, room), nil
}

func (e *Engine) cached(roomID string, fallback model.ChatRoom) model.ChatRoom {
	e.mu.Lock()
	defer e.mu.Unlock()
	if room, ok := e.rooms[roomID]; ok {
		return cloneRoom(room)
	}
	return cloneRoom(fallback)
}

// Forget drops a room from the cache.
func (e *Engine) Forget(roomID string) {
	e.mu.Lock()
	delete(e.rooms, roomID)
	e.mu.Unlock()
}

type messageRequest struct {
	Content string `json:"content"`
}

// Send appends content to the room. While the request is in flight a pending copy of the
// message sits at the end of the cached room; it is replaced by the service's message on
// success and removed on failure.
func (e *Engine) Send(ctx context.Context, roomID, content string) (model.Message, error) {
	sess, ok := e.store.Current()
	if !ok {
		return model.Message{}, errs.NewError(errs.ErrUnauthorized)
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return model.Message{}, errs.NewError(errs.ErrEmptyContent)
	}
	if len(trimmed) > model.MaxMessageBytes {
		return model.Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}

	pending := model.Message{
		ID:         pendingPrefix + randx.NewID(),
		ChatRoomID: roomID,
		SenderID:   sess.Identity.ID,
		Content:    trimmed,
		Timestamp:  e.now().UTC(),
	}
	e.mutate(sess.Revision, roomID, func(room *model.ChatRoom) {
		room.Messages = append(room.Messages, pending)
	})

	var msg model.Message
	revision, err := e.api.Do(ctx, http.MethodPost, roomPath(roomID)+"/message", messageRequest{Content: trimmed}, &msg)

	e.mutate(revision, roomID, func(room *model.ChatRoom) {
		room.Messages = slices.DeleteFunc(room.Messages, func(m model.Message) bool { return m.ID == pending.ID })
		if err == nil {
			room.Messages = mergeMessage(room.Messages, msg)
			if msg.Timestamp.After(room.UpdatedAt) {
				room.UpdatedAt = msg.Timestamp
			}
		}
	})

	if err != nil {
		e.logger.Debug().Err(err).Str("room_id", roomID).Msg("Send failed, pending message rolled back")
		if errs.Is(err, errs.ErrRoomNotFound) {
			e.Forget(roomID)
		}
		return model.Message{}, err
	}
	return msg, nil
}

// mutate applies fn to the cached room, if it is cached for the given session revision.
func (e *Engine) mutate(revision int64, roomID string, fn func(*model.ChatRoom)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.syncLocked() != revision {
		return
	}
	room, ok := e.rooms[roomID]
	if !ok {
		return
	}
	room = cloneRoom(room)
	fn(&room)
	e.rooms[roomID] = room
}

// mergeMessage inserts or replaces msg among the confirmed messages in room order. Pending
// messages stay at the end.
func mergeMessage(msgs []model.Message, msg model.Message) []model.Message {
	var confirmed, pending []model.Message
	replaced := false
	for _, m := range msgs {
		switch {
		case IsPending(m):
			pending = append(pending, m)
		case m.ID == msg.ID:
			confirmed = append(confirmed, msg)
			replaced = true
		default:
			confirmed = append(confirmed, m)
		}
	}
	if !replaced {
		confirmed = append(confirmed, msg)
	}
	model.SortMessages(confirmed)
	return append(confirmed, pending...)
}

// Close closes the room. Only operators may close rooms; others fail with ErrForbidden without
// contacting the service.
func (e *Engine) Close(ctx context.Context, roomID string) error {
	sess, ok := e.store.Current()
	if !ok {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if sess.Identity.Role != model.RoleOperator {
		return errs.NewError(errs.ErrForbidden)
	}

	if _, err := e.api.Do(ctx, http.MethodDelete, roomPath(roomID), nil, nil); err != nil {
		return err
	}
	e.Forget(roomID)
	return nil
}

// MarkRead marks every message the caller did not send as read.
func (e *Engine) MarkRead(ctx context.Context, roomID string) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	revision, err := e.api.Do(ctx, http.MethodPost, roomPath(roomID)+"/read", nil, &out)
	if err != nil {
		return 0, err
	}

	sess, _ := e.store.Current()
	e.mutate(revision, roomID, func(room *model.ChatRoom) {
		markRead(room, sess.Identity.ID)
	})
	return out.Updated, nil
}

func markRead(room *model.ChatRoom, readerID string) {
	for i, m := range room.Messages {
		if m.SenderID != readerID && !IsPending(m) {
			room.Messages[i].DeliveryState = model.DeliveryRead
		}
	}
}
