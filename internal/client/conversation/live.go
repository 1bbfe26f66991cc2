package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/wire"
)

// liveURL turns the service root into the websocket address of a room.
func liveURL(base, roomID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat/" + url.PathEscape(roomID)
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// Listen follows the live channel of a room until ctx ends or the service ends the connection.
// Every frame is applied to the cache before it is handed to fn. Listen returns nil when ctx
// ends, ErrRoomNotFound when the room was closed and ErrSessionExpired when the service ended
// the session.
func (e *Engine) Listen(ctx context.Context, roomID string, fn func(wire.Frame)) error {
	token, revision := e.store.Credential()
	if token == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}

	addr, err := liveURL(e.api.BaseURL(), roomID, token)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	conn, res, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		if res == nil {
			return errs.NewError(errs.ErrNetwork, err)
		}
		defer res.Body.Close()
		switch res.StatusCode {
		case http.StatusUnauthorized:
			e.store.Invalidate(revision, "live channel rejected the token")
			return errs.NewError(errs.ErrSessionExpired)
		case http.StatusForbidden:
			return errs.NewError(errs.ErrForbidden)
		case http.StatusNotFound:
			e.Forget(roomID)
			return errs.NewError(errs.ErrRoomNotFound)
		default:
			return errs.NewError(errs.ErrNetwork, err)
		}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return e.liveClosed(roomID, revision, err)
		}

		frame, err := wire.DecodeFrame(data)
		if err != nil {
			e.logger.Warn().Err(err).Str("room_id", roomID).Msg("Ignoring malformed live frame")
			continue
		}
		e.ApplyFrame(revision, frame)
		if fn != nil {
			fn(frame)
		}
	}
}

func (e *Engine) liveClosed(roomID string, revision int64, err error) error {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return errs.NewError(errs.ErrNetwork, err)
	}
	switch closeErr.Code {
	case wire.CloseCodeRoomClosed:
		e.Forget(roomID)
		return errs.NewError(errs.ErrRoomNotFound)
	case wire.CloseCodeSessionExpired:
		e.store.Invalidate(revision, "live channel reported an expired session")
		return errs.NewError(errs.ErrSessionExpired)
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		return nil
	default:
		return errs.NewError(errs.ErrNetwork, err)
	}
}

// ApplyFrame folds a live frame into the cached room of the given session revision.
func (e *Engine) ApplyFrame(revision int64, frame wire.Frame) {
	switch frame.Type {
	case wire.FrameMessageCreated:
		if frame.Message == nil {
			return
		}
		msg := *frame.Message
		e.mutate(revision, frame.RoomID, func(room *model.ChatRoom) {
			room.Messages = mergeMessage(room.Messages, msg)
			if msg.Timestamp.After(room.UpdatedAt) {
				room.UpdatedAt = msg.Timestamp
			}
			if !room.HasParticipant(msg.SenderID) {
				room.Participants = append(room.Participants, model.ParticipantRef{ID: msg.SenderID})
			}
		})
	case wire.FrameMessagesRead:
		e.mutate(revision, frame.RoomID, func(room *model.ChatRoom) {
			markRead(room, frame.ActorID)
		})
	case wire.FrameUserJoined:
		if frame.User == nil {
			return
		}
		user := *frame.User
		e.mutate(revision, frame.RoomID, func(room *model.ChatRoom) {
			i := slices.IndexFunc(room.Participants, func(p model.ParticipantRef) bool { return p.ID == user.ID })
			if i >= 0 && room.Participants[i].Username == "" {
				room.Participants[i] = user
			}
		})
	case wire.FrameRoomClosed:
		e.Forget(frame.RoomID)
	}
}

// closeDeadline bounds the write of a close frame.
func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}
