/*
Package directory lists the chat rooms visible to the session's identity.

Operators and admins see every room; guests see their own. Rooms whose hotel no longer resolves
are hidden, never deleted. The listing is cached per session and dropped whenever the session
changes, so one identity's rooms are never shown to the next.
*/
package directory

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

// Directory is the cached room listing of the current session.
type Directory struct {
	api   *api.Client
	store *session.Store

	mu       sync.Mutex
	rooms    []model.ChatRoom
	revision int64
	role     model.Role

	logger zerolog.Logger
}

// New returns an empty directory reading identity from store.
func New(client *api.Client, store *session.Store) *Directory {
	return &Directory{api: client, store: store, logger: logx.Component("directory")}
}

// Refresh fetches the listing for the current identity and replaces the cache.
// A listing that arrives after the session changed is discarded with session.ErrStale.
func (d *Directory) Refresh(ctx context.Context) ([]model.ChatRoom, error) {
	sess, ok := d.store.Current()
	if !ok {
		d.Reset()
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	path := "/api/chat"
	if sess.Identity.Role.SeesAllRooms() {
		path = "/api/chat/all"
	}

	var rooms []model.ChatRoom
	revision, err := d.api.Do(ctx, http.MethodGet, path, nil, &rooms)
	if err != nil {
		return nil, err
	}

	rooms = slices.DeleteFunc(rooms, func(r model.ChatRoom) bool {
		return r.Orphaned() || r.Status == model.RoomClosed
	})
	model.SortRoomsByRecency(rooms)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store.Revision() != revision {
		d.logger.Debug().Int64("revision", revision).Msg("Discarding listing of a superseded session")
		return nil, session.ErrStale
	}
	d.rooms = rooms
	d.revision = revision
	d.role = sess.Identity.Role
	return slices.Clone(rooms), nil
}

// Rooms returns the cached listing. It is empty until Refresh succeeds for the current session.
func (d *Directory) Rooms() []model.ChatRoom {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revision != d.store.Revision() {
		return nil
	}
	return slices.Clone(d.rooms)
}

// Reset drops the cached listing.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.rooms = nil
	d.revision = 0
	d.role = ""
	d.mu.Unlock()
}

// Apply records a message pushed by the live channel: the room's preview and position move to
// the front. Messages of rooms not in the listing are ignored until the next Refresh.
func (d *Directory) Apply(msg model.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.rooms, func(r model.ChatRoom) bool { return r.ID == msg.ChatRoomID })
	if i < 0 {
		return false
	}
	room := d.rooms[i]
	if last, ok := room.LastMessage(); ok && !model.MessageLess(last, msg) {
		return false
	}
	room.Messages = []model.Message{msg}
	if msg.Timestamp.After(room.UpdatedAt) {
		room.UpdatedAt = msg.Timestamp
	}
	d.rooms[i] = room
	model.SortRoomsByRecency(d.rooms)
	return true
}

// Remove drops a room from the listing, e.g. after it was closed.
func (d *Directory) Remove(roomID string) {
	d.mu.Lock()
	d.rooms = slices.DeleteFunc(d.rooms, func(r model.ChatRoom) bool { return r.ID == roomID })
	d.mu.Unlock()
}

// Run keeps the directory in step with the session until ctx ends. Every login, logout or role
// change drops the cache; an authenticated session with a resolved role is listed again and the
// outcome passed to notify.
func (d *Directory) Run(ctx context.Context, notify func([]model.ChatRoom, error)) {
	updates, cancel := d.store.Subscribe()
	defer cancel()

	lastRevision := int64(-1)
	var lastRole model.Role

	handle := func(snap session.Snapshot) {
		sess := snap.Session
		if sess.Revision == lastRevision && sess.Identity.Role == lastRole {
			return
		}
		lastRevision, lastRole = sess.Revision, sess.Identity.Role
		d.Reset()

		if !sess.Authenticated() || !sess.Resolved {
			if notify != nil {
				notify(nil, nil)
			}
			return
		}
		rooms, err := d.Refresh(ctx)
		if errors.Is(err, session.ErrStale) {
			return
		}
		if notify != nil {
			notify(rooms, err)
		}
	}

	handle(d.store.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			handle(snap)
		}
	}
}
