/*
Package favorites keeps the guest's starred hotels on the client.

Toggle flips the local state at once and confirms it with the service afterwards; a rejected
confirmation restores the previous state. The set belongs to one session and is dropped when the
session changes.
*/
package favorites

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

// Ledger is the local favorites set of the current guest.
type Ledger struct {
	api   *api.Client
	store *session.Store

	mu       sync.Mutex
	starred  map[string]bool
	hotels   map[string]model.Hotel
	revision int64

	logger zerolog.Logger
}

// New returns an empty ledger.
func New(client *api.Client, store *session.Store) *Ledger {
	return &Ledger{
		api:     client,
		store:   store,
		starred: make(map[string]bool),
		hotels:  make(map[string]model.Hotel),
		logger:  logx.Component("favorites"),
	}
}

func (l *Ledger) syncLocked() int64 {
	rev := l.store.Revision()
	if rev != l.revision {
		clear(l.starred)
		clear(l.hotels)
		l.revision = rev
	}
	return rev
}

func favoritePath(placeID string) string {
	return "/api/hotel/place/" + url.PathEscape(placeID) + "/favorite"
}

// guest returns the session if it belongs to a guest.
func (l *Ledger) guest() (session.Session, error) {
	sess, ok := l.store.Current()
	if !ok {
		return session.Session{}, errs.NewError(errs.ErrUnauthorized)
	}
	if sess.Identity.Role != model.RoleGuest {
		return session.Session{}, errs.NewError(errs.ErrForbidden)
	}
	return sess, nil
}

// Load replaces the local set with the guest's favorites from the service.
func (l *Ledger) Load(ctx context.Context) ([]model.Hotel, error) {
	if _, err := l.guest(); err != nil {
		return nil, err
	}

	var hotels []model.Hotel
	revision, err := l.api.Do(ctx, http.MethodGet, "/api/hotel/favorites", nil, &hotels)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.syncLocked() != revision {
		return nil, session.ErrStale
	}
	clear(l.starred)
	clear(l.hotels)
	for _, h := range hotels {
		l.starred[h.PlaceID] = true
		l.hotels[h.PlaceID] = h
	}
	return slices.Clone(hotels), nil
}

// IsFavorite reports the local state of placeID.
func (l *Ledger) IsFavorite(placeID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked()
	return l.starred[placeID]
}

// PlaceIDs returns the starred place ids in order.
func (l *Ledger) PlaceIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked()

	ids := make([]string, 0, len(l.starred))
	for id, on := range l.starred {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type favoriteResponse struct {
	PlaceID  string `json:"placeId"`
	Favorite bool   `json:"favorite"`
}

// Toggle stars placeID if it is not starred and unstars it otherwise. It returns the new state.
// Only guests have favorites; others fail with ErrForbidden and nothing changes.
func (l *Ledger) Toggle(ctx context.Context, placeID string) (bool, error) {
	sess, err := l.guest()
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	if l.syncLocked() != sess.Revision {
		l.mu.Unlock()
		return false, session.ErrStale
	}
	prev := l.starred[placeID]
	next := !prev
	l.starred[placeID] = next
	l.mu.Unlock()

	method := http.MethodDelete
	if next {
		method = http.MethodPost
	}

	var out favoriteResponse
	revision, err := l.api.Do(ctx, method, favoritePath(placeID), nil, &out)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		// A rejected token has already ended the session, which dropped the ledger with it.
		// A later toggle of the same hotel owns the state now.
		if l.syncLocked() == revision && l.starred[placeID] == next {
			l.starred[placeID] = prev
		}
		l.logger.Debug().Err(err).Str("place_id", placeID).Msg("Favorite toggle rolled back")
		return prev, err
	}
	if l.syncLocked() != revision {
		return prev, session.ErrStale
	}

	l.starred[placeID] = out.Favorite
	if !out.Favorite {
		delete(l.hotels, placeID)
	}
	return out.Favorite, nil
}

// Hotels returns the starred hotels known from the last Load, by name.
func (l *Ledger) Hotels() []model.Hotel {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked()

	out := make([]model.Hotel, 0, len(l.hotels))
	for id, h := range l.hotels {
		if l.starred[id] {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b model.Hotel) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.PlaceID, b.PlaceID)
	})
	return out
}
