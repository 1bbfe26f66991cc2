// Package favorite keeps each guest's set of starred hotels.
package favorite

import (
	"context"

	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

// Repository persists favorite entries. ToggleFavorite flips membership atomically and reports
// the new state. ListFavorites skips hotels that no longer exist.
type Repository interface {
	AddFavorite(ctx context.Context, guestID, placeID string) error
	RemoveFavorite(ctx context.Context, guestID, placeID string) error
	ToggleFavorite(ctx context.Context, guestID, placeID string) (bool, error)
	IsFavorite(ctx context.Context, guestID, placeID string) (bool, error)
	ListFavorites(ctx context.Context, guestID string) ([]model.Hotel, error)
}

// HotelResolver looks hotels up by place id.
type HotelResolver interface {
	Resolve(ctx context.Context, placeID string) (model.Hotel, error)
}

// Ledger is the favorites ledger.
type Ledger struct {
	repo   Repository
	hotels HotelResolver
	logger zerolog.Logger
}

// NewLedger returns a ledger backed by repo.
func NewLedger(repo Repository, hotels HotelResolver) *Ledger {
	return &Ledger{repo: repo, hotels: hotels, logger: logx.Component("favorite")}
}

// authorize allows guests to act on their own favorites only.
func authorize(caller model.Identity, guestID string) error {
	if caller.ID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}
	if caller.Role != model.RoleGuest || caller.ID != guestID {
		return errs.NewError(errs.ErrForbidden)
	}
	return nil
}

// Toggle flips the caller's favorite of placeID and returns the new state.
func (l *Ledger) Toggle(ctx context.Context, caller model.Identity, placeID string) (bool, error) {
	return l.ToggleFor(ctx, caller, caller.ID, placeID)
}

// ToggleFor flips guestID's favorite of placeID on behalf of caller.
func (l *Ledger) ToggleFor(ctx context.Context, caller model.Identity, guestID, placeID string) (bool, error) {
	if err := authorize(caller, guestID); err != nil {
		return false, err
	}

	current, err := l.repo.IsFavorite(ctx, guestID, placeID)
	if err != nil {
		return false, err
	}
	// Unstarring always works; starring needs a hotel that exists.
	if !current {
		if _, err := l.hotels.Resolve(ctx, placeID); err != nil {
			return false, err
		}
	}

	now, err := l.repo.ToggleFavorite(ctx, guestID, placeID)
	if err != nil {
		return false, err
	}

	l.logger.Debug().Str("guest_id", guestID).Str("place_id", placeID).Bool("favorite", now).Msg("Favorite toggled")
	return now, nil
}

// Add stars placeID for the caller. Adding an existing favorite is a no-op.
func (l *Ledger) Add(ctx context.Context, caller model.Identity, placeID string) error {
	if err := authorize(caller, caller.ID); err != nil {
		return err
	}
	if _, err := l.hotels.Resolve(ctx, placeID); err != nil {
		return err
	}
	return l.repo.AddFavorite(ctx, caller.ID, placeID)
}

// Remove unstars placeID for the caller. Removing a missing favorite is a no-op.
func (l *Ledger) Remove(ctx context.Context, caller model.Identity, placeID string) error {
	if err := authorize(caller, caller.ID); err != nil {
		return err
	}
	return l.repo.RemoveFavorite(ctx, caller.ID, placeID)
}

// IsFavorite reports whether the caller starred placeID.
func (l *Ledger) IsFavorite(ctx context.Context, caller model.Identity, placeID string) (bool, error) {
	if err := authorize(caller, caller.ID); err != nil {
		return false, err
	}
	return l.repo.IsFavorite(ctx, caller.ID, placeID)
}

// List returns the hotels the caller starred.
func (l *Ledger) List(ctx context.Context, caller model.Identity) ([]model.Hotel, error) {
	if err := authorize(caller, caller.ID); err != nil {
		return nil, err
	}
	return l.repo.ListFavorites(ctx, caller.ID)
}
