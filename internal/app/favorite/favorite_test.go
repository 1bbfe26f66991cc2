package favorite_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/app/favorite"
	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/memstore"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

var (
	guest    = model.Identity{ID: "guest-1", Username: "gina", Role: model.RoleGuest}
	other    = model.Identity{ID: "guest-2", Username: "gus", Role: model.RoleGuest}
	operator = model.Identity{ID: "op-1", Username: "opal", Role: model.RoleOperator}
)

func newLedger(t *testing.T) (*favorite.Ledger, *hotel.Registry) {
	t.Helper()

	store := memstore.New()
	for _, h := range []model.Hotel{
		{PlaceID: "place-1", Name: "Harbor View"},
		{PlaceID: "place-2", Name: "Alpine Lodge"},
	} {
		_, err := store.CreateHotel(context.Background(), h)
		require.NoError(t, err)
	}
	hotels := hotel.NewRegistry(store)
	return favorite.NewLedger(store, hotels), hotels
}

func TestToggle_FlipsState(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	on, err := ledger.Toggle(ctx, guest, "place-1")
	require.NoError(t, err)
	assert.True(t, on)

	is, err := ledger.IsFavorite(ctx, guest, "place-1")
	require.NoError(t, err)
	assert.True(t, is)

	off, err := ledger.Toggle(ctx, guest, "place-1")
	require.NoError(t, err)
	assert.False(t, off)

	is, err = ledger.IsFavorite(ctx, guest, "place-1")
	require.NoError(t, err)
	assert.False(t, is)
}

func TestToggle_ConcurrentTogglesKeepParity(t *testing.T) {
	ledger, _ := newLedger(t)

	const toggles = 40
	var wg sync.WaitGroup
	for range toggles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Toggle(context.Background(), guest, "place-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	is, err := ledger.IsFavorite(context.Background(), guest, "place-1")
	require.NoError(t, err)
	assert.False(t, is, "an even number of toggles must end where it started")
}

func TestToggle_UnknownHotel(t *testing.T) {
	ledger, hotels := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Toggle(ctx, guest, "nowhere")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrHotelNotFound))

	on, err := ledger.Toggle(ctx, guest, "place-2")
	require.NoError(t, err)
	require.True(t, on)

	require.NoError(t, hotels.Delete(ctx, operator, "place-2"))

	off, err := ledger.Toggle(ctx, guest, "place-2")
	require.NoError(t, err, "unstarring a deleted hotel must still work")
	assert.False(t, off)
}

func TestToggleFor_RejectsOtherGuestsAndNonGuests(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	_, err := ledger.ToggleFor(ctx, guest, other.ID, "place-1")
	assert.True(t, errs.Is(err, errs.ErrForbidden))

	_, err = ledger.Toggle(ctx, operator, "place-1")
	assert.True(t, errs.Is(err, errs.ErrForbidden))

	_, err = ledger.Toggle(ctx, model.Identity{}, "place-1")
	assert.True(t, errs.Is(err, errs.ErrUnauthorized))

	is, err := ledger.IsFavorite(ctx, other, "place-1")
	require.NoError(t, err)
	assert.False(t, is, "a rejected toggle must not change state")
}

func TestAddRemoveAndList(t *testing.T) {
	ledger, hotels := newLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Add(ctx, guest, "place-2"))
	require.NoError(t, ledger.Add(ctx, guest, "place-1"))
	require.NoError(t, ledger.Add(ctx, guest, "place-1"), "adding twice is a no-op")
	require.NoError(t, ledger.Add(ctx, other, "place-1"))

	list, err := ledger.List(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, ledger.Remove(ctx, guest, "place-2"))
	require.NoError(t, ledger.Remove(ctx, guest, "place-2"), "removing twice is a no-op")

	list, err = ledger.List(ctx, guest)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "place-1", list[0].PlaceID)

	require.NoError(t, hotels.Delete(ctx, operator, "place-1"))
	list, err = ledger.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list, "favorites of deleted hotels are not listed")

	err = ledger.Add(ctx, guest, "nowhere")
	assert.True(t, errs.Is(err, errs.ErrHotelNotFound))
}
