package hotel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/memstore"
	"hotelchat/internal/app/user"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

var (
	operator = model.Identity{ID: "op-1", Username: "opal", Email: "opal@example.com", Role: model.RoleOperator}
	guest    = model.Identity{ID: "guest-1", Username: "gina", Email: "gina@example.com", Role: model.RoleGuest}
)

func register(t *testing.T, store *memstore.Store, ids ...model.Identity) {
	t.Helper()
	for _, id := range ids {
		_, err := store.CreateAccount(context.Background(), user.Account{Identity: id, PasswordHash: "x"})
		require.NoError(t, err)
	}
}

func TestCreate_OperatorBecomesStaff(t *testing.T) {
	store := memstore.New()
	registry := hotel.NewRegistry(store)
	ctx := context.Background()
	register(t, store, operator, model.Identity{ID: "op-2", Username: "otto", Email: "otto@example.com", Role: model.RoleOperator})

	h, err := registry.Create(ctx, operator, hotel.CreateInput{
		PlaceID:  "  place-1 ",
		Name:     "Harbor View",
		StaffIDs: []string{"op-2", operator.ID, ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "place-1", h.PlaceID)
	assert.Equal(t, []string{operator.ID, "op-2"}, h.StaffIDs)
	assert.Equal(t, model.HotelAvailable, h.Status)

	got, err := registry.Resolve(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, "Harbor View", got.Name)

	staff, err := registry.Staff(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, []string{operator.ID, "op-2"}, staff)
}

func TestCreate_Rejections(t *testing.T) {
	registry := hotel.NewRegistry(memstore.New())
	ctx := context.Background()

	_, err := registry.Create(ctx, guest, hotel.CreateInput{PlaceID: "place-1", Name: "Harbor View"})
	assert.True(t, errs.Is(err, errs.ErrForbidden))

	_, err = registry.Create(ctx, operator, hotel.CreateInput{PlaceID: "place-1"})
	require.Error(t, err)
	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindValidation, customErr.Kind)
	assert.Contains(t, customErr.Fields, "name")

	_, err = registry.Create(ctx, operator, hotel.CreateInput{PlaceID: "place-1", Name: "Harbor View"})
	require.NoError(t, err)
	_, err = registry.Create(ctx, operator, hotel.CreateInput{PlaceID: "place-1", Name: "Again"})
	assert.True(t, errs.Is(err, errs.ErrHotelExists))
}

func TestCreate_StaffMustBeOperators(t *testing.T) {
	store := memstore.New()
	registry := hotel.NewRegistry(store)
	ctx := context.Background()
	register(t, store, operator, guest)

	for _, staff := range [][]string{{guest.ID}, {"ghost-id"}, {operator.ID, guest.ID}} {
		_, err := registry.Create(ctx, operator, hotel.CreateInput{PlaceID: "place-1", Name: "Harbor View", StaffIDs: staff})
		require.Error(t, err, "staff %v", staff)
		customErr, ok := errs.As(err)
		require.True(t, ok)
		assert.Equal(t, errs.KindValidation, customErr.Kind)
		assert.Contains(t, customErr.Fields, "staffIds")
	}

	hotels, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, hotels)
}

func TestStaff_SkipsNonOperators(t *testing.T) {
	store := memstore.New()
	registry := hotel.NewRegistry(store)
	ctx := context.Background()
	register(t, store, operator, guest)

	staff, err := registry.Staff(ctx, model.Hotel{PlaceID: "place-1", StaffIDs: []string{guest.ID, "ghost-id", operator.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{operator.ID}, staff)

	// Nobody usable listed: every operator answers.
	staff, err = registry.Staff(ctx, model.Hotel{PlaceID: "place-2", StaffIDs: []string{guest.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{operator.ID}, staff)
}

func TestResolve_UnknownOrBlank(t *testing.T) {
	registry := hotel.NewRegistry(memstore.New())

	for _, placeID := range []string{"", "   ", "missing"} {
		_, err := registry.Resolve(context.Background(), placeID)
		assert.True(t, errs.Is(err, errs.ErrHotelNotFound), "place id %q", placeID)
	}
}

func TestStaff_FallsBackToOperators(t *testing.T) {
	store := memstore.New()
	registry := hotel.NewRegistry(store)
	ctx := context.Background()
	h := model.Hotel{PlaceID: "place-1", Name: "Harbor View"}

	_, err := registry.Staff(ctx, h)
	assert.True(t, errs.Is(err, errs.ErrHotelUnstaffed))

	for _, id := range []model.Identity{operator, guest} {
		_, err := store.CreateAccount(ctx, user.Account{Identity: id, PasswordHash: "x"})
		require.NoError(t, err)
	}

	staff, err := registry.Staff(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []string{operator.ID}, staff)
}

func TestDelete(t *testing.T) {
	registry := hotel.NewRegistry(memstore.New())
	ctx := context.Background()

	_, err := registry.Create(ctx, operator, hotel.CreateInput{PlaceID: "place-1", Name: "Harbor View"})
	require.NoError(t, err)

	assert.True(t, errs.Is(registry.Delete(ctx, guest, "place-1"), errs.ErrForbidden))

	require.NoError(t, registry.Delete(ctx, operator, "place-1"))
	assert.True(t, errs.Is(registry.Delete(ctx, operator, "place-1"), errs.ErrHotelNotFound))

	hotels, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, hotels)
}
