package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/clienttest"
	"hotelchat/internal/client/conversation"
	"hotelchat/internal/client/directory"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

func TestDirectory_VisibilityAndOrder(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	svc.CreateHotel(t, op, "H2", "Hillside Inn")
	svc.CreateHotel(t, op, "H3", "Lakeside Lodge")

	alice := svc.SignUp(t, "alice", model.RoleGuest)
	bob := svc.SignUp(t, "bob", model.RoleGuest)
	ctx := context.Background()

	aliceChat := conversation.New(alice.API, alice.Store)
	bobChat := conversation.New(bob.API, bob.Store)

	a1, _, err := aliceChat.CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)
	b1, _, err := bobChat.CreateOrGetRoom(ctx, "H2", "")
	require.NoError(t, err)
	a2, _, err := aliceChat.CreateOrGetRoom(ctx, "H3", "")
	require.NoError(t, err)

	// A newer message moves a1 to the front.
	time.Sleep(5 * time.Millisecond)
	_, err = aliceChat.Send(ctx, a1.ID, "still there?")
	require.NoError(t, err)

	aliceDir := directory.New(alice.API, alice.Store)
	rooms, err := aliceDir.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID, a2.ID}, ids(rooms))
	for _, r := range rooms {
		assert.True(t, r.HasParticipant(alice.Identity(t).ID))
	}

	last, ok := rooms[0].LastMessage()
	require.True(t, ok)
	assert.Equal(t, "still there?", last.Content, "the listing carries a preview")

	opDir := directory.New(op.API, op.Store)
	rooms, err = opDir.Refresh(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1.ID, a2.ID, b1.ID}, ids(rooms))
	assert.Equal(t, a1.ID, rooms[0].ID)
	for i := 1; i < len(rooms); i++ {
		assert.False(t, rooms[i].UpdatedAt.After(rooms[i-1].UpdatedAt))
	}

	// Deleting a hotel orphans its rooms: hidden everywhere, not deleted.
	svc.DeleteHotel(t, op, "H3")
	rooms, err = aliceDir.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a1.ID}, ids(rooms))
	rooms, err = opDir.Refresh(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1.ID, b1.ID}, ids(rooms))
}

func ids(rooms []model.ChatRoom) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.ID
	}
	return out
}

func TestDirectory_CacheIsPerSession(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	svc.SignUp(t, "bob", model.RoleGuest)
	alice := svc.SignUp(t, "alice", model.RoleGuest)
	ctx := context.Background()

	_, _, err := conversation.New(alice.API, alice.Store).CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)

	dir := directory.New(alice.API, alice.Store)
	_, err = dir.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, dir.Rooms(), 1)

	require.NoError(t, alice.Gateway.Logout(ctx))
	assert.Empty(t, dir.Rooms(), "nothing is shown without a session")
	_, err = dir.Refresh(ctx)
	assert.True(t, errs.Is(err, errs.ErrUnauthorized))

	_, err = alice.Gateway.Login(ctx, "bob@example.com", clienttest.Password)
	require.NoError(t, err)
	assert.Empty(t, dir.Rooms(), "the previous identity's rooms are never shown")
}

func TestDirectory_RunRefreshesOnSessionChange(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	alice := svc.SignUp(t, "alice", model.RoleGuest)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room, _, err := conversation.New(alice.API, alice.Store).CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)

	c := svc.NewClient(t)
	dir := directory.New(c.API, c.Store)
	listings := make(chan []model.ChatRoom, 8)
	go dir.Run(ctx, func(rooms []model.ChatRoom, err error) {
		assert.NoError(t, err)
		listings <- rooms
	})

	receive := func() []model.ChatRoom {
		select {
		case rooms := <-listings:
			return rooms
		case <-time.After(2 * time.Second):
			t.Fatal("directory did not react to the session change")
			return nil
		}
	}

	assert.Empty(t, receive(), "anonymous start")

	_, err = c.Gateway.Login(ctx, "op@example.com", clienttest.Password)
	require.NoError(t, err)
	assert.Equal(t, []string{room.ID}, ids(receive()), "operator listing after login")

	require.NoError(t, c.Gateway.Logout(ctx))
	assert.Empty(t, receive())
}

func TestDirectory_LateListingIsDiscarded(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"code":0,"message":"success","data":[{"id":"r1","hotel":{"placeId":"H1","name":"Harbour"},"status":"open"}]}`))
	}))
	defer srv.Close()

	backend, err := session.NewFileBackend(t.TempDir(), "default", 10*time.Millisecond)
	require.NoError(t, err)
	store := session.NewStore(backend)
	require.NoError(t, store.Start(context.Background()))
	defer store.Close()

	ctx := context.Background()
	_, err = store.Set(ctx, "tok-a", model.Identity{ID: "a", Role: model.RoleGuest})
	require.NoError(t, err)

	dir := directory.New(api.New(srv.URL, store), store)
	done := make(chan error, 1)
	go func() {
		_, err := dir.Refresh(ctx)
		done <- err
	}()

	<-arrived
	_, err = store.Set(ctx, "tok-b", model.Identity{ID: "b", Role: model.RoleGuest})
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, session.ErrStale)
	assert.Empty(t, dir.Rooms())
}

func TestDirectory_ApplyMovesRoomToFront(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	svc.CreateHotel(t, op, "H2", "Hillside Inn")
	alice := svc.SignUp(t, "alice", model.RoleGuest)
	ctx := context.Background()

	chat := conversation.New(alice.API, alice.Store)
	r1, _, err := chat.CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	r2, _, err := chat.CreateOrGetRoom(ctx, "H2", "")
	require.NoError(t, err)

	dir := directory.New(alice.API, alice.Store)
	rooms, err := dir.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{r2.ID, r1.ID}, ids(rooms))

	msg := model.Message{ID: "pushed", ChatRoomID: r1.ID, Content: "news", Seq: 99, Timestamp: time.Now().Add(time.Minute)}
	assert.True(t, dir.Apply(msg))
	assert.False(t, dir.Apply(msg), "an older or equal message changes nothing")
	assert.False(t, dir.Apply(model.Message{ChatRoomID: "unknown"}))

	rooms = dir.Rooms()
	assert.Equal(t, []string{r1.ID, r2.ID}, ids(rooms))
	last, _ := rooms[0].LastMessage()
	assert.Equal(t, "news", last.Content)

	dir.Remove(r1.ID)
	assert.Equal(t, []string{r2.ID}, ids(dir.Rooms()))
}
