package conversation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
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
	"hotelchat/internal/pkg/wire"
)

type party struct {
	*clienttest.Client
	chat *conversation.Engine
	dir  *directory.Directory
}

func join(c *clienttest.Client) *party {
	return &party{Client: c, chat: conversation.New(c.API, c.Store), dir: directory.New(c.API, c.Store)}
}

func TestConversation_InquiryScenario(t *testing.T) {
	svc := clienttest.NewService(t)
	op1 := join(svc.SignUp(t, "op1", model.RoleOperator))
	u1 := join(svc.SignUp(t, "u1", model.RoleGuest))
	u2 := join(svc.SignUp(t, "u2", model.RoleGuest))
	svc.CreateHotel(t, op1.Client, "H1", "Harbour Hotel")
	ctx := context.Background()

	r1, created, err := u1.chat.CreateOrGetRoom(ctx, "H1", "Interested in a discount")
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, r1.Participants, 2)
	assert.True(t, r1.HasParticipant(u1.Identity(t).ID))
	assert.True(t, r1.HasParticipant(op1.Identity(t).ID))
	require.Len(t, r1.Messages, 1)
	assert.Equal(t, "Interested in a discount", r1.Messages[0].Content)
	assert.Equal(t, u1.Identity(t).ID, r1.Messages[0].SenderID)

	again, created, err := u1.chat.CreateOrGetRoom(ctx, "H1", "second ask")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, r1.ID, again.ID)
	guests := 0
	for _, p := range again.Participants {
		if p.Role == model.RoleGuest {
			guests++
		}
	}
	assert.Equal(t, 1, guests)

	msg2, err := op1.chat.Send(ctx, r1.ID, "10% off available")
	require.NoError(t, err)
	assert.Equal(t, op1.Identity(t).ID, msg2.SenderID)

	room, err := u1.chat.Reload(ctx, r1.ID)
	require.NoError(t, err)
	require.Len(t, room.Messages, 2)
	assert.Equal(t, "Interested in a discount", room.Messages[0].Content)
	assert.Equal(t, "10% off available", room.Messages[1].Content)
	assert.False(t, room.Messages[1].Timestamp.Before(room.Messages[0].Timestamp))

	reread, err := u1.chat.Reload(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Messages, reread.Messages, "repeated reads never reorder")

	rooms, err := u1.dir.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, r1.ID, rooms[0].ID)

	rooms, err = u2.dir.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = u2.chat.Room(ctx, r1.ID)
	assert.Equal(t, errs.KindAuthorization, errs.KindOf(err))

	rooms, err = op1.dir.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}

func TestConversation_ConcurrentCreateConverges(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, _, err := guest.chat.CreateOrGetRoom(context.Background(), "H1", "")
			assert.NoError(t, err)
			ids[i] = room.ID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestConversation_CreateErrors(t *testing.T) {
	svc := clienttest.NewService(t)
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	_, _, err := guest.chat.CreateOrGetRoom(ctx, "missing", "")
	assert.True(t, errs.Is(err, errs.ErrHotelNotFound))

	anon := join(svc.NewClient(t))
	_, _, err = anon.chat.CreateOrGetRoom(ctx, "missing", "")
	assert.True(t, errs.Is(err, errs.ErrUnauthorized))
}

func TestConversation_SendValidationIsLocal(t *testing.T) {
	svc := clienttest.NewService(t)
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	before := svc.Requests()
	_, err := guest.chat.Send(ctx, "any", "   ")
	assert.True(t, errs.Is(err, errs.ErrEmptyContent))
	_, err = guest.chat.Send(ctx, "any", strings.Repeat("a", 5001))
	assert.True(t, errs.Is(err, errs.ErrMessageContentTooLong))
	assert.Equal(t, before, svc.Requests())
}

func TestConversation_CloseRoom(t *testing.T) {
	svc := clienttest.NewService(t)
	op := join(svc.SignUp(t, "op", model.RoleOperator))
	svc.CreateHotel(t, op.Client, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)

	before := svc.Requests()
	err = guest.chat.Close(ctx, room.ID)
	assert.True(t, errs.Is(err, errs.ErrForbidden))
	assert.Equal(t, before, svc.Requests(), "guests are refused locally")

	rooms, err := guest.dir.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1, "a refused close changes nothing")

	require.NoError(t, op.chat.Close(ctx, room.ID))

	for _, p := range []*party{guest, op} {
		rooms, err := p.dir.Refresh(ctx)
		require.NoError(t, err)
		assert.Empty(t, rooms)
	}

	_, err = guest.chat.Reload(ctx, room.ID)
	assert.True(t, errs.Is(err, errs.ErrRoomNotFound))
	_, err = guest.chat.Send(ctx, room.ID, "hello?")
	assert.True(t, errs.Is(err, errs.ErrRoomNotFound))
}

func TestConversation_MarkRead(t *testing.T) {
	svc := clienttest.NewService(t)
	op := join(svc.SignUp(t, "op", model.RoleOperator))
	svc.CreateHotel(t, op.Client, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "Hello")
	require.NoError(t, err)
	_, err = guest.chat.Send(ctx, room.ID, "Anyone there?")
	require.NoError(t, err)

	_, err = op.chat.Room(ctx, room.ID)
	require.NoError(t, err)
	n, err := op.chat.MarkRead(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cached, err := op.chat.Room(ctx, room.ID)
	require.NoError(t, err)
	for _, m := range cached.Messages {
		assert.Equal(t, model.DeliveryRead, m.DeliveryState)
	}
}

func TestConversation_CacheFollowsSession(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	svc.SignUp(t, "other", model.RoleGuest)
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)
	_, err = guest.chat.Room(ctx, room.ID)
	require.NoError(t, err)

	require.NoError(t, guest.Gateway.Logout(ctx))
	_, err = guest.Gateway.Login(ctx, "other@example.com", clienttest.Password)
	require.NoError(t, err)

	_, err = guest.chat.Room(ctx, room.ID)
	assert.Equal(t, errs.KindAuthorization, errs.KindOf(err), "the previous identity's room is not served from cache")
}

func TestConversation_OptimisticSend(t *testing.T) {
	roomJSON := `{"code":0,"message":"success","data":{"id":"r1","hotel":{"placeId":"H1","name":"Harbour"},"status":"open",
		"participants":[{"id":"u1","username":"u1","role":"guest"}],
		"messages":[{"id":"m1","chatRoomId":"r1","senderId":"u1","seq":1,"content":"first","timestamp":"2026-01-01T10:00:00Z","status":"sent"}]}}`

	arrived := make(chan struct{}, 1)
	release := make(chan int, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/r1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(roomJSON))
	})
	mux.HandleFunc("POST /api/chat/r1/message", func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		if status := <-release; status != http.StatusCreated {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":5000,"message":"boom"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"code":0,"message":"created","data":{"id":"m2","chatRoomId":"r1","senderId":"u1","seq":2,"content":"second","timestamp":"2026-01-01T10:05:00Z","status":"sent"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend, err := session.NewFileBackend(t.TempDir(), "default", 10*time.Millisecond)
	require.NoError(t, err)
	store := session.NewStore(backend)
	require.NoError(t, store.Start(context.Background()))
	defer store.Close()
	_, err = store.Set(context.Background(), "tok", model.Identity{ID: "u1", Role: model.RoleGuest})
	require.NoError(t, err)

	eng := conversation.New(api.New(srv.URL, store), store)
	ctx := context.Background()
	_, err = eng.Room(ctx, "r1")
	require.NoError(t, err)

	send := func() chan error {
		done := make(chan error, 1)
		go func() {
			_, err := eng.Send(ctx, "r1", "  second ")
			done <- err
		}()
		<-arrived
		return done
	}

	// Failure: the pending message is visible while in flight, then rolled back.
	done := send()
	room, err := eng.Room(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, room.Messages, 2)
	assert.True(t, conversation.IsPending(room.Messages[1]))
	assert.Equal(t, "second", room.Messages[1].Content)

	release <- http.StatusInternalServerError
	require.Error(t, <-done)
	room, err = eng.Room(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, room.Messages, 1)
	assert.Equal(t, "m1", room.Messages[0].ID)

	// Success: the pending message is replaced by the service's.
	done = send()
	release <- http.StatusCreated
	require.NoError(t, <-done)
	room, err = eng.Room(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, room.Messages, 2)
	assert.Equal(t, "m2", room.Messages[1].ID)
	assert.False(t, conversation.IsPending(room.Messages[1]))
	assert.True(t, room.UpdatedAt.Equal(room.Messages[1].Timestamp))
}

func TestConversation_ApplyFrameKeepsOrder(t *testing.T) {
	svc := clienttest.NewService(t)
	op := svc.SignUp(t, "op", model.RoleOperator)
	svc.CreateHotel(t, op, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "Hello")
	require.NoError(t, err)
	first := room.Messages[0]
	rev := guest.Store.Revision()

	late := model.Message{ID: "m-late", ChatRoomID: room.ID, SenderID: first.SenderID, Seq: first.Seq + 2, Content: "late", Timestamp: first.Timestamp.Add(2 * time.Second)}
	early := model.Message{ID: "m-early", ChatRoomID: room.ID, SenderID: first.SenderID, Seq: first.Seq + 1, Content: "early", Timestamp: first.Timestamp.Add(time.Second)}

	guest.chat.ApplyFrame(rev, wire.Frame{Type: wire.FrameMessageCreated, RoomID: room.ID, Message: &late})
	guest.chat.ApplyFrame(rev, wire.Frame{Type: wire.FrameMessageCreated, RoomID: room.ID, Message: &early})
	guest.chat.ApplyFrame(rev, wire.Frame{Type: wire.FrameMessageCreated, RoomID: room.ID, Message: &early})

	cached, err := guest.chat.Room(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, cached.Messages, 3, "duplicates are merged")
	assert.Equal(t, []string{first.ID, "m-early", "m-late"}, []string{cached.Messages[0].ID, cached.Messages[1].ID, cached.Messages[2].ID})

	// Frames of an older session are ignored.
	stale := model.Message{ID: "m-stale", ChatRoomID: room.ID, Timestamp: time.Now()}
	guest.chat.ApplyFrame(rev-1, wire.Frame{Type: wire.FrameMessageCreated, RoomID: room.ID, Message: &stale})
	cached, err = guest.chat.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, cached.Messages, 3)
}

func TestConversation_ListenFollowsRoom(t *testing.T) {
	svc := clienttest.NewService(t)
	op := join(svc.SignUp(t, "op", model.RoleOperator))
	svc.CreateHotel(t, op.Client, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "Hello")
	require.NoError(t, err)

	frames := make(chan wire.Frame, 16)
	done := make(chan error, 1)
	go func() {
		done <- guest.chat.Listen(ctx, room.ID, func(f wire.Frame) { frames <- f })
	}()

	next := func() wire.Frame {
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("no live frame")
			return wire.Frame{}
		}
	}

	require.Equal(t, wire.FrameInit, next().Type)
	require.Equal(t, wire.FrameUserJoined, next().Type)

	_, err = op.chat.Send(ctx, room.ID, "Welcome!")
	require.NoError(t, err)

	f := next()
	require.Equal(t, wire.FrameMessageCreated, f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, "Welcome!", f.Message.Content)

	cached, err := guest.chat.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", cached.Messages[len(cached.Messages)-1].Content, "frames are applied to the cache")

	require.NoError(t, op.chat.Close(ctx, room.ID))
	assert.Equal(t, wire.FrameRoomClosed, next().Type)

	select {
	case err := <-done:
		assert.True(t, errs.Is(err, errs.ErrRoomNotFound))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after the room was closed")
	}
}

func TestConversation_ListenRejections(t *testing.T) {
	svc := clienttest.NewService(t)
	op := join(svc.SignUp(t, "op", model.RoleOperator))
	svc.CreateHotel(t, op.Client, "H1", "Harbour Hotel")
	guest := join(svc.SignUp(t, "guest", model.RoleGuest))
	other := join(svc.SignUp(t, "other", model.RoleGuest))
	ctx := context.Background()

	room, _, err := guest.chat.CreateOrGetRoom(ctx, "H1", "")
	require.NoError(t, err)

	err = other.chat.Listen(ctx, room.ID, nil)
	assert.True(t, errs.Is(err, errs.ErrForbidden))

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- guest.chat.Listen(listenCtx, room.ID, nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancellation")
	}
}
