package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/wire"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		who := model.ParticipantRef{ID: r.URL.Query().Get("user"), Role: model.RoleGuest}
		hub.Join(r.URL.Query().Get("room"), conn, who, time.Now().Add(time.Hour))
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, room, user string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?room=" + room + "&user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Failed to dial live endpoint")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := wire.DecodeFrame(data)
	require.NoError(t, err)
	return f
}

func TestHub_JoinReceivesInitAndPresence(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	server := newTestServer(t, hub)

	alice := dial(t, server, "room-1", "alice")
	init := readFrame(t, alice)
	assert.Equal(t, FrameInit, init.Type)
	assert.Equal(t, "room-1", init.RoomID)
	require.NotNil(t, init.User)
	assert.Equal(t, "alice", init.User.ID)
	assert.Len(t, init.Online, 1)
	assert.Equal(t, FrameUserJoined, readFrame(t, alice).Type)

	bob := dial(t, server, "room-1", "bob")
	assert.Equal(t, FrameInit, readFrame(t, bob).Type)

	joined := readFrame(t, alice)
	assert.Equal(t, FrameUserJoined, joined.Type)
	require.NotNil(t, joined.User)
	assert.Equal(t, "bob", joined.User.ID)

	assert.Eventually(t, func() bool { return hub.Subscribers("room-1") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close())
	left := readFrame(t, alice)
	assert.Equal(t, FrameUserLeft, left.Type)
	assert.Equal(t, "bob", left.User.ID)
}

func TestHub_PublishMessageCreated(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	server := newTestServer(t, hub)

	conn := dial(t, server, "room-1", "alice")
	readFrame(t, conn) // INIT
	readFrame(t, conn) // USER_JOINED

	msg := model.Message{ID: "m-1", ChatRoomID: "room-1", SenderID: "op", Seq: 2, Content: "Hello!"}
	hub.Publish(chat.Event{Type: chat.EventMessageCreated, RoomID: "room-1", ActorID: "op", Message: &msg})
	hub.Publish(chat.Event{Type: chat.EventMessageCreated, RoomID: "room-2", ActorID: "op", Message: &msg})

	f := readFrame(t, conn)
	assert.Equal(t, FrameMessageCreated, f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, "Hello!", f.Message.Content)
	assert.EqualValues(t, 2, f.Message.Seq)

	hub.Publish(chat.Event{Type: chat.EventMessagesRead, RoomID: "room-1", ActorID: "op", Count: 3})
	f = readFrame(t, conn)
	assert.Equal(t, FrameMessagesRead, f.Type)
	assert.EqualValues(t, 3, f.Count)
}

func TestHub_RoomClosedEndsConnections(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	server := newTestServer(t, hub)

	conn := dial(t, server, "room-1", "alice")
	readFrame(t, conn)
	readFrame(t, conn)

	hub.Publish(chat.Event{Type: chat.EventRoomClosed, RoomID: "room-1", ActorID: "op"})

	assert.Equal(t, FrameRoomClosed, readFrame(t, conn).Type, "the close event is flushed before the connection ends")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseCodeRoomClosed), "unexpected close: %v", err)

	assert.Eventually(t, func() bool { return hub.Subscribers("room-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_IdleChannelIsRemoved(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	hub.idleTimeout = 50 * time.Millisecond
	server := newTestServer(t, hub)

	conn := dial(t, server, "room-1", "alice")
	readFrame(t, conn)
	readFrame(t, conn)
	require.NotNil(t, hub.lookup("room-1"))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.lookup("room-1") == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestFrameFromEvent(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := FrameFromEvent(chat.Event{Type: chat.EventMessagesRead, RoomID: "r", ActorID: "a", Count: 4, Timestamp: ts})

	data, err := wire.Encode(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MESSAGES_READ","roomId":"r","actorId":"a","count":4,"timestamp":"2026-01-02T03:04:05Z"}`, string(data))
}
