/*
Package live pushes committed chat events to the websocket connections watching a room.

The Hub owns one channel per watched room. A channel runs its own event loop, fans frames out to
its subscribers and shuts itself down after a period without subscribers. The Hub implements
chat.Notifier, so the chat engine publishes into it after every committed change.
*/
package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/logx"
)

// Hub coordinates all live room channels.
type Hub struct {
	// channels keyed by room id.
	channels map[string]*channel

	// mu protects concurrent access to the channels map.
	mu sync.RWMutex

	// cleanup receives the ids of channels whose event loop has ended.
	cleanup chan string

	// wg waits for the cleanup loop during shutdown.
	wg sync.WaitGroup

	idleTimeout time.Duration

	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its cleanup loop.
func NewHub() *Hub {
	h := &Hub{
		channels:    make(map[string]*channel),
		cleanup:     make(chan string, 16),
		idleTimeout: ChannelIdleTimeout,
		logger:      logx.Component("live"),
	}

	h.wg.Add(1)
	go h.runCleanupLoop()

	return h
}

func (h *Hub) runCleanupLoop() {
	defer h.wg.Done()

	for roomID := range h.cleanup {
		h.mu.Lock()
		if ch, ok := h.channels[roomID]; ok && ch.stopped() {
			delete(h.channels, roomID)
			h.logger.Debug().Str("room_id", roomID).Msg("Live channel removed.")
		}
		h.mu.Unlock()
	}
}

// channelFor returns the running channel of roomID, starting one when needed.
func (h *Hub) channelFor(roomID string) *channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.channels[roomID]; ok && !ch.stopped() {
		return ch
	}

	ch := newChannel(roomID, h.idleTimeout, h.cleanup)
	h.channels[roomID] = ch
	go ch.run()
	return ch
}

func (h *Hub) lookup(roomID string) *channel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channels[roomID]
}

// Join attaches a websocket connection to a room and starts its pumps.
// expiry is the end of the connection's credential.
func (h *Hub) Join(roomID string, conn *websocket.Conn, who model.ParticipantRef, expiry time.Time) *Subscriber {
	sub := newSubscriber(conn, who, expiry)
	h.channelFor(roomID).join(sub)

	go sub.writePump()
	go sub.readPump()

	return sub
}

// Publish implements chat.Notifier. Rooms without subscribers are skipped.
func (h *Hub) Publish(ev chat.Event) {
	ch := h.lookup(ev.RoomID)
	if ch == nil || ch.stopped() {
		return
	}

	ch.deliver(FrameFromEvent(ev))

	if ev.Type == chat.EventRoomClosed {
		ch.close(CloseCodeRoomClosed, "Chat room closed")
	}
}

// Subscribers returns the number of live connections of roomID.
func (h *Hub) Subscribers(roomID string) int {
	ch := h.lookup(roomID)
	if ch == nil {
		return 0
	}
	return ch.size()
}

// Shutdown stops every channel and waits for the cleanup loop to exit.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down live hub...")

	h.mu.Lock()
	for _, ch := range h.channels {
		ch.close(websocket.CloseGoingAway, "Server shutting down")
	}
	h.channels = map[string]*channel{}
	h.mu.Unlock()

	close(h.cleanup)
	h.wg.Wait()

	h.logger.Info().Msg("Live hub shutdown complete.")
}
