package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/wire"
)

const frameBuffer = 1024

// ChannelIdleTimeout is how long a channel without subscribers keeps running.
const ChannelIdleTimeout = 5 * time.Minute

// channel fans the frames of one room out to its subscribers.
type channel struct {
	roomID string

	// subs is written by the run loop only; mu guards reads from other goroutines.
	subs map[*Subscriber]struct{}
	mu   sync.RWMutex

	frames     chan Frame
	register   chan *Subscriber
	unregister chan *Subscriber

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// closeCode and closeReason are sent to subscribers when the channel stops.
	closeCode   int
	closeReason string

	idleTimeout time.Duration
	cleanup     chan<- string

	logger zerolog.Logger
}

func newChannel(roomID string, idleTimeout time.Duration, cleanup chan<- string) *channel {
	return &channel{
		roomID:      roomID,
		subs:        make(map[*Subscriber]struct{}),
		frames:      make(chan Frame, frameBuffer),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		closeCode:   websocket.CloseNormalClosure,
		idleTimeout: idleTimeout,
		cleanup:     cleanup,
		logger:      logx.Logger().With().Str("component", "live").Str("room_id", roomID).Logger(),
	}
}

func (c *channel) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *channel) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// join hands sub to the run loop. A stopped channel closes sub right away.
func (c *channel) join(sub *Subscriber) {
	sub.ch = c
	select {
	case c.register <- sub:
	case <-c.done:
		sub.closeCode, sub.closeReason = c.closeCode, c.closeReason
		close(sub.send)
	}
}

func (c *channel) leave(sub *Subscriber) {
	select {
	case c.unregister <- sub:
	case <-c.done:
	}
}

// deliver queues a frame for broadcast without blocking.
func (c *channel) deliver(f Frame) {
	select {
	case c.frames <- f:
	case <-c.done:
	default:
		c.logger.Warn().Str("frame_type", string(f.Type)).Msg("Frame buffer full, dropping frame.")
	}
}

// close stops the run loop; subscribers receive a close frame with code and reason.
func (c *channel) close(code int, reason string) {
	c.stopOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.stop)
	})
}

func (c *channel) online() []model.ParticipantRef {
	seen := map[string]bool{}
	out := []model.ParticipantRef{}
	for sub := range c.subs {
		if !seen[sub.who.ID] {
			seen[sub.who.ID] = true
			out = append(out, sub.who)
		}
	}
	return out
}

// drop removes sub and closes its queue. Run loop only.
func (c *channel) drop(sub *Subscriber) bool {
	if _, ok := c.subs[sub]; !ok {
		return false
	}
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
	close(sub.send)
	return true
}

func (c *channel) broadcast(f Frame) {
	data, err := wire.Encode(f)
	if err != nil {
		c.logger.Error().Err(err).Str("frame_type", string(f.Type)).Msg("Error marshaling frame for broadcast.")
		return
	}

	for sub := range c.subs {
		select {
		case sub.send <- data:
		default:
			c.logger.Warn().Str("user_id", sub.who.ID).Msg("Subscriber queue full, disconnecting.")
			c.drop(sub)
		}
	}
}

func (c *channel) run() {
	idle := time.NewTimer(c.idleTimeout)

	defer func() {
		idle.Stop()

		for sub := range c.subs {
			sub.closeCode, sub.closeReason = c.closeCode, c.closeReason
			c.drop(sub)
		}
		close(c.done)

		// The hub may already have closed the cleanup channel during shutdown.
		defer func() {
			if r := recover(); r != nil {
				c.logger.Debug().Msg("Cleanup channel closed, skipping notification.")
			}
		}()
		select {
		case c.cleanup <- c.roomID:
		default:
			c.logger.Warn().Msg("Hub cleanup channel full. Skipping cleanup notification.")
		}
	}()

	for {
		select {
		case sub := <-c.register:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}

			c.mu.Lock()
			c.subs[sub] = struct{}{}
			c.mu.Unlock()

			c.logger.Info().Str("user_id", sub.who.ID).Int("subscribers", len(c.subs)).Msg("Subscriber joined.")

			who := sub.who
			init, err := wire.Encode(Frame{Type: FrameInit, RoomID: c.roomID, User: &who, Online: c.online(), Timestamp: time.Now().UTC()})
			if err == nil {
				select {
				case sub.send <- init:
				default:
				}
			}
			c.broadcast(Frame{Type: FrameUserJoined, RoomID: c.roomID, User: &who, Timestamp: time.Now().UTC()})

		case sub := <-c.unregister:
			if c.drop(sub) {
				who := sub.who
				c.logger.Info().Str("user_id", who.ID).Int("subscribers", len(c.subs)).Msg("Subscriber left.")
				c.broadcast(Frame{Type: FrameUserLeft, RoomID: c.roomID, User: &who, Timestamp: time.Now().UTC()})
			}
			if len(c.subs) == 0 {
				idle.Reset(c.idleTimeout)
			}

		case f := <-c.frames:
			c.broadcast(f)

		case <-idle.C:
			c.logger.Info().Msgf("Channel idle timeout (%s) reached.", c.idleTimeout)
			return

		case <-c.stop:
			// Flush frames queued before the stop, e.g. the ROOM_CLOSED event.
			for {
				select {
				case f := <-c.frames:
					c.broadcast(f)
				default:
					return
				}
			}
		}
	}
}
