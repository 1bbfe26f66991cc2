package live

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// subscribers only send control frames; anything larger is a misbehaving client.
	maxInboundSize = 512
)

// Subscriber is one websocket connection watching a room.
type Subscriber struct {
	ch   *channel
	conn *websocket.Conn
	who  model.ParticipantRef

	// expiry is the end of the credential the connection was opened with.
	expiry time.Time

	send chan []byte

	// set by the channel before send is closed.
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

func newSubscriber(conn *websocket.Conn, who model.ParticipantRef, expiry time.Time) *Subscriber {
	return &Subscriber{
		conn:      conn,
		who:       who,
		expiry:    expiry,
		send:      make(chan []byte, 256),
		closeCode: websocket.CloseNormalClosure,
		logger:    logx.Logger().With().Str("component", "live").Str("user_id", who.ID).Logger(),
	}
}

// readPump keeps the read side alive for pongs and close frames and unregisters on disconnect.
func (s *Subscriber) readPump() {
	defer func() {
		s.ch.leave(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxInboundSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Live connection closed unexpectedly")
			}
			return
		}
	}
}

// writePump writes queued frames, pings the peer and ends the connection when the credential expires.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				s.writeClose(s.closeCode, s.closeReason)
				return
			}
			if err := s.write(websocket.TextMessage, frame); err != nil {
				s.logger.Debug().Err(err).Msg("Error writing frame")
				return
			}

		case now := <-ticker.C:
			if !s.expiry.IsZero() && now.After(s.expiry) {
				s.logger.Info().Time("expiry", s.expiry).Msg("Credential expired, closing live connection.")
				s.writeClose(CloseCodeSessionExpired, "Session expired")
				return
			}
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

func (s *Subscriber) write(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *Subscriber) writeClose(code int, reason string) {
	if err := s.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		s.logger.Debug().Err(err).Msg("Error writing close message")
	}
}
