package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/model"
)

func TestDecodeFrame_MessageCreated(t *testing.T) {
	data := []byte(`{"type":"MESSAGE_CREATED","roomId":"r1","actorId":"u1",` +
		`"message":{"id":"m1","chatRoomId":"r1","senderId":"u1","seq":3,"content":"hi",` +
		`"timestamp":"2026-03-01T09:00:00Z","status":"sent"},"timestamp":"2026-03-01T09:00:00Z"}`)

	f, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, FrameMessageCreated, f.Type)
	assert.Equal(t, "r1", f.RoomID)
	require.NotNil(t, f.Message)
	assert.Equal(t, int64(3), f.Message.Seq)
	assert.Equal(t, model.DeliverySent, f.Message.DeliveryState)
	assert.True(t, f.Timestamp.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
}

func TestEncode_OmitsEmptyParts(t *testing.T) {
	data, err := Encode(Frame{Type: FrameRoomClosed, RoomID: "r1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"ROOM_CLOSED"`)
	assert.NotContains(t, string(data), `"message"`)
	assert.NotContains(t, string(data), `"online"`)
}

func TestDecodeFrame_Garbage(t *testing.T) {
	_, err := DecodeFrame([]byte("not json"))
	assert.Error(t, err)
}
