package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError_StatusFromKind(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NewError(ErrRoomNotFound).Status)
	assert.Equal(t, http.StatusForbidden, NewError(ErrNotAParticipant).Status)
	assert.Equal(t, http.StatusUnauthorized, NewError(ErrInvalidCredentials).Status)
	assert.Equal(t, http.StatusTooManyRequests, NewError(ErrRateLimitExceeded).Status, "explicit status wins")
}

func TestNewError_UnknownCodeDegrades(t *testing.T) {
	e := NewError(999999)
	assert.Equal(t, ErrUnknown, e.Code)
	assert.Equal(t, KindInternal, e.Kind)
}

func TestNewError_Details(t *testing.T) {
	assert.Equal(t, "File is too large (max 5 MB).", NewError(ErrFileSizeTooLarge, 5).Message)

	cause := errors.New("connection refused")
	e := NewError(ErrUnknown, cause)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "connection refused")
}

func TestValidation_CopiesFields(t *testing.T) {
	fields := map[string]string{"email": "taken"}
	e := Validation(fields)
	fields["email"] = "changed"

	assert.Equal(t, ErrValidation, e.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	assert.Equal(t, "taken", e.Fields["email"])
}

func TestDecode(t *testing.T) {
	e := Decode(ErrForbidden, "Operators only.", http.StatusForbidden, map[string]string{"role": "x"})
	assert.Equal(t, ErrForbidden, e.Code)
	assert.Equal(t, KindAuthorization, e.Kind)
	assert.Equal(t, "Operators only.", e.Message)
	assert.Equal(t, "x", e.Fields["role"])

	fallback := Decode(ErrHotelNotFound, "", 0, nil)
	assert.Equal(t, "Hotel not found.", fallback.Message)
	assert.Equal(t, http.StatusNotFound, fallback.Status)
}

func TestIsKindOfAndWrap(t *testing.T) {
	wrapped := fmt.Errorf("loading room: %w", NewError(ErrRoomNotFound))

	assert.True(t, Is(wrapped, ErrRoomNotFound))
	assert.False(t, Is(wrapped, ErrHotelNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))

	require.Nil(t, Wrap(nil))
	assert.Equal(t, ErrRoomNotFound, Wrap(wrapped).Code)
	assert.Equal(t, ErrUnknown, Wrap(errors.New("plain")).Code)
}
