/*
Package randx provides identifier generation for the service.

Rooms, messages and accounts use UUIDv4 identifiers; operator invitation codes and avatar
object keys use cryptographically secure Base62 strings.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// avatarSuffixLength is the length of the random part of an avatar object key.
	avatarSuffixLength = 10
)

// NewID returns a fresh UUIDv4 string.
func NewID() string {
	return uuid.New().String()
}

// RoomID generates the identifier of a new chat room.
func RoomID() string {
	return NewID()
}

// MessageID generates the identifier of a new message.
func MessageID() string {
	return NewID()
}

// IsValidID reports whether id is a canonical UUID string.
func IsValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}

// Base62 returns a random Base62 string of length n from crypto/rand.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// AvatarKey builds the object key for a new avatar of userID. Every upload gets a fresh key
// so cached URLs of the previous avatar never serve the new image.
func AvatarKey(userID, ext string) (string, error) {
	suffix, err := Base62(avatarSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("avatars/%s/%s%s", userID, suffix, strings.ToLower(ext)), nil
}
