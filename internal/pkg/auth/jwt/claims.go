package jwt

import (
	"github.com/golang-jwt/jwt"

	"hotelchat/internal/model"
)

// Payload defines the JSON Web Token claims issued to a signed-in identity.
type Payload struct {
	// StandardClaims embeds expiry, issued-at and issuer.
	jwt.StandardClaims

	// ID is the identity id.
	ID string `json:"id"`

	// Email is informational; authorization never relies on it.
	Email string `json:"email,omitempty"`

	// Role is the role assigned by the service when the token was issued.
	Role model.Role `json:"role"`
}

// HasRole reports whether the payload's role is one of roles.
func (p *Payload) HasRole(roles ...model.Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
