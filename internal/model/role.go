package model

import "strings"

// Role is the single representation of what an identity is allowed to do.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// legacyGuestRole is the role string older accounts were issued before "guest" existed.
const legacyGuestRole = "user"

// ParseRole converts a wire value into a Role. The legacy "user" value maps to RoleGuest.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleGuest), legacyGuestRole:
		return RoleGuest, true
	case string(RoleOperator):
		return RoleOperator, true
	case string(RoleAdmin):
		return RoleAdmin, true
	}
	return "", false
}

// RoleFromLegacy maps the old isOperator flag onto a Role. It is only used when decoding
// records that predate the role field.
func RoleFromLegacy(isOperator bool) Role {
	if isOperator {
		return RoleOperator
	}
	return RoleGuest
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok && string(r) != legacyGuestRole
}

// SeesAllRooms reports whether the role has system-wide visibility of chat rooms.
func (r Role) SeesAllRooms() bool {
	return r == RoleOperator || r == RoleAdmin
}

// RoleSet is an immutable set of roles, used by role gates.
type RoleSet map[Role]struct{}

// Roles builds a RoleSet.
func Roles(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}
