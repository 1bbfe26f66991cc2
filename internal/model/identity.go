/*
Package model holds the data types shared by the service and the client: identities and roles,
hotels, chat rooms, messages and favorite entries. Fields use JSON tags for the wire format.
*/
package model

import (
	"encoding/json"
	"time"
)

// Profile carries the optional personal details of an identity.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Identity is the resolved user record used for every authorization decision.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role,omitempty"`
	Profile   Profile   `json:"profile"`
	AvatarRef string    `json:"avatarRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version increases on every server-side change of the record.
	Version int64 `json:"version"`
}

// UnmarshalJSON accepts the legacy shapes ("user" role, isOperator flag) next to the current one.
func (i *Identity) UnmarshalJSON(data []byte) error {
	type plain Identity
	var raw struct {
		plain
		Role       string `json:"role"`
		IsOperator *bool  `json:"isOperator"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Identity(raw.plain)
	i.Role = ""
	if role, ok := ParseRole(raw.Role); ok {
		i.Role = role
	} else if raw.IsOperator != nil {
		i.Role = RoleFromLegacy(*raw.IsOperator)
	}
	return nil
}

// DisplayName returns the best human-readable name of the identity.
func (i Identity) DisplayName() string {
	switch {
	case i.Profile.FirstName != "" && i.Profile.LastName != "":
		return i.Profile.FirstName + " " + i.Profile.LastName
	case i.Username != "":
		return i.Username
	default:
		return i.Email
	}
}

// Ref returns the participant reference of the identity.
func (i Identity) Ref() ParticipantRef {
	return ParticipantRef{ID: i.ID, Username: i.Username, Role: i.Role, AvatarRef: i.AvatarRef}
}

// MergeIdentity combines a cached identity with a newer partial or complete one.
//
// Precedence:
//   - a record for a different ID replaces the cached one entirely;
//   - when incoming.Version >= cached.Version, every non-zero incoming field wins;
//   - otherwise incoming is stale and only fills fields the cached record lacks;
//   - Role is never cleared, and an invalid incoming role is ignored.
func MergeIdentity(cached, incoming Identity) Identity {
	if cached.ID != "" && incoming.ID != "" && cached.ID != incoming.ID {
		return incoming
	}

	preferIncoming := incoming.Version >= cached.Version

	pick := func(c, in string) string {
		if in == "" {
			return c
		}
		if c == "" || preferIncoming {
			return in
		}
		return c
	}
	pickTime := func(c, in time.Time) time.Time {
		if in.IsZero() {
			return c
		}
		if c.IsZero() || preferIncoming {
			return in
		}
		return c
	}

	merged := Identity{
		ID:        pick(cached.ID, incoming.ID),
		Email:     pick(cached.Email, incoming.Email),
		Username:  pick(cached.Username, incoming.Username),
		AvatarRef: pick(cached.AvatarRef, incoming.AvatarRef),
		Profile: Profile{
			FirstName: pick(cached.Profile.FirstName, incoming.Profile.FirstName),
			LastName:  pick(cached.Profile.LastName, incoming.Profile.LastName),
			Bio:       pick(cached.Profile.Bio, incoming.Profile.Bio),
		},
		CreatedAt: pickTime(cached.CreatedAt, incoming.CreatedAt),
		UpdatedAt: pickTime(cached.UpdatedAt, incoming.UpdatedAt),
		Version:   max(cached.Version, incoming.Version),
		Role:      cached.Role,
	}

	if incoming.Role.Valid() && (merged.Role == "" || preferIncoming) {
		merged.Role = incoming.Role
	}

	return merged
}
