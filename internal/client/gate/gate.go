// Package gate decides whether a view may be shown for a session snapshot.
package gate

import (
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
)

// Decision is the outcome of evaluating a gate.
type Decision int

const (
	// Pending means the session is still loading; show a neutral state and do not navigate.
	Pending Decision = iota
	// Allow grants access to the view.
	Allow
	// RedirectAuth sends the user to the authentication entry point.
	RedirectAuth
	// RedirectLanding sends the user to the default landing view.
	RedirectLanding
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectAuth:
		return "redirect_auth"
	case RedirectLanding:
		return "redirect_landing"
	default:
		return "unknown"
	}
}

// View targets of redirects.
const (
	AuthPath    = "/auth"
	LandingPath = "/"
)

// Outcome is a decision with its redirect target, if any.
type Outcome struct {
	Decision Decision
	Target   string
}

// Evaluate decides access to a view open to allowed. An empty set admits every authenticated
// identity. Identities without a known role never pass a non-empty set.
func Evaluate(snap session.Snapshot, allowed model.RoleSet) Outcome {
	if !snap.Loaded {
		return Outcome{Decision: Pending}
	}

	sess := snap.Session
	if !sess.Authenticated() {
		return Outcome{Decision: RedirectAuth, Target: AuthPath}
	}
	if !sess.Resolved {
		return Outcome{Decision: Pending}
	}

	if len(allowed) == 0 {
		return Outcome{Decision: Allow}
	}
	role := sess.Identity.Role
	if !role.Valid() || !allowed.Contains(role) {
		return Outcome{Decision: RedirectLanding, Target: LandingPath}
	}
	return Outcome{Decision: Allow}
}

// Snapshotter is the part of session.Store a Guard reads.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// Guard binds a role set to a session source.
type Guard struct {
	store   Snapshotter
	allowed model.RoleSet
}

// NewGuard returns a guard admitting roles.
func NewGuard(store Snapshotter, roles ...model.Role) *Guard {
	return &Guard{store: store, allowed: model.Roles(roles...)}
}

// Check evaluates the guard against the current session.
func (g *Guard) Check() Outcome {
	return Evaluate(g.store.Snapshot(), g.allowed)
}
