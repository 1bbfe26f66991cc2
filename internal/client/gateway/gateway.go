/*
Package gateway authenticates against the service and maintains the session store.

It is the only component that starts sessions. Every other client component reads identity and
role from the session.Store the gateway writes to.
*/
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
)

// Gateway performs login, registration and profile calls for the session store.
type Gateway struct {
	api    *api.Client
	store  *session.Store
	logger zerolog.Logger
}

// New returns a gateway writing to store.
func New(client *api.Client, store *session.Store) *Gateway {
	return &Gateway{api: client, store: store, logger: logx.Component("gateway")}
}

// sessionPayload is the data of a login or registration response.
type sessionPayload struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

type roleResponse struct {
	Role string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and starts a session.
// Rejected credentials fail with ErrInvalidCredentials, transport failures with ErrNetwork.
func (g *Gateway) Login(ctx context.Context, email, password string) (session.Session, error) {
	var payload sessionPayload
	err := g.api.DoAnonymous(ctx, http.MethodPost, "/api/auth/login", loginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}, &payload)
	if err != nil {
		return session.Session{}, err
	}

	return g.establish(ctx, payload)
}

// establish completes the identity of a fresh token and persists the session. Nothing is stored
// when the role lookup fails.
func (g *Gateway) establish(ctx context.Context, payload sessionPayload) (session.Session, error) {
	if payload.Token == "" {
		return session.Session{}, errs.NewError(errs.ErrNetwork)
	}

	identity := payload.User
	if !identity.Role.Valid() {
		var out roleResponse
		if err := g.api.DoWithToken(ctx, payload.Token, http.MethodGet, "/api/user/role", nil, &out); err != nil {
			g.logger.Warn().Err(err).Str("user_id", identity.ID).Msg("Role lookup after login failed")
			return session.Session{}, err
		}
		if role, ok := model.ParseRole(out.Role); ok {
			identity = model.MergeIdentity(identity, model.Identity{ID: identity.ID, Role: role, Version: identity.Version})
		}
	}

	sess, err := g.store.Set(ctx, payload.Token, identity)
	if err != nil {
		// The session is active in this process; only persistence failed.
		g.logger.Error().Err(err).Msg("Session could not be persisted")
	}
	return sess, nil
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Bio       string

	// RoleIntent is the role asked for. Operators must supply OperatorCode.
	RoleIntent   model.Role
	OperatorCode string
}

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Bio          string `json:"bio,omitempty"`
	Role         string `json:"role,omitempty"`
	OperatorCode string `json:"operatorCode,omitempty"`
}

// Register creates an account and starts a session for it.
// Field-level rejections fail with ErrValidation carrying the fields; transport failures with
// ErrNetwork; every other rejection with ErrRegistrationFailed.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (session.Session, error) {
	var payload sessionPayload
	err := g.api.DoAnonymous(ctx, http.MethodPost, "/api/auth/register", registerRequest{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		Password:     in.Password,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Bio:          strings.TrimSpace(in.Bio),
		Role:         string(in.RoleIntent),
		OperatorCode: in.OperatorCode,
	}, &payload)
	if err != nil {
		return session.Session{}, registrationError(err)
	}

	return g.establish(ctx, payload)
}

func registrationError(err error) error {
	customErr, ok := errs.As(err)
	if !ok {
		return errs.NewError(errs.ErrRegistrationFailed)
	}
	switch {
	case len(customErr.Fields) > 0:
		return errs.Validation(customErr.Fields)
	case customErr.Kind == errs.KindNetwork:
		return customErr
	default:
		return errs.NewError(errs.ErrRegistrationFailed)
	}
}

// Logout ends the session. It is safe to call without one.
func (g *Gateway) Logout(ctx context.Context) error {
	return g.store.Clear(ctx)
}

// CurrentIdentity returns the cached identity of the session without any I/O.
func (g *Gateway) CurrentIdentity() (model.Identity, bool) {
	sess, ok := g.store.Current()
	return sess.Identity, ok
}

// IsAuthenticated reports whether a session is active.
func (g *Gateway) IsAuthenticated() bool {
	_, ok := g.store.Current()
	return ok
}

// HasRole reports whether the session's identity holds one of roles.
func (g *Gateway) HasRole(roles ...model.Role) bool {
	sess, ok := g.store.Current()
	if !ok || !sess.Identity.Role.Valid() {
		return false
	}
	return model.Roles(roles...).Contains(sess.Identity.Role)
}

// ResolveRole looks up the role of a session restored without one. A failed lookup still
// finishes resolution so gates stop waiting.
func (g *Gateway) ResolveRole(ctx context.Context) (model.Role, error) {
	sess, ok := g.store.Current()
	if !ok {
		return "", errs.NewError(errs.ErrUnauthorized)
	}
	if sess.Resolved {
		return sess.Identity.Role, nil
	}

	var out roleResponse
	revision, err := g.api.Do(ctx, http.MethodGet, "/api/user/role", nil, &out)
	if err != nil {
		if errs.KindOf(err) != errs.KindAuthentication {
			_, _ = g.store.Resolve(ctx, revision, "")
		}
		return "", err
	}

	role, _ := model.ParseRole(out.Role)
	resolved, err := g.store.Resolve(ctx, revision, role)
	if err != nil {
		return "", err
	}
	return resolved.Identity.Role, nil
}
