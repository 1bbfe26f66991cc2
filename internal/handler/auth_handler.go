/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"
	"time"

	"hotelchat/internal/app/user"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/auth/jwt"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/req"
	"hotelchat/internal/pkg/resp"
)

// sessionResponse is returned by login and registration.
type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      model.Identity `json:"user"`
}

func issueSession(deps *AppDeps, identity model.Identity) (sessionResponse, error) {
	payload := &jwt.Payload{ID: identity.ID, Email: identity.Email, Role: identity.Role}

	token, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		return sessionResponse{}, errs.NewError(errs.ErrUnknown, err)
	}

	return sessionResponse{
		Token:     token,
		ExpiresAt: time.Unix(payload.ExpiresAt, 0).UTC(),
		User:      identity,
	}, nil
}

// HandleRegister creates an account and signs it in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input user.RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		identity, err := deps.Users.Register(r.Context(), input)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		session, err := issueSession(deps, identity)
		if err != nil {
			logx.Error(err, "failed to generate token after registration", "user_id", identity.ID)
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondCreated(w, r, session)
	}
}

// LoginInput is the login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		identity, err := deps.Users.Login(r.Context(), input.Email, input.Password)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		session, err := issueSession(deps, identity)
		if err != nil {
			logx.Error(err, "login: jwt generation failed", "user_id", identity.ID)
			resp.RespondError(w, r, err)
			return
		}

		logx.Annotate(r.Context(), "user_id", identity.ID)
		resp.RespondSuccess(w, r, session)
	}
}
