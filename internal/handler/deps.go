package handler

import (
	"net/http"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/app/favorite"
	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/live"
	"hotelchat/internal/app/storage"
	"hotelchat/internal/app/user"
	"hotelchat/internal/configs"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/auth/jwt"
)

// AppDeps carries the services the handlers delegate to.
type AppDeps struct {
	Config    *configs.AppConfig
	Users     *user.Service
	Hotels    *hotel.Registry
	Chats     *chat.Engine
	Favorites *favorite.Ledger
	Live      *live.Hub

	// Avatars is nil when object storage is not configured.
	Avatars *storage.Avatars
}

// callerOf returns the identity the request's token was issued to. Only the ID and Role are set;
// routes behind RequireIdentity always have one.
func callerOf(r *http.Request) model.Identity {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return model.Identity{}
	}
	return model.Identity{ID: payload.ID, Email: payload.Email, Role: payload.Role}
}
