/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for checking that the caller
may read the room, upgrading the HTTP connection to WebSocket, and attaching it to the live hub.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"hotelchat/internal/pkg/auth/jwt"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		caller := callerOf(r)

		// Same visibility as reading the room over HTTP.
		room, err := deps.Chats.GetRoom(r.Context(), caller, roomID)
		if err != nil {
			logx.Info("WebSocket connection rejected.", "room_id", roomID, "user_id", caller.ID, "error", err.Error())
			resp.RespondError(w, r, err)
			return
		}

		identity, err := deps.Users.Identity(r.Context(), caller.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		var expiry time.Time
		if payload := jwt.GetPayloadFromContext(r); payload != nil && payload.ExpiresAt > 0 {
			expiry = time.Unix(payload.ExpiresAt, 0)
		}

		deps.Live.Join(room.ID, conn, identity.Ref(), expiry)

		logx.Info("WebSocket connection established", "room_id", room.ID, "user_id", identity.ID)
	}
}
