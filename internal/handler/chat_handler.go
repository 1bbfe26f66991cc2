/*
Package handler provides HTTP handler functions for chat rooms and their messages.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/req"
	"hotelchat/internal/pkg/resp"
)

// OfferInput opens an inquiry. An empty Message uses the default inquiry text.
type OfferInput struct {
	Message string `json:"message,omitempty"`
}

// offerResponse reports whether the room was created by this request.
type offerResponse struct {
	Room    model.ChatRoom `json:"room"`
	Created bool           `json:"created"`
}

// HandleOffer creates or reuses the room between the calling guest and a hotel.
func HandleOffer(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input OfferInput
		// The body is optional.
		if r.ContentLength > 0 {
			if customErr := req.BindJSON(w, r, &input); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
		}

		room, created, err := deps.Chats.CreateOrGetRoom(r.Context(), callerOf(r), chi.URLParam(r, "placeId"), input.Message)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if created {
			resp.RespondCreated(w, r, offerResponse{Room: room, Created: true})
			return
		}
		resp.RespondSuccess(w, r, offerResponse{Room: room})
	}
}

// HandleListRooms lists the caller's rooms, or every room when all is set.
func HandleListRooms(deps *AppDeps, all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := deps.Chats.ListRooms(r.Context(), callerOf(r), all)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, rooms)
	}
}

// HandleGetRoom returns one room with its full history.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := deps.Chats.GetRoom(r.Context(), callerOf(r), chi.URLParam(r, "roomId"))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, room)
	}
}

// HandleCloseRoom closes a room.
func HandleCloseRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Chats.CloseRoom(r.Context(), callerOf(r), chi.URLParam(r, "roomId")); err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]string{"message": "Chat room closed"})
	}
}

// MessageInput is the body of a new message.
type MessageInput struct {
	Content string `json:"content"`
}

// HandleSendMessage appends a message to a room.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input MessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		msg, err := deps.Chats.AppendMessage(r.Context(), callerOf(r), chi.URLParam(r, "roomId"), input.Content)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondCreated(w, r, msg)
	}
}

// HandleMarkRead marks the messages of others in a room as read.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Chats.MarkRead(r.Context(), callerOf(r), chi.URLParam(r, "roomId"))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]int64{"updated": n})
	}
}
