package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hotelchat/internal/app/hotel"
	"hotelchat/internal/pkg/req"
	"hotelchat/internal/pkg/resp"
)

type favoriteResponse struct {
	PlaceID  string `json:"placeId"`
	Favorite bool   `json:"favorite"`
}

// HandleListFavorites lists the caller's favorite hotels.
func HandleListFavorites(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hotels, err := deps.Favorites.List(r.Context(), callerOf(r))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, hotels)
	}
}

// HandleIsFavorite reports whether the caller starred a hotel.
func HandleIsFavorite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeId")
		fav, err := deps.Favorites.IsFavorite(r.Context(), callerOf(r), placeID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, favoriteResponse{PlaceID: placeID, Favorite: fav})
	}
}

// HandleAddFavorite stars a hotel for the caller.
func HandleAddFavorite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeId")
		if err := deps.Favorites.Add(r.Context(), callerOf(r), placeID); err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, favoriteResponse{PlaceID: placeID, Favorite: true})
	}
}

// HandleRemoveFavorite unstars a hotel for the caller.
func HandleRemoveFavorite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeId")
		if err := deps.Favorites.Remove(r.Context(), callerOf(r), placeID); err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, favoriteResponse{PlaceID: placeID, Favorite: false})
	}
}

// HandleToggleFavorite flips the caller's favorite of a hotel.
func HandleToggleFavorite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeId")
		fav, err := deps.Favorites.Toggle(r.Context(), callerOf(r), placeID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, favoriteResponse{PlaceID: placeID, Favorite: fav})
	}
}

// HandleGetHotel returns a hotel by place id.
func HandleGetHotel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := deps.Hotels.Resolve(r.Context(), chi.URLParam(r, "placeId"))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, h)
	}
}

// HandleListHotels lists every registered hotel.
func HandleListHotels(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hotels, err := deps.Hotels.List(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, hotels)
	}
}

// HandleCreateHotel registers a hotel staffed by the calling operator.
func HandleCreateHotel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input hotel.CreateInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		h, err := deps.Hotels.Create(r.Context(), callerOf(r), input)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondCreated(w, r, h)
	}
}

// HandleDeleteHotel removes a hotel; its rooms become orphaned.
func HandleDeleteHotel(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Hotels.Delete(r.Context(), callerOf(r), chi.URLParam(r, "placeId")); err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]bool{"deleted": true})
	}
}
