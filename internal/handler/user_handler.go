package handler

import (
	"net/http"
	"strings"

	"hotelchat/internal/app/storage"
	"hotelchat/internal/app/user"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/req"
	"hotelchat/internal/pkg/resp"
)

// HandleGetRole returns the role of the signed-in identity as currently stored.
func HandleGetRole(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := deps.Users.Identity(r.Context(), callerOf(r).ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]model.Role{"role": identity.Role})
	}
}

// HandleGetProfile returns the signed-in identity.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := deps.Users.Identity(r.Context(), callerOf(r).ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, map[string]model.Identity{"user": identity})
	}
}

// HandleUpdateProfile replaces the profile fields and, when avatarRef is set, confirms an
// uploaded avatar.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input user.ProfileInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		id := callerOf(r).ID
		before, err := deps.Users.Identity(r.Context(), id)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		identity, err := deps.Users.UpdateProfile(r.Context(), id, input)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if ref := strings.TrimSpace(input.AvatarRef); ref != "" && ref != before.AvatarRef {
			if deps.Avatars == nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrStorageNotConfigured))
				return
			}
			if identity, err = deps.Avatars.Confirm(r.Context(), before, ref); err != nil {
				resp.RespondError(w, r, err)
				return
			}
		}

		resp.RespondSuccess(w, r, map[string]model.Identity{"user": identity})
	}
}

// HandleGetAvatar redirects to the signed-in identity's avatar. Clients that send
// "Accept: application/json" receive the URL in the envelope instead.
func HandleGetAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Avatars == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageNotConfigured))
			return
		}

		identity, err := deps.Users.Identity(r.Context(), callerOf(r).ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		url, err := deps.Avatars.DownloadURL(r.Context(), identity)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			resp.RespondSuccess(w, r, map[string]string{"url": url, "avatarRef": identity.AvatarRef})
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// HandlePresignAvatar returns a presigned upload URL for a new avatar.
func HandlePresignAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Avatars == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageNotConfigured))
			return
		}

		var input storage.UploadRequest
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		upload, err := deps.Avatars.RequestUpload(r.Context(), callerOf(r).ID, input)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, upload)
	}
}
