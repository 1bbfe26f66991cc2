package gateway

import (
	"context"
	"errors"
	"net/http"

	"hotelchat/internal/client/session"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

type userResponse struct {
	User model.Identity `json:"user"`
}

// ProfileInput is the profile form. Every field replaces the stored value.
type ProfileInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Bio       string `json:"bio"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// AvatarUpload is a presigned upload target.
type AvatarUpload struct {
	UploadURL string `json:"uploadUrl"`
	AvatarRef string `json:"avatarRef"`
	ExpiresIn int    `json:"expiresIn"`
}

// RefreshProfile fetches the identity from the service and merges it into the session.
func (g *Gateway) RefreshProfile(ctx context.Context) (model.Identity, error) {
	var out userResponse
	revision, err := g.api.Do(ctx, http.MethodGet, "/api/user/profile", nil, &out)
	if err != nil {
		return model.Identity{}, err
	}
	return g.apply(ctx, revision, out.User)
}

// UpdateProfile replaces the profile fields and merges the result into the session.
func (g *Gateway) UpdateProfile(ctx context.Context, in ProfileInput) (model.Identity, error) {
	var out userResponse
	revision, err := g.api.Do(ctx, http.MethodPut, "/api/user/profile", in, &out)
	if err != nil {
		return model.Identity{}, err
	}
	return g.apply(ctx, revision, out.User)
}

// PresignAvatarUpload asks for an upload URL for a new avatar image.
func (g *Gateway) PresignAvatarUpload(ctx context.Context, fileName, mimeType string, size int64) (AvatarUpload, error) {
	var out AvatarUpload
	_, err := g.api.Do(ctx, http.MethodPost, "/api/user/avatar", map[string]any{
		"fileName": fileName,
		"mimeType": mimeType,
		"fileSize": size,
	}, &out)
	return out, err
}

// ConfirmAvatar makes an uploaded object the avatar of the session's identity.
func (g *Gateway) ConfirmAvatar(ctx context.Context, avatarRef string) (model.Identity, error) {
	cur, ok := g.CurrentIdentity()
	if !ok {
		return model.Identity{}, errs.NewError(errs.ErrUnauthorized)
	}
	return g.UpdateProfile(ctx, ProfileInput{
		FirstName: cur.Profile.FirstName,
		LastName:  cur.Profile.LastName,
		Bio:       cur.Profile.Bio,
		AvatarRef: avatarRef,
	})
}

type avatarResponse struct {
	URL       string `json:"url"`
	AvatarRef string `json:"avatarRef"`
}

// AvatarURL returns a download URL for the avatar and records its reference in the session.
// An answer arriving after the session changed is discarded with session.ErrStale.
func (g *Gateway) AvatarURL(ctx context.Context) (string, error) {
	var out avatarResponse
	revision, err := g.api.Do(ctx, http.MethodGet, "/api/user/avatar", nil, &out)
	if err != nil {
		return "", err
	}

	sess, ok := g.store.Current()
	if !ok || sess.Revision != revision {
		return "", session.ErrStale
	}
	if out.AvatarRef != "" && out.AvatarRef != sess.Identity.AvatarRef {
		update := model.Identity{ID: sess.Identity.ID, AvatarRef: out.AvatarRef, Version: sess.Identity.Version}
		if _, err := g.apply(ctx, revision, update); err != nil {
			return "", err
		}
	}
	return out.URL, nil
}

func (g *Gateway) apply(ctx context.Context, revision int64, identity model.Identity) (model.Identity, error) {
	sess, err := g.store.UpdateIdentity(ctx, revision, identity)
	if errors.Is(err, session.ErrStale) {
		g.logger.Debug().Int64("revision", revision).Msg("Discarding identity of a superseded session")
		return model.Identity{}, err
	}
	// Persistence failures leave the in-process session updated.
	return sess.Identity, nil
}
