package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/randx"
)

const (
	// MaxAvatarSizeMB is the maximum allowed avatar size in megabytes.
	MaxAvatarSizeMB = 5

	// MaxAvatarSize is the maximum allowed avatar size in bytes.
	MaxAvatarSize = MaxAvatarSizeMB * 1024 * 1024

	// PresignedURLDuration is how long upload and download URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// allowedMIMETypes defines the set of permitted MIME types for avatars.
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// extToMIME maps file extensions to their corresponding MIME types.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(size int64) *errs.CustomError {
	if size <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if size > MaxAvatarSize {
		return errs.NewError(errs.ErrFileSizeTooLarge, MaxAvatarSizeMB)
	}
	return nil
}

// ValidateFileType checks that the file name extension and the MIME type agree on an allowed image type.
func ValidateFileType(fileName, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)
	if _, ok := allowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	expectedMIME, ok := extToMIME[strings.ToLower(filepath.Ext(fileName))]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}
	return nil
}

// AvatarRecorder records the avatar object of an identity.
type AvatarRecorder interface {
	SetAvatar(ctx context.Context, id, avatarRef string) (model.Identity, error)
}

// UploadRequest asks for a presigned avatar upload.
type UploadRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	MimeType string `json:"mimeType" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"required,gt=0"`
}

// Upload is the answer to an UploadRequest.
type Upload struct {
	UploadURL string `json:"uploadUrl"`
	AvatarRef string `json:"avatarRef"`
	ExpiresIn int    `json:"expiresIn"`
}

// Avatars manages avatar objects.
type Avatars struct {
	store         ObjectStore
	users         AvatarRecorder
	publicBaseURL string
	logger        zerolog.Logger
}

// NewAvatars returns an avatar manager. When publicBaseURL is set, download URLs are built from it
// instead of being presigned.
func NewAvatars(store ObjectStore, users AvatarRecorder, publicBaseURL string) *Avatars {
	return &Avatars{
		store:         store,
		users:         users,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logx.Component("avatar"),
	}
}

func ownsKey(userID, key string) bool {
	return strings.HasPrefix(key, "avatars/"+userID+"/") && !strings.Contains(key, "..")
}

// RequestUpload validates the file description and returns a presigned upload URL.
func (a *Avatars) RequestUpload(ctx context.Context, userID string, in UploadRequest) (Upload, error) {
	if customErr := ValidateFileSize(in.FileSize); customErr != nil {
		return Upload{}, customErr
	}
	if customErr := ValidateFileType(in.FileName, in.MimeType); customErr != nil {
		return Upload{}, customErr
	}

	key, err := randx.AvatarKey(userID, strings.ToLower(filepath.Ext(in.FileName)))
	if err != nil {
		return Upload{}, errs.NewError(errs.ErrUnknown, err)
	}

	url, err := a.store.PresignUpload(ctx, key, strings.ToLower(in.MimeType), in.FileSize, PresignedURLDuration)
	if err != nil {
		return Upload{}, err
	}

	return Upload{UploadURL: url, AvatarRef: key, ExpiresIn: int(PresignedURLDuration.Seconds())}, nil
}

// Confirm records an uploaded object as the identity's avatar. The previous avatar object is
// removed in the background.
func (a *Avatars) Confirm(ctx context.Context, identity model.Identity, avatarRef string) (model.Identity, error) {
	if !ownsKey(identity.ID, avatarRef) {
		return model.Identity{}, errs.Validation(map[string]string{"avatarRef": "Invalid avatar reference"})
	}

	info, err := a.store.Stat(ctx, avatarRef)
	if err != nil {
		return model.Identity{}, err
	}
	if _, ok := allowedMIMETypes[strings.ToLower(info.ContentType)]; !ok {
		return model.Identity{}, errs.NewError(errs.ErrFileTypeInvalid)
	}
	if info.Size > MaxAvatarSize {
		return model.Identity{}, errs.NewError(errs.ErrFileSizeTooLarge, MaxAvatarSizeMB)
	}

	updated, err := a.users.SetAvatar(ctx, identity.ID, avatarRef)
	if err != nil {
		return model.Identity{}, err
	}

	if old := identity.AvatarRef; old != "" && old != avatarRef {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.store.Delete(ctx, old); err != nil {
				a.logger.Warn().Err(err).Str("key", old).Msg("Failed to delete replaced avatar")
			}
		}()
	}

	return updated, nil
}

// DownloadURL returns a URL for the identity's avatar.
func (a *Avatars) DownloadURL(ctx context.Context, identity model.Identity) (string, error) {
	if identity.AvatarRef == "" {
		return "", errs.NewError(errs.ErrAvatarNotSet)
	}
	if a.publicBaseURL != "" {
		return a.publicBaseURL + "/" + identity.AvatarRef, nil
	}
	return a.store.PresignDownload(ctx, identity.AvatarRef, PresignedURLDuration)
}
