/*
Package storage stores user avatars in S3-compatible object storage.

Uploads never pass through the service: a client asks for a presigned PUT URL, uploads the image
directly to the bucket and then confirms the object key, which the service verifies before it is
recorded on the identity.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// ObjectStore is the object storage used for avatars.
type ObjectStore interface {
	// PresignUpload generates a pre-signed URL for uploading an object.
	PresignUpload(ctx context.Context, key, mimeType string, size int64, duration time.Duration) (string, error)

	// PresignDownload generates a pre-signed URL for downloading an object.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the object specified by the given key.
	Delete(ctx context.Context, key string) error

	// Stat returns the object's metadata. Missing objects yield errs.ErrAvatarNotSet.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// NewObjectStore returns the S3-compatible implementation of ObjectStore.
func NewObjectStore(ctx context.Context, cfg ServiceConfig) (ObjectStore, error) {
	return newS3Client(ctx, cfg)
}
