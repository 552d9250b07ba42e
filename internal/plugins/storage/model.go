// Package storage is the platform's object store. Clients upload raw image
// bytes into a bucket under a name that starts with their user id; anyone
// can read objects back through a public URL. Objects live on the local
// filesystem or in S3-compatible storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// Buckets accepted by the store.
const (
	BucketAvatars    = "avatars"
	BucketPostImages = "post-images"
)

// Buckets lists every known bucket.
var Buckets = map[string]bool{
	BucketAvatars:    true,
	BucketPostImages: true,
}

// AllowedMimeTypes defines which content types may be uploaded.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// AvatarMaxDim bounds the longer side of a stored avatar. Larger uploads
// are scaled down before they are written.
const AvatarMaxDim = 512

// Upload limits on the dimensions declared in an image header.
const (
	MaxImageSide   = 12000
	MaxImagePixels = 40_000_000
)

// ErrObjectNotFound is returned by a Backend when bucket/name does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored object.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Key is the object's path within the store, "bucket/name".
func (o Object) Key() string {
	return o.Bucket + "/" + o.Name
}

// UploadResponse is the JSON body returned after a successful upload.
type UploadResponse struct {
	Key string `json:"Key"`
}

// Backend persists object bytes. Bucket names are logical; a backend may
// map them onto its own namespace.
type Backend interface {
	Put(ctx context.Context, obj Object, body io.Reader) error
	Get(ctx context.Context, bucket, name string) (io.ReadCloser, *Object, error)
}
