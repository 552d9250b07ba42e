// Package media uploads user files to the object store and returns their
// public URLs. Object names are "<userId>-<unixMillis>.<ext>".
package media

import (
	"context"
	"log/slog"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/session"
)

// Uploader is the media upload adapter.
type Uploader struct {
	objects platform.ObjectStore
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an uploader over objects.
func New(objects platform.ObjectStore, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{objects: objects, logger: logger, now: time.Now}
}

// Upload stores file in bucket as the session user found in ctx.
func (u *Uploader) Upload(ctx context.Context, file platform.File, bucket string) (string, error) {
	userID := session.UserID(ctx)
	if userID == "" {
		return "", session.ErrNoSession
	}
	return u.UploadAs(ctx, userID, file, bucket)
}

// UploadAs stores file for an explicit user, for flows such as signup that
// hold the new identity before the session store has observed it. It makes
// a single attempt; a failure is logged and returned.
func (u *Uploader) UploadAs(ctx context.Context, userID string, file platform.File, bucket string) (string, error) {
	name := ObjectName(userID, u.now(), file.Name)

	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension("." + extension(file.Name))
	}

	if err := u.objects.Upload(ctx, bucket, name, contentType, file.Body); err != nil {
		u.logger.Error("uploading file",
			slog.String("bucket", bucket),
			slog.String("object", name),
			slog.Any("error", err),
		)
		return "", err
	}
	return u.objects.PublicURL(bucket, name), nil
}

// ObjectName builds the storage name for a file uploaded at t.
func ObjectName(userID string, t time.Time, filename string) string {
	return userID + "-" + strconv.FormatInt(t.UnixMilli(), 10) + "." + extension(filename)
}

// extension is the file name's last dot-separated segment. A name with no
// dot is its own extension.
func extension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
