package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"regexp"
	"strings"

	// Register the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/metrics"
)

// cacheControl is sent with every object. Object names carry a timestamp,
// so a name is never reused for different content.
const cacheControl = "public, max-age=31536000, immutable"

// namePattern restricts object names to a single safe path segment.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)

// StorageService validates uploads and serves stored objects.
type StorageService interface {
	Upload(ctx context.Context, callerID string, in UploadInput) (*Object, error)
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, *Object, error)
}

// UploadInput is a raw upload as received by the handler.
type UploadInput struct {
	Bucket      string
	Name        string
	ContentType string
	Data        []byte
}

type storageService struct {
	backend Backend
	maxSize int64
	metrics metrics.Recorder
}

// NewStorageService wires the service. rec may be metrics.Nop{}.
func NewStorageService(backend Backend, maxSize int64, rec metrics.Recorder) StorageService {
	return &storageService{backend: backend, maxSize: maxSize, metrics: rec}
}

// Upload checks the bucket, ownership prefix, size, declared type, magic
// bytes and decodability before writing. Avatars larger than AvatarMaxDim
// are scaled down first.
func (s *storageService) Upload(ctx context.Context, callerID string, in UploadInput) (*Object, error) {
	if callerID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if !Buckets[in.Bucket] {
		return nil, apperror.NewNotFound("bucket not found")
	}
	if !validName(in.Name) {
		return nil, apperror.NewBadRequest("invalid object name")
	}
	if !strings.HasPrefix(in.Name, callerID+"-") {
		return nil, apperror.NewForbidden("object name must start with your user id")
	}
	if int64(len(in.Data)) > s.maxSize {
		return nil, apperror.NewPayloadTooLarge(fmt.Sprintf("file too large; maximum size is %d MB", s.maxSize/(1024*1024)))
	}

	contentType := normalizeType(in.ContentType)
	if !AllowedMimeTypes[contentType] {
		return nil, apperror.NewUnsupportedMedia("unsupported file type: " + contentType)
	}
	if !validateMagicBytes(in.Data, contentType) {
		return nil, apperror.NewUnsupportedMedia("file content does not match declared type")
	}

	// The header is checked before any full decode so a few bytes cannot
	// claim a canvas the decoder would allocate.
	if err := checkDimensions(in.Data); err != nil {
		return nil, err
	}

	data := in.Data
	if in.Bucket == BucketAvatars {
		var err error
		data, contentType, err = fitAvatar(data, contentType)
		if err != nil {
			return nil, err
		}
	}

	obj := Object{Bucket: in.Bucket, Name: in.Name, ContentType: contentType, Size: int64(len(data))}
	if err := s.backend.Put(ctx, obj, bytes.NewReader(data)); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("storing object: %w", err))
	}
	s.metrics.ObjectStored(obj.Bucket, obj.Size)

	slog.Info("object stored",
		slog.String("key", obj.Key()),
		slog.String("content_type", obj.ContentType),
		slog.Int64("size", obj.Size),
	)
	return &obj, nil
}

// Open returns the object's bytes and metadata.
func (s *storageService) Open(ctx context.Context, bucket, name string) (io.ReadCloser, *Object, error) {
	if !Buckets[bucket] || !validName(name) {
		return nil, nil, apperror.NewNotFound("object not found")
	}
	body, obj, err := s.backend.Get(ctx, bucket, name)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil, apperror.NewNotFound("object not found")
	}
	if err != nil {
		return nil, nil, apperror.NewInternal(err)
	}
	return body, obj, nil
}

func validName(name string) bool {
	return namePattern.MatchString(name) && !strings.Contains(name, "..")
}

// normalizeType drops parameters such as "; charset=binary".
func normalizeType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// checkDimensions reads only the image header and rejects canvases over
// MaxImageSide or MaxImagePixels.
func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return apperror.NewValidation("image could not be decoded")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return apperror.NewValidation("image has no pixels")
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide ||
		int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return apperror.NewValidation(fmt.Sprintf("image dimensions %dx%d are too large", cfg.Width, cfg.Height))
	}
	return nil
}

// fitAvatar decodes an avatar and, when it exceeds AvatarMaxDim, re-encodes
// a scaled copy. WebP has no encoder in x/image, so large WebP avatars are
// stored as JPEG.
func fitAvatar(data []byte, contentType string) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperror.NewValidation("image could not be decoded")
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= AvatarMaxDim && h <= AvatarMaxDim {
		return data, contentType, nil
	}

	newW, newH := AvatarMaxDim, AvatarMaxDim
	if w > h {
		newH = max(1, h*AvatarMaxDim/w)
	} else {
		newW = max(1, w*AvatarMaxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch contentType {
	case "image/png":
		err = png.Encode(&buf, dst)
	case "image/gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("encoding avatar: %w", err))
	}
	return buf.Bytes(), contentType, nil
}

// validateMagicBytes checks that the content's leading bytes match the
// declared type so a spoofed Content-Type cannot smuggle other files in.
func validateMagicBytes(data []byte, declared string) bool {
	switch declared {
	case "image/jpeg":
		return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
	case "image/png":
		return bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
	case "image/gif":
		return len(data) >= 6 && string(data[:3]) == "GIF"
	case "image/webp":
		return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
	default:
		return false
	}
}
