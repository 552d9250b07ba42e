package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LocalBackend stores objects as files under root/<bucket>/<name>.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates root if needed.
func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) path(bucket, name string) string {
	return filepath.Join(b.root, bucket, filepath.Base(name))
}

// Put writes the object through a temporary file so readers never see a
// partial object.
func (b *LocalBackend) Put(_ context.Context, obj Object, body io.Reader) error {
	dir := filepath.Join(b.root, obj.Bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating bucket directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting object mode: %w", err)
	}
	return os.Rename(tmp.Name(), b.path(obj.Bucket, obj.Name))
}

// Get opens an object. The content type is sniffed from its first bytes;
// uploads are restricted to image types the sniffer recognizes.
func (b *LocalBackend) Get(_ context.Context, bucket, name string) (io.ReadCloser, *Object, error) {
	f, err := os.Open(b.path(bucket, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &Object{
		Bucket:      bucket,
		Name:        name,
		ContentType: http.DetectContentType(head[:n]),
		Size:        info.Size(),
	}, nil
}
