// Package profiles reads and writes the application-level user record and
// runs the change-avatar flow.
package profiles

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyxmakerx/scribe/internal/client/media"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/session"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// ErrNotFound is returned by Get when the user has no profile row yet.
var ErrNotFound = errors.New("profile not found")

// Service wraps the profiles table.
type Service struct {
	rows     platform.RowStore
	uploader *media.Uploader
	logger   *slog.Logger
}

// New creates a profile service.
func New(rows platform.RowStore, uploader *media.Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rows: rows, uploader: uploader, logger: logger}
}

// Upsert writes p keyed on its id and returns the stored row.
func (s *Service) Upsert(ctx context.Context, p platform.Profile) (*platform.Profile, error) {
	var out []platform.Profile
	if err := s.rows.Upsert(ctx, platform.TableProfiles, p, &out); err != nil {
		s.logger.Error("upserting profile", slog.String("id", p.ID), slog.Any("error", err))
		return nil, err
	}
	if len(out) == 0 {
		return &p, nil
	}
	return &out[0], nil
}

// Get returns the profile with id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*platform.Profile, error) {
	var out []platform.Profile
	err := s.rows.Select(ctx, platform.TableProfiles, restquery.Query{
		Filters: []restquery.Filter{{Column: "id", Op: restquery.Eq, Value: id}},
		Limit:   1,
	}, &out)
	if err != nil {
		s.logger.Error("loading profile", slog.String("id", id), slog.Any("error", err))
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// ChangeAvatar uploads file to the avatars bucket and points the session
// user's profile at it. The username is reset to the email's local part.
func (s *Service) ChangeAvatar(ctx context.Context, file platform.File) (*platform.Profile, error) {
	sess, err := session.FromContext(ctx).RequireSession()
	if err != nil {
		return nil, err
	}
	url, err := s.uploader.UploadAs(ctx, sess.UserID, file, platform.BucketAvatars)
	if err != nil {
		return nil, err
	}
	username := platform.UsernameFromEmail(sess.Email)
	return s.Upsert(ctx, platform.Profile{ID: sess.UserID, Username: &username, AvatarURL: &url})
}
