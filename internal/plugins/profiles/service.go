package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/restquery"
	"github.com/keyxmakerx/scribe/internal/sanitize"
)

// ProfileService handles profile business logic.
type ProfileService interface {
	// Upsert writes the caller's own profile. Writing any other id is 403.
	Upsert(ctx context.Context, callerID string, req UpsertRequest) (*Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
	List(ctx context.Context, q restquery.Query) ([]Profile, error)
}

type profileService struct {
	repo ProfileRepository
	now  func() time.Time
}

// NewProfileService creates a new profile service.
func NewProfileService(repo ProfileRepository) ProfileService {
	return &profileService{repo: repo, now: time.Now}
}

func (s *profileService) Upsert(ctx context.Context, callerID string, req UpsertRequest) (*Profile, error) {
	if callerID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if req.ID != callerID {
		return nil, apperror.NewForbidden("cannot write another user's profile")
	}

	p := &Profile{ID: req.ID, UpdatedAt: s.now().UTC()}
	if req.Username != nil {
		name := sanitize.Username(*req.Username)
		if name == "" {
			return nil, apperror.NewValidation("username must not be blank")
		}
		p.Username = &name
	}
	if req.AvatarURL != nil {
		u, ok := sanitize.ImageURL(*req.AvatarURL)
		if !ok {
			return nil, apperror.NewValidation("avatar_url must be an http(s) URL")
		}
		p.AvatarURL = &u
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return p, nil
}

func (s *profileService) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *profileService) List(ctx context.Context, q restquery.Query) ([]Profile, error) {
	out, err := s.repo.Select(ctx, q)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(err)
	}
	return out, nil
}
