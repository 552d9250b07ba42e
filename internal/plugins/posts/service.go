package posts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/restquery"
	"github.com/keyxmakerx/scribe/internal/sanitize"
)

// PostService handles post business logic. Every mutation takes the
// caller's user id; the service never writes a row on anyone else's behalf.
type PostService interface {
	Create(ctx context.Context, callerID string, req InsertRequest) (*Post, error)
	List(ctx context.Context, q restquery.Query) ([]Post, error)
	Update(ctx context.Context, callerID string, filters []restquery.Filter, req UpdateRequest) ([]Post, error)
	Delete(ctx context.Context, callerID string, filters []restquery.Filter) error
	Feed(ctx context.Context) ([]PostWithAuthor, error)

	// ListByAuthor returns an author's posts newest first.
	ListByAuthor(ctx context.Context, authorID string) ([]Post, error)

	// GetOwned returns one post if the caller owns it, otherwise 404.
	GetOwned(ctx context.Context, callerID string, id int64) (*Post, error)
}

type postService struct {
	repo PostRepository
	now  func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(repo PostRepository) PostService {
	return &postService{repo: repo, now: time.Now}
}

func (s *postService) Create(ctx context.Context, callerID string, req InsertRequest) (*Post, error) {
	if callerID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if req.AuthorID != callerID {
		return nil, apperror.NewForbidden("author_id must match the signed-in user")
	}

	title, content, err := cleanText(req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	image, err := cleanImage(req.ImageURL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	post := &Post{
		Title:     title,
		Content:   content,
		AuthorID:  callerID,
		ImageURL:  image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, post); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, q restquery.Query) ([]Post, error) {
	out, err := s.repo.Select(ctx, q)
	return out, wrap(err)
}

func (s *postService) Update(ctx context.Context, callerID string, filters []restquery.Filter, req UpdateRequest) ([]Post, error) {
	if callerID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	title, content, err := cleanText(req.Title, req.Content)
	if err != nil {
		return nil, err
	}
	image, err := cleanImage(req.ImageURL)
	if err != nil {
		return nil, err
	}

	out, err := s.repo.Update(ctx, callerID, filters, Patch{
		Title:     title,
		Content:   content,
		ImageURL:  image,
		UpdatedAt: s.now().UTC(),
	})
	return out, wrap(err)
}

func (s *postService) Delete(ctx context.Context, callerID string, filters []restquery.Filter) error {
	if callerID == "" {
		return apperror.NewUnauthorized("authentication required")
	}
	return wrap(s.repo.Delete(ctx, callerID, filters))
}

func (s *postService) Feed(ctx context.Context) ([]PostWithAuthor, error) {
	out, err := s.repo.Feed(ctx)
	return out, wrap(err)
}

func (s *postService) ListByAuthor(ctx context.Context, authorID string) ([]Post, error) {
	return s.List(ctx, restquery.Query{
		Filters: []restquery.Filter{{Column: "author_id", Op: restquery.Eq, Value: authorID}},
		Order:   []restquery.Order{{Column: "created_at", Desc: true}},
	})
}

func (s *postService) GetOwned(ctx context.Context, callerID string, id int64) (*Post, error) {
	out, err := s.List(ctx, restquery.Query{
		Filters: []restquery.Filter{
			{Column: "id", Op: restquery.Eq, Value: strconv.FormatInt(id, 10)},
			{Column: "author_id", Op: restquery.Eq, Value: callerID},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperror.NewNotFound("post not found")
	}
	return &out[0], nil
}

// IDFilter targets a single post by id.
func IDFilter(id int64) []restquery.Filter {
	return []restquery.Filter{{Column: "id", Op: restquery.Eq, Value: strconv.FormatInt(id, 10)}}
}

func cleanText(title, content string) (string, string, error) {
	title = strings.TrimSpace(sanitize.Text(title))
	content = strings.TrimSpace(sanitize.Text(content))
	if title == "" || content == "" {
		return "", "", apperror.NewValidation("title and content are required")
	}
	return title, content, nil
}

func cleanImage(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	u, ok := sanitize.ImageURL(*raw)
	if !ok {
		return nil, apperror.NewValidation("image_url must be an http(s) URL")
	}
	return &u, nil
}

// wrap passes AppErrors through and hides everything else behind a 500.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(err)
}
