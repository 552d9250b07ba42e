// Package posts holds the client-side post operations: the thin repository
// over the row store, an id-keyed cache of the signed-in user's posts, and
// the dashboard flows that combine uploads with post writes.
package posts

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// Repository issues post reads and writes against the row store. Every
// platform error is logged and returned unchanged. Ownership is enforced
// by the platform, which only matches the caller's rows on update and
// delete.
type Repository struct {
	rows   platform.RowStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository creates a post repository.
func NewRepository(rows platform.RowStore, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{rows: rows, logger: logger, now: time.Now}
}

type insertRow struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	AuthorID string  `json:"author_id"`
	ImageURL *string `json:"image_url,omitempty"`
}

type updateRow struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Create inserts a post authored by authorID and returns the stored row.
func (r *Repository) Create(ctx context.Context, authorID, title, content string, imageURL *string) (*platform.Post, error) {
	var out []platform.Post
	err := r.rows.Insert(ctx, platform.TablePosts, insertRow{
		Title: title, Content: content, AuthorID: authorID, ImageURL: imageURL,
	}, &out)
	if err != nil {
		r.logger.Error("creating post", slog.Any("error", err))
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("insert returned no row")
	}
	return &out[0], nil
}

// ListByAuthor returns authorID's posts newest first, ties broken by id
// since created_at has second precision. No posts is an empty slice, not nil.
func (r *Repository) ListByAuthor(ctx context.Context, authorID string) ([]platform.Post, error) {
	var out []platform.Post
	err := r.rows.Select(ctx, platform.TablePosts, restquery.Query{
		Filters: []restquery.Filter{{Column: "author_id", Op: restquery.Eq, Value: authorID}},
		Order:   []restquery.Order{{Column: "created_at", Desc: true}, {Column: "id", Desc: true}},
	}, &out)
	if err != nil {
		r.logger.Error("listing posts", slog.String("author_id", authorID), slog.Any("error", err))
		return nil, err
	}
	if out == nil {
		out = []platform.Post{}
	}
	return out, nil
}

// Update rewrites title and content, replaces the image only when imageURL
// is non-nil, and always stamps updated_at.
func (r *Repository) Update(ctx context.Context, postID int64, title, content string, imageURL *string) (*platform.Post, error) {
	var out []platform.Post
	err := r.rows.Update(ctx, platform.TablePosts, idFilter(postID), updateRow{
		Title: title, Content: content, ImageURL: imageURL, UpdatedAt: r.now().UTC(),
	}, &out)
	if err != nil {
		r.logger.Error("updating post", slog.Int64("post_id", postID), slog.Any("error", err))
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("update returned no row")
	}
	return &out[0], nil
}

// Delete removes a post.
func (r *Repository) Delete(ctx context.Context, postID int64) error {
	if err := r.rows.Delete(ctx, platform.TablePosts, idFilter(postID)); err != nil {
		r.logger.Error("deleting post", slog.Int64("post_id", postID), slog.Any("error", err))
		return err
	}
	return nil
}

// FetchFeed returns every post with its author, newest first. A failed
// fetch is logged and shown as an empty feed rather than an error page.
func (r *Repository) FetchFeed(ctx context.Context) []platform.PostWithAuthor {
	var out []platform.PostWithAuthor
	if err := r.rows.RPC(ctx, platform.RPCFeed, nil, &out); err != nil {
		r.logger.Error("fetching feed", slog.Any("error", err))
		return []platform.PostWithAuthor{}
	}
	if out == nil {
		out = []platform.PostWithAuthor{}
	}
	return out
}

func idFilter(id int64) []restquery.Filter {
	return []restquery.Filter{{Column: "id", Op: restquery.Eq, Value: strconv.FormatInt(id, 10)}}
}
