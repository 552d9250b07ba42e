package posts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/restquery"
)

// columns is the filter/order allow-list for /rest/v1/posts.
var columns = restquery.Columns{
	"id":         "id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"author_id":  "author_id",
	"image_url":  "image_url",
}

// PostRepository defines the data access contract for posts. Update and
// Delete take the caller's id and only ever touch rows that caller owns.
type PostRepository interface {
	Insert(ctx context.Context, post *Post) error
	Select(ctx context.Context, q restquery.Query) ([]Post, error)

	// Update applies patch to the caller's rows matching filters and
	// returns them. Zero matching owned rows is a 404.
	Update(ctx context.Context, ownerID string, filters []restquery.Filter, patch Patch) ([]Post, error)

	// Delete removes the caller's rows matching filters. Zero matching
	// owned rows is a 404.
	Delete(ctx context.Context, ownerID string, filters []restquery.Filter) error

	// Feed returns every post joined with its author, newest first.
	Feed(ctx context.Context) ([]PostWithAuthor, error)
}

type postRepository struct {
	db *sql.DB
}

// NewPostRepository creates a MariaDB-backed post repository.
func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, created_at, updated_at, title, content, author_id, image_url`

func (r *postRepository) Insert(ctx context.Context, post *Post) error {
	query := `INSERT INTO posts (title, content, author_id, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		post.Title, post.Content, post.AuthorID, post.ImageURL, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading post id: %w", err)
	}
	post.ID = id
	return nil
}

func (r *postRepository) Select(ctx context.Context, q restquery.Query) ([]Post, error) {
	where, args, err := columns.Where(q.Filters)
	if err != nil {
		return nil, apperror.NewBadRequest(err.Error())
	}
	orderBy, err := columns.OrderBy(q.Order, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperror.NewBadRequest(err.Error())
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + where + ` ORDER BY ` + orderBy
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return r.query(ctx, r.db, query, args...)
}

func (r *postRepository) Update(ctx context.Context, ownerID string, filters []restquery.Filter, patch Patch) ([]Post, error) {
	where, args, err := ownedWhere(ownerID, filters)
	if err != nil {
		return nil, err
	}

	set := `title = ?, content = ?, updated_at = ?`
	setArgs := []any{patch.Title, patch.Content, patch.UpdatedAt}
	if patch.ImageURL != nil {
		set += `, image_url = ?`
		setArgs = append(setArgs, *patch.ImageURL)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE posts SET `+set+` WHERE `+where, append(setArgs, args...)...)
	if err != nil {
		return nil, fmt.Errorf("updating posts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NewNotFound("post not found")
	}

	updated, err := r.query(ctx, tx, `SELECT `+postColumns+` FROM posts WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing post update: %w", err)
	}
	return updated, nil
}

func (r *postRepository) Delete(ctx context.Context, ownerID string, filters []restquery.Filter) error {
	where, args, err := ownedWhere(ownerID, filters)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("deleting posts: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("post not found")
	}
	return nil
}

func (r *postRepository) Feed(ctx context.Context) ([]PostWithAuthor, error) {
	query := `SELECT p.id, p.created_at, p.updated_at, p.title, p.content, p.author_id, p.image_url,
		       u.email, pr.username, pr.avatar_url
		FROM posts p
		INNER JOIN users u ON u.id = p.author_id
		LEFT JOIN profiles pr ON pr.id = p.author_id
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	defer rows.Close()

	out := []PostWithAuthor{}
	for rows.Next() {
		var p PostWithAuthor
		if err := rows.Scan(
			&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Title, &p.Content, &p.AuthorID, &p.ImageURL,
			&p.AuthorEmail, &p.AuthorUsername, &p.AuthorAvatar,
		); err != nil {
			return nil, fmt.Errorf("scanning feed row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *postRepository) query(ctx context.Context, q queryer, query string, args ...any) ([]Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	out := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Title, &p.Content, &p.AuthorID, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ownedWhere restricts a mutation to the owner's rows. An empty filter list
// is refused so a bare PATCH or DELETE cannot sweep every owned row.
func ownedWhere(ownerID string, filters []restquery.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, apperror.NewBadRequest("a filter is required for updates and deletes")
	}
	where, args, err := columns.Where(filters)
	if err != nil {
		return "", nil, apperror.NewBadRequest(err.Error())
	}
	return where + ` AND author_id = ?`, append(args, ownerID), nil
}
