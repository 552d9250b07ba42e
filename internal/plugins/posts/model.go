// Package posts serves the /rest/v1/posts table, the public feed RPC, and
// the browser dashboard where signed-in users manage their own posts.
package posts

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Post is one row of the posts table.
type Post struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	ImageURL  *string   `json:"image_url"`
}

// PostWithAuthor is the read-only feed projection returned by
// get_posts_with_authors.
type PostWithAuthor struct {
	Post
	AuthorEmail    string  `json:"author_email"`
	AuthorUsername *string `json:"author_username"`
	AuthorAvatar   *string `json:"author_avatar"`
}

// DisplayName is the username, or the email's local part when unset.
func (p PostWithAuthor) DisplayName() string {
	if p.AuthorUsername != nil && *p.AuthorUsername != "" {
		return *p.AuthorUsername
	}
	for i := 0; i < len(p.AuthorEmail); i++ {
		if p.AuthorEmail[i] == '@' {
			return p.AuthorEmail[:i]
		}
	}
	return p.AuthorEmail
}

// InsertRequest is the body of POST /rest/v1/posts.
type InsertRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	AuthorID string  `json:"author_id"`
	ImageURL *string `json:"image_url"`
}

// Validate checks field shapes. author_id ownership is checked by the service.
func (r InsertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Required, validation.Length(1, 65535)),
		validation.Field(&r.AuthorID, validation.Required),
		validation.Field(&r.ImageURL, validation.NilOrNotEmpty, is.URL),
	)
}

// UpdateRequest is the body of PATCH /rest/v1/posts. Title and content are
// always written; image_url only when present. Any updated_at the client
// sends is ignored: the server stamps it.
type UpdateRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

// Validate checks field shapes.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Required, validation.Length(1, 65535)),
		validation.Field(&r.ImageURL, validation.NilOrNotEmpty, is.URL),
	)
}

// Patch is a sanitized update ready for the repository.
type Patch struct {
	Title     string
	Content   string
	ImageURL  *string // nil leaves the stored image untouched
	UpdatedAt time.Time
}
