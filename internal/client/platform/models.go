package platform

import "time"

// Profile mirrors a profiles row.
type Profile struct {
	ID        string  `json:"id"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Post mirrors a posts row.
type Post struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	ImageURL  *string   `json:"image_url,omitempty"`
}

// PostWithAuthor is the read-only feed projection.
type PostWithAuthor struct {
	Post
	AuthorEmail    string  `json:"author_email"`
	AuthorUsername *string `json:"author_username,omitempty"`
	AuthorAvatar   *string `json:"author_avatar,omitempty"`
}

// UsernameFromEmail returns the local part of email, the default username.
func UsernameFromEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
