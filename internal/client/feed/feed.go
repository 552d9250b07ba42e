// Package feed filters the public post feed on the client. Filtering is
// pure: it never touches the network and preserves input order.
package feed

import (
	"strings"

	"github.com/keyxmakerx/scribe/internal/client/platform"
)

// Query holds the two search boxes. Text matches title or content; Author
// matches username or email. An empty field matches everything.
type Query struct {
	Text   string
	Author string
}

// Empty reports whether both fields are blank.
func (q Query) Empty() bool {
	return q.Text == "" && q.Author == ""
}

// Match reports whether one post satisfies q. Matching is a
// case-insensitive substring test and both fields must match.
func Match(q Query, title, content, username, email string) bool {
	return matchAny(q.Text, title, content) && matchAny(q.Author, username, email)
}

// Filter returns the posts matching q in their original order. With an
// empty query the input slice is returned unchanged.
func Filter(posts []platform.PostWithAuthor, q Query) []platform.PostWithAuthor {
	if q.Empty() {
		return posts
	}
	out := make([]platform.PostWithAuthor, 0, len(posts))
	for _, p := range posts {
		username := ""
		if p.AuthorUsername != nil {
			username = *p.AuthorUsername
		}
		if Match(q, p.Title, p.Content, username, p.AuthorEmail) {
			out = append(out, p)
		}
	}
	return out
}

func matchAny(needle string, fields ...string) bool {
	if needle == "" {
		return true
	}
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
