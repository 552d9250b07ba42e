// Package pages contains the server-rendered HTML pages. Each page is a
// templ component wrapped in layouts.Base; view data arrives as the plain
// structs below so this package never imports plugin types.
package pages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/scribe/internal/templates/layouts"
)

// PostView is one post as shown on the feed or dashboard.
type PostView struct {
	ID           int64
	Title        string
	Content      string
	ImageURL     string
	AuthorName   string
	AuthorAvatar string
	CreatedAt    time.Time
}

// page builds a component from a printer callback inside the base layout.
func page(title string, fn func(ctx context.Context, p *layouts.Printer)) templ.Component {
	return layouts.Base(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := layouts.NewPrinter(w)
		fn(ctx, p)
		return p.Err()
	}))
}

// Feed renders the public post list with the search form.
func Feed(posts []PostView, query, author string) templ.Component {
	return page("Feed", func(_ context.Context, p *layouts.Printer) {
		p.Raw(`<h1>Latest posts</h1>`)
		p.Raw(`<form method="get" action="/" class="search">`)
		p.Raw(`<input type="search" name="q" placeholder="Search posts" value="`).Text(query).Raw(`">`)
		p.Raw(`<input type="search" name="author" placeholder="Author" value="`).Text(author).Raw(`">`)
		p.Raw(`<button type="submit">Filter</button></form>`)

		if len(posts) == 0 {
			p.Raw(`<p class="empty">No posts found.</p>`)
			return
		}
		for _, post := range posts {
			p.Raw(`<article class="post"><header>`)
			if post.AuthorAvatar != "" {
				p.Raw(`<img class="avatar" alt="" src="`).Text(post.AuthorAvatar).Raw(`">`)
			}
			p.Raw(`<span class="author">`).Text(post.AuthorName).Raw(`</span> `)
			writeTime(p, post.CreatedAt)
			p.Raw(`</header>`)
			writePostBody(p, post)
			p.Raw(`</article>`)
		}
	})
}

// Login renders the sign-in form. email is echoed back after a failure.
func Login(email, errMsg, notice string) templ.Component {
	return page("Sign in", func(ctx context.Context, p *layouts.Printer) {
		p.Raw(`<h1>Sign in</h1>`)
		if notice != "" {
			p.Raw(`<p class="notice">`).Text(notice).Raw(`</p>`)
		}
		writeError(p, errMsg)
		p.Raw(`<form method="post" action="/login">`)
		layouts.CSRFField(ctx, p)
		p.Raw(`<label>Email <input type="email" name="email" required value="`).Text(email).Raw(`"></label>`)
		p.Raw(`<label>Password <input type="password" name="password" required></label>`)
		p.Raw(`<button type="submit">Sign in</button></form>`)
	})
}

// ResetPassword renders the form reached from a recovery mail.
func ResetPassword(token, errMsg string) templ.Component {
	return page("Reset password", func(ctx context.Context, p *layouts.Printer) {
		p.Raw(`<h1>Choose a new password</h1>`)
		writeError(p, errMsg)
		p.Raw(`<form method="post" action="/auth/reset-password">`)
		layouts.CSRFField(ctx, p)
		p.Raw(`<input type="hidden" name="token" value="`).Text(token).Raw(`">`)
		p.Raw(`<label>New password <input type="password" name="password" required minlength="8"></label>`)
		p.Raw(`<button type="submit">Update password</button></form>`)
	})
}

// Dashboard renders the signed-in user's posts with create, edit and delete
// controls.
func Dashboard(posts []PostView, errMsg string) templ.Component {
	return page("Dashboard", func(ctx context.Context, p *layouts.Printer) {
		p.Raw(`<h1>Your posts</h1>`)
		writeError(p, errMsg)

		p.Raw(`<form method="post" action="/dashboard/posts" class="new-post">`)
		layouts.CSRFField(ctx, p)
		p.Raw(`<label>Title <input name="title" required maxlength="255"></label>`)
		p.Raw(`<label>Content <textarea name="content" required></textarea></label>`)
		p.Raw(`<label>Image URL <input type="url" name="image_url"></label>`)
		p.Raw(`<button type="submit">Publish</button></form>`)

		if len(posts) == 0 {
			p.Raw(`<p class="empty">You have not written anything yet.</p>`)
			return
		}
		for _, post := range posts {
			id := strconv.FormatInt(post.ID, 10)
			p.Raw(`<article class="post">`)
			writeTime(p, post.CreatedAt)
			writePostBody(p, post)
			p.Raw(`<a href="/dashboard/posts/`).Raw(id).Raw(`/edit">Edit</a>`)
			p.Raw(`<form method="post" action="/dashboard/posts/`).Raw(id).Raw(`/delete" class="inline">`)
			layouts.CSRFField(ctx, p)
			p.Raw(`<button type="submit">Delete</button></form></article>`)
		}
	})
}

// EditPost renders the edit form for one post.
func EditPost(post PostView, errMsg string) templ.Component {
	return page("Edit post", func(ctx context.Context, p *layouts.Printer) {
		p.Raw(`<h1>Edit post</h1>`)
		writeError(p, errMsg)
		p.Raw(`<form method="post" action="/dashboard/posts/`).Raw(strconv.FormatInt(post.ID, 10)).Raw(`">`)
		layouts.CSRFField(ctx, p)
		p.Raw(`<label>Title <input name="title" required maxlength="255" value="`).Text(post.Title).Raw(`"></label>`)
		p.Raw(`<label>Content <textarea name="content" required>`).Text(post.Content).Raw(`</textarea></label>`)
		p.Raw(`<label>New image URL <input type="url" name="image_url"></label>`)
		p.Raw(`<button type="submit">Save</button> <a href="/dashboard">Cancel</a></form>`)
	})
}

// ErrorPage renders a status page for browser requests.
func ErrorPage(code int, message string) templ.Component {
	return page(http.StatusText(code), func(_ context.Context, p *layouts.Printer) {
		p.Raw(`<h1>`).Text(fmt.Sprintf("%d %s", code, http.StatusText(code))).Raw(`</h1>`)
		p.Raw(`<p>`).Text(message).Raw(`</p><p><a href="/">Back to the feed</a></p>`)
	})
}

func writePostBody(p *layouts.Printer, post PostView) {
	p.Raw(`<h2>`).Text(post.Title).Raw(`</h2>`)
	if post.ImageURL != "" {
		p.Raw(`<img class="post-image" alt="" src="`).Text(post.ImageURL).Raw(`">`)
	}
	p.Raw(`<p class="content">`).Text(post.Content).Raw(`</p>`)
}

func writeTime(p *layouts.Printer, t time.Time) {
	if t.IsZero() {
		return
	}
	p.Raw(`<time datetime="`).Raw(t.UTC().Format(time.RFC3339)).Raw(`">`).
		Text(t.UTC().Format("Jan 2, 2006")).Raw(`</time>`)
}

func writeError(p *layouts.Printer, msg string) {
	if msg != "" {
		p.Raw(`<p class="error" role="alert">`).Text(msg).Raw(`</p>`)
	}
}
