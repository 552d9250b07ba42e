// Package layouts holds the page shell shared by every server-rendered page
// and the typed context helpers that feed it. Handlers never pass layout
// data explicitly: middleware.LayoutInjector copies it into the render
// context and the shell reads it back here.
package layouts

import "context"

type ctxKey string

const (
	keyUserEmail ctxKey = "layout_user_email"
	keyCSRFToken ctxKey = "layout_csrf_token"
	keyFlash     ctxKey = "layout_flash"
)

// WithUserEmail marks the render as signed in.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyUserEmail, email)
}

// UserEmail returns the signed-in email, or "" for anonymous renders.
func UserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

// IsAuthenticated reports whether the render has a signed-in user.
func IsAuthenticated(ctx context.Context) bool {
	return UserEmail(ctx) != ""
}

// WithCSRFToken stores the token forms must echo back.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

// CSRFToken returns the token for hidden form fields.
func CSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

// WithFlash attaches a one-shot notice, shown at the top of the page.
func WithFlash(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, keyFlash, msg)
}

// Flash returns the notice, if any.
func Flash(ctx context.Context) string {
	v, _ := ctx.Value(keyFlash).(string)
	return v
}
