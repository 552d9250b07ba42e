// Package platform defines the capabilities the Scribe client consumes from
// its backend: an auth provider, a row store, an object store, and a
// navigator standing in for the UI. Client components depend only on these
// interfaces; httpapi implements the first three against the Scribe server.
package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/keyxmakerx/scribe/internal/restquery"
)

// Session is the live authenticated identity. It is either fully present
// or nil; Valid reports whether all four identity fields are populated.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether s is a complete session.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.Email != "" && s.AccessToken != "" && s.RefreshToken != ""
}

// EventKind classifies an auth-state change.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
	TokenRefreshed
	UserUpdated
	PasswordRecovery
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	case UserUpdated:
		return "USER_UPDATED"
	case PasswordRecovery:
		return "PASSWORD_RECOVERY"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// AuthEvent is delivered to OnAuthStateChange listeners. Session is nil
// for SignedOut.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// Listener receives auth events synchronously, in emission order.
type Listener func(AuthEvent)

// Subscription is returned by OnAuthStateChange.
type Subscription interface {
	Unsubscribe()
}

// UserAttributes is the payload of AuthProvider.UpdateUser. Nil fields are
// left unchanged.
type UserAttributes struct {
	Password *string       `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// AuthProvider is the hosted identity service.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error

	// GetSession returns the current session, refreshing it if the access
	// token has expired. A nil session with a nil error means signed out.
	GetSession(ctx context.Context) (*Session, error)

	OnAuthStateChange(fn Listener) Subscription
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	UpdateUser(ctx context.Context, attrs UserAttributes) error

	// VerifyRecovery exchanges a recovery token for a session.
	VerifyRecovery(ctx context.Context, token string) (*Session, error)
}

// Row store tables and RPCs.
const (
	TablePosts    = "posts"
	TableProfiles = "profiles"
	RPCFeed       = "get_posts_with_authors"
)

// RowStore is the hosted relational store. out arguments are pointers to
// slices the JSON response is decoded into.
type RowStore interface {
	Insert(ctx context.Context, table string, row any, out any) error
	Upsert(ctx context.Context, table string, row any, out any) error
	Select(ctx context.Context, table string, q restquery.Query, out any) error
	Update(ctx context.Context, table string, filters []restquery.Filter, patch any, out any) error
	Delete(ctx context.Context, table string, filters []restquery.Filter) error
	RPC(ctx context.Context, fn string, args any, out any) error
}

// Buckets.
const (
	BucketAvatars    = "avatars"
	BucketPostImages = "post-images"
)

// ObjectStore is the hosted binary store.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error
	PublicURL(bucket, name string) string
}

// Views the navigator can show.
const (
	ViewLanding   = "/"
	ViewLogin     = "/login"
	ViewDashboard = "/dashboard"
)

// Navigator is the UI side of the client: Refresh re-reads data for the
// current view and Navigate switches views.
type Navigator interface {
	Refresh()
	Navigate(view string)
}

// File is a local file selected for upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// APIError is a non-2xx platform response, decoded from the server's
// {"error": code, "message": text} body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// IsUnauthorized reports whether the platform rejected the credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}
