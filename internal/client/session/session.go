// Package session holds the client's current authenticated identity and
// keeps it in sync with the auth provider's state-change notifications.
// The session is an immutable snapshot behind an atomic pointer; only the
// provider's event handler replaces it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/keyxmakerx/scribe/internal/client/platform"
)

// ErrNoSession is returned when an operation needs a signed-in user.
var ErrNoSession = errors.New("no active session")

// Store mirrors the provider's session for the rest of the client.
type Store struct {
	provider platform.AuthProvider
	nav      platform.Navigator
	logger   *slog.Logger

	current atomic.Pointer[platform.Session]

	mu        sync.Mutex
	sub       platform.Subscription
	closeOnce sync.Once
}

// New creates an uninitialized store. Call Init once at startup and Close
// at shutdown.
func New(provider platform.AuthProvider, nav platform.Navigator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{provider: provider, nav: nav, logger: logger}
}

// Init subscribes to auth events and loads the provider's current session.
// A provider failure is logged and leaves the store signed out.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	if s.sub == nil {
		s.sub = s.provider.OnAuthStateChange(s.handle)
	}
	s.mu.Unlock()

	sess, err := s.provider.GetSession(ctx)
	if err != nil {
		s.logger.Error("loading session", slog.Any("error", err))
		return
	}
	s.current.Store(complete(sess))
}

// Close unsubscribes from the provider. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
	})
}

// Current returns a copy of the session, or nil when signed out.
func (s *Store) Current() *platform.Session {
	sess := s.current.Load()
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

// RequireSession returns the session, or sends the user to the login view
// and returns ErrNoSession.
func (s *Store) RequireSession() (*platform.Session, error) {
	if sess := s.Current(); sess != nil {
		return sess, nil
	}
	s.nav.Navigate(platform.ViewLogin)
	return nil, ErrNoSession
}

// handle applies one provider event. Every event replaces the stored
// session wholesale.
func (s *Store) handle(e platform.AuthEvent) {
	s.logger.Debug("auth state changed", slog.String("event", e.Kind.String()))

	switch e.Kind {
	case platform.SignedIn:
		s.current.Store(complete(e.Session))
		s.nav.Refresh()
	case platform.SignedOut:
		s.current.Store(nil)
		s.nav.Refresh()
		s.nav.Navigate(platform.ViewLanding)
	default:
		s.current.Store(complete(e.Session))
	}
}

// complete drops partial sessions so the store holds all four identity
// fields or nothing.
func complete(sess *platform.Session) *platform.Session {
	if !sess.Valid() {
		return nil
	}
	cp := *sess
	return &cp
}

type ctxKey struct{}

// WithStore returns a context carrying s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the store carried by ctx. Calling it on a context
// without a store is a programming error and panics.
func FromContext(ctx context.Context) *Store {
	s, ok := ctx.Value(ctxKey{}).(*Store)
	if !ok || s == nil {
		panic("session: FromContext called without a session store in the context")
	}
	return s
}

// UserID returns the signed-in user's id from the context's store, or "".
func UserID(ctx context.Context) string {
	if sess := FromContext(ctx).Current(); sess != nil {
		return sess.UserID
	}
	return ""
}
