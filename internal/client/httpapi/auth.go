package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/keyxmakerx/scribe/internal/client/localstore"
	"github.com/keyxmakerx/scribe/internal/client/platform"
)

// authState is the provider-side session cell and listener registry.
type authState struct {
	mu      sync.Mutex
	session *platform.Session
	loaded  bool

	lmu       sync.Mutex
	listeners map[int]platform.Listener
	nextID    int
}

func newAuthState() *authState {
	return &authState{listeners: make(map[int]platform.Listener)}
}

// wireSession is the server's session JSON.
type wireSession struct {
	AccessToken  string `json:"access_token"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (w wireSession) toSession() *platform.Session {
	return &platform.Session{
		UserID:       w.User.ID,
		Email:        w.User.Email,
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		ExpiresAt:    time.Unix(w.ExpiresAt, 0).UTC(),
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates an account and signs in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*platform.Session, error) {
	return c.grant(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: credentials{email, password}}, platform.SignedIn)
}

// SignInWithPassword signs in with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*platform.Session, error) {
	return c.grant(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{email, password},
	}, platform.SignedIn)
}

// VerifyRecovery exchanges a recovery token for a session.
func (c *Client) VerifyRecovery(ctx context.Context, token string) (*platform.Session, error) {
	return c.grant(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": "recovery", "token": token},
	}, platform.PasswordRecovery)
}

func (c *Client) grant(ctx context.Context, r request, kind platform.EventKind) (*platform.Session, error) {
	var w wireSession
	if err := c.do(ctx, r, &w); err != nil {
		return nil, err
	}
	sess := w.toSession()
	if !sess.Valid() {
		return nil, errors.New("server returned an incomplete session")
	}
	c.setSession(sess)
	c.emit(kind, sess)
	return clone(sess), nil
}

// SignOut revokes the session on the server and forgets it locally. The
// local session is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if sess := c.loadSession(); sess != nil {
		err = c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: sess.AccessToken}, nil)
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			err = nil
		}
	}
	c.setSession(nil)
	c.emit(platform.SignedOut, nil)
	return err
}

// GetSession returns the current session, restoring it from the local
// store on first use and refreshing an expired access token. A refresh
// the server rejects signs the client out and returns (nil, nil).
func (c *Client) GetSession(ctx context.Context) (*platform.Session, error) {
	sess := c.loadSession()
	if sess == nil {
		return nil, nil
	}
	if c.now().Before(sess.ExpiresAt.Add(-expiryMargin)) {
		return clone(sess), nil
	}

	var w wireSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": sess.RefreshToken},
	}, &w)
	if err != nil {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			c.setSession(nil)
			c.emit(platform.SignedOut, nil)
			return nil, nil
		}
		return nil, err
	}

	refreshed := w.toSession()
	c.setSession(refreshed)
	c.emit(platform.TokenRefreshed, refreshed)
	return clone(refreshed), nil
}

// ResetPasswordForEmail asks the server to mail a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		body:   map[string]string{"email": email, "redirect_to": redirectURL},
	}, nil)
}

// UpdateUser changes the signed-in user's password or metadata.
func (c *Client) UpdateUser(ctx context.Context, attrs platform.UserAttributes) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return &platform.APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "not signed in"}
	}
	if err := c.do(ctx, request{method: http.MethodPut, path: "/auth/v1/user", body: attrs, bearer: token}, nil); err != nil {
		return err
	}
	c.emit(platform.UserUpdated, c.loadSession())
	return nil
}

// OnAuthStateChange registers fn for every subsequent auth event.
func (c *Client) OnAuthStateChange(fn platform.Listener) platform.Subscription {
	a := c.auth
	a.lmu.Lock()
	defer a.lmu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return &subscription{unsubscribe: func() {
		a.lmu.Lock()
		delete(a.listeners, id)
		a.lmu.Unlock()
	}}
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.unsubscribe) }

// emit delivers an event to every listener in registration order on the
// caller's goroutine. Listeners may call back into the client.
func (c *Client) emit(kind platform.EventKind, sess *platform.Session) {
	a := c.auth
	a.lmu.Lock()
	ids := make([]int, 0, len(a.listeners))
	for id := range a.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]platform.Listener, len(ids))
	for i, id := range ids {
		fns[i] = a.listeners[id]
	}
	a.lmu.Unlock()

	for _, fn := range fns {
		fn(platform.AuthEvent{Kind: kind, Session: clone(sess)})
	}
}

// accessToken returns a fresh bearer token, or "" when signed out.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	sess, err := c.GetSession(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// loadSession returns the in-memory session, reading the persisted copy
// the first time.
func (c *Client) loadSession() *platform.Session {
	a := c.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		a.loaded = true
		if raw, err := c.store.Get(localstore.ProviderSessionKey); err == nil {
			var s platform.Session
			if err := json.Unmarshal(raw, &s); err == nil && s.Valid() {
				a.session = &s
			} else {
				c.logger.Warn("discarding unreadable persisted session", slog.Any("error", err))
			}
		}
	}
	return a.session
}

// setSession replaces the session wholesale and persists it. nil clears.
func (c *Client) setSession(sess *platform.Session) {
	a := c.auth
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loaded = true
	a.session = clone(sess)

	if sess == nil {
		if err := c.store.Delete(localstore.ProviderSessionKey); err != nil {
			c.logger.Warn("clearing persisted session", slog.Any("error", err))
		}
		return
	}
	raw, err := json.Marshal(sess)
	if err == nil {
		err = c.store.Set(localstore.ProviderSessionKey, raw)
	}
	if err != nil {
		c.logger.Warn("persisting session", slog.Any("error", err))
	}
}

func clone(s *platform.Session) *platform.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
