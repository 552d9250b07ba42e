// Package gateway wraps the auth provider with the client's sign-up, login,
// logout and password flows. The password policy is enforced locally
// before any request is made; provider errors are logged and returned
// unchanged, with no retries.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/keyxmakerx/scribe/internal/client/localstore"
	"github.com/keyxmakerx/scribe/internal/client/media"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/profiles"
	"github.com/keyxmakerx/scribe/internal/client/session"
)

// ErrWeakPassword is returned before contacting the provider when a new
// password fails IsPasswordStrong.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a number and a special character")

// specialChars is the set of characters that satisfy the symbol rule.
const specialChars = `!@#$%^&*(),.?":{}|<>`

// IsPasswordStrong reports whether p has at least 8 characters, an
// uppercase ASCII letter, a lowercase ASCII letter, a digit and one of the
// special characters. Characters are code points, not UTF-16 units.
func IsPasswordStrong(p string) bool {
	if utf8.RuneCountInString(p) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string
	Password string
	// Username defaults to the email's local part when empty.
	Username string
	Avatar   *platform.File
}

// Gateway runs the auth flows.
type Gateway struct {
	auth     platform.AuthProvider
	state    localstore.Store
	uploader *media.Uploader
	profiles *profiles.Service
	siteURL  string
	logger   *slog.Logger
}

// Config carries the Gateway's collaborators.
type Config struct {
	Auth     platform.AuthProvider
	State    localstore.Store
	Uploader *media.Uploader
	Profiles *profiles.Service

	// SiteURL is where recovery links land; "/auth/reset-password" is
	// appended.
	SiteURL string
	Logger  *slog.Logger
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		auth:     cfg.Auth,
		state:    cfg.State,
		uploader: cfg.Uploader,
		profiles: cfg.Profiles,
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		logger:   logger,
	}
}

// SignUp registers a user. An avatar upload failure or a profile write
// failure is logged and does not fail the signup.
func (g *Gateway) SignUp(ctx context.Context, in SignUpInput) (*platform.Session, error) {
	if !IsPasswordStrong(in.Password) {
		return nil, ErrWeakPassword
	}

	sess, err := g.auth.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		g.logger.Error("signing up", slog.String("email", in.Email), slog.Any("error", err))
		return nil, err
	}
	g.persistTokens(sess)

	var avatarURL *string
	if in.Avatar != nil {
		url, err := g.uploader.UploadAs(ctx, sess.UserID, *in.Avatar, platform.BucketAvatars)
		if err != nil {
			g.logger.Warn("continuing signup without avatar", slog.Any("error", err))
		} else {
			avatarURL = &url
		}
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = platform.UsernameFromEmail(in.Email)
	}
	if _, err := g.profiles.Upsert(ctx, platform.Profile{ID: sess.UserID, Username: &username, AvatarURL: avatarURL}); err != nil {
		g.logger.Warn("signup profile not saved", slog.String("user_id", sess.UserID), slog.Any("error", err))
	}

	data := map[string]any{"username": username}
	if avatarURL != nil {
		data["avatar_url"] = *avatarURL
	}
	if err := g.auth.UpdateUser(ctx, platform.UserAttributes{Data: data}); err != nil {
		g.logger.Warn("signup metadata not saved", slog.Any("error", err))
	}

	return sess, nil
}

// Login signs in and persists the token pair.
func (g *Gateway) Login(ctx context.Context, email, password string) (*platform.Session, error) {
	sess, err := g.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		g.logger.Error("signing in", slog.String("email", email), slog.Any("error", err))
		return nil, err
	}
	g.persistTokens(sess)
	return sess, nil
}

// Logout signs out with the provider, then forgets the persisted tokens.
func (g *Gateway) Logout(ctx context.Context) error {
	err := g.auth.SignOut(ctx)
	if err != nil {
		g.logger.Error("signing out", slog.Any("error", err))
	}
	g.clearTokens()
	return err
}

// RefreshSession asks the provider for a current session. With none, the
// persisted tokens are cleared and ErrNoSession is returned.
func (g *Gateway) RefreshSession(ctx context.Context) (*platform.Session, error) {
	sess, err := g.auth.GetSession(ctx)
	if err != nil {
		g.logger.Error("refreshing session", slog.Any("error", err))
		return nil, err
	}
	if sess == nil {
		g.clearTokens()
		return nil, session.ErrNoSession
	}
	g.persistTokens(sess)
	return sess, nil
}

// ResetPassword mails a recovery link that lands on the site's
// reset-password page.
func (g *Gateway) ResetPassword(ctx context.Context, email string) error {
	if err := g.auth.ResetPasswordForEmail(ctx, email, g.siteURL+"/auth/reset-password"); err != nil {
		g.logger.Error("requesting password reset", slog.String("email", email), slog.Any("error", err))
		return err
	}
	return nil
}

// Recover exchanges the token from a recovery link for a session so that
// UpdatePassword can run.
func (g *Gateway) Recover(ctx context.Context, token string) (*platform.Session, error) {
	sess, err := g.auth.VerifyRecovery(ctx, token)
	if err != nil {
		g.logger.Error("verifying recovery token", slog.Any("error", err))
		return nil, err
	}
	g.persistTokens(sess)
	return sess, nil
}

// UpdatePassword sets a new password for the signed-in user.
func (g *Gateway) UpdatePassword(ctx context.Context, newPassword string) error {
	if !IsPasswordStrong(newPassword) {
		return ErrWeakPassword
	}
	if err := g.auth.UpdateUser(ctx, platform.UserAttributes{Password: &newPassword}); err != nil {
		g.logger.Error("updating password", slog.Any("error", err))
		return err
	}
	return nil
}

// tokenPair is the persisted auth_state value.
type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (g *Gateway) persistTokens(sess *platform.Session) {
	raw, err := json.Marshal(tokenPair{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken})
	if err == nil {
		err = g.state.Set(localstore.AuthStateKey, raw)
	}
	if err != nil {
		g.logger.Warn("persisting tokens", slog.Any("error", err))
	}
}

func (g *Gateway) clearTokens() {
	if err := g.state.Delete(localstore.AuthStateKey); err != nil {
		g.logger.Warn("clearing tokens", slog.Any("error", err))
	}
}
