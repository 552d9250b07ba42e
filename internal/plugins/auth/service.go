package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/argon2"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/metrics"
)

// argon2id parameters (OWASP baseline: 64 MiB, 3 passes, 4 lanes).
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// resetPasswordPath is where recovery links land when the client does not
// supply its own redirect.
const resetPasswordPath = "/auth/reset-password"

// RecoveryMailer delivers password recovery links.
type RecoveryMailer interface {
	SendRecoveryLink(ctx context.Context, to, link string) error
}

// AuthService is the auth provider's business logic. Handlers call these
// methods and never touch the repository or Redis directly.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, id Identity) error
	Authenticate(ctx context.Context, accessToken string) (*Identity, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (*User, error)
	Recover(ctx context.Context, email, redirectTo string) error
	VerifyRecovery(ctx context.Context, token string) (*Session, error)
}

// ServiceConfig carries token lifetimes and the site URL for mail links.
type ServiceConfig struct {
	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RecoveryTTL time.Duration

	// SiteURL is the default origin for recovery links.
	SiteURL string

	// RedirectOrigins are extra origins a client may name in redirect_to.
	RedirectOrigins []string
}

type authService struct {
	repo    UserRepository
	access  accessTokens
	tokens  tokenStore
	mailer  RecoveryMailer
	metrics metrics.Recorder
	cfg     ServiceConfig
	now     func() time.Time
}

// NewAuthService wires the provider. rec may be metrics.Nop{}.
func NewAuthService(repo UserRepository, rdb *redis.Client, mailer RecoveryMailer, rec metrics.Recorder, cfg ServiceConfig) AuthService {
	s := &authService{
		repo:    repo,
		mailer:  mailer,
		metrics: rec,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.access = accessTokens{secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTTL, now: s.clock}
	s.tokens = tokenStore{rdb: rdb, refreshTTL: cfg.RefreshTTL, recoveryTTL: cfg.RecoveryTTL}
	return s
}

func (s *authService) clock() time.Time { return s.now() }

// SignUp creates the identity and signs it in. Email confirmation is not
// part of this provider, so the account is usable immediately.
func (s *authService) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		s.metrics.AuthEvent("signup", false)
		return nil, apperror.NewConflict("an account with this email already exists")
	} else if !apperror.IsNotFound(err) {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		s.metrics.AuthEvent("signup", false)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))
	s.metrics.AuthEvent("signup", true)
	return s.issue(ctx, user)
}

// SignIn checks the password and starts a session. Unknown emails and bad
// passwords produce the same error.
func (s *authService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		s.metrics.AuthEvent("login", false)
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid login credentials")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	if !verifyPassword(password, user.PasswordHash) {
		s.metrics.AuthEvent("login", false)
		return nil, apperror.NewUnauthorized("invalid login credentials")
	}

	now := s.now()
	if err := s.repo.TouchLastSignIn(ctx, user.ID, now); err != nil {
		slog.Warn("failed to record sign in", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastSignIn = &now
	}

	s.metrics.AuthEvent("login", true)
	return s.issue(ctx, user)
}

// Refresh rotates the refresh token and mints a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	sessionID, rec, err := s.tokens.rotate(ctx, refreshToken)
	if errors.Is(err, errTokenNotFound) {
		s.metrics.AuthEvent("refresh", false)
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	user, err := s.repo.FindByID(ctx, rec.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			_ = s.tokens.revoke(ctx, sessionID)
			return nil, apperror.NewUnauthorized("user no longer exists")
		}
		return nil, apperror.NewInternal(err)
	}

	s.metrics.AuthEvent("refresh", true)
	return s.sessionFor(user, sessionID, rec.RefreshToken)
}

// SignOut revokes the caller's session. Outstanding access tokens for it
// stop working immediately because Authenticate checks the session.
func (s *authService) SignOut(ctx context.Context, id Identity) error {
	if err := s.tokens.revoke(ctx, id.SessionID); err != nil {
		return apperror.NewInternal(err)
	}
	s.metrics.AuthEvent("logout", true)
	return nil
}

// Authenticate validates an access token and its backing session.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.access.parse(accessToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}
	ok, err := s.tokens.sessionExists(ctx, claims.SessionID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if !ok {
		return nil, apperror.NewUnauthorized("session has been revoked")
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, SessionID: claims.SessionID}, nil
}

// GetUser returns the caller's identity record.
func (s *authService) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.NewInternal(err)
	}
	return user, nil
}

// UpdateUser changes the password and/or merges keys into the metadata.
// A null value in Data removes that key.
func (s *authService) UpdateUser(ctx context.Context, userID string, input UpdateUserInput) (*User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Password != nil {
		hash, err := hashPassword(*input.Password)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
		}
		if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
			return nil, apperror.NewInternal(err)
		}
		slog.Info("password updated", slog.String("user_id", userID))
	}

	if input.Data != nil {
		if user.Metadata == nil {
			user.Metadata = map[string]any{}
		}
		for k, v := range input.Data {
			if v == nil {
				delete(user.Metadata, k)
				continue
			}
			user.Metadata[k] = v
		}
		if err := s.repo.UpdateMetadata(ctx, userID, user.Metadata); err != nil {
			return nil, apperror.NewInternal(err)
		}
	}

	user.UpdatedAt = s.now()
	return user, nil
}

// Recover mails a recovery link if the address is registered. It reports
// success either way so the endpoint cannot be used to probe for accounts.
func (s *authService) Recover(ctx context.Context, email, redirectTo string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if apperror.IsNotFound(err) {
		s.metrics.AuthEvent("recover", true)
		return nil
	}
	if err != nil {
		return apperror.NewInternal(err)
	}

	token, err := s.tokens.createRecovery(ctx, user.ID)
	if err != nil {
		return apperror.NewInternal(err)
	}

	link := s.recoveryLink(redirectTo, token)
	if err := s.mailer.SendRecoveryLink(ctx, user.Email, link); err != nil {
		s.metrics.AuthEvent("recover", false)
		return apperror.NewInternal(fmt.Errorf("sending recovery mail: %w", err))
	}
	s.metrics.AuthEvent("recover", true)
	return nil
}

// VerifyRecovery exchanges a recovery token for a session.
func (s *authService) VerifyRecovery(ctx context.Context, token string) (*Session, error) {
	userID, err := s.tokens.consumeRecovery(ctx, token)
	if errors.Is(err, errTokenNotFound) {
		s.metrics.AuthEvent("verify", false)
		return nil, apperror.NewUnauthorized("recovery link is invalid or has expired")
	}
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthEvent("verify", true)
	return s.issue(ctx, user)
}

// recoveryLink appends the token to redirectTo when its origin is allowed,
// otherwise to the site's reset page.
func (s *authService) recoveryLink(redirectTo, token string) string {
	target := strings.TrimRight(s.cfg.SiteURL, "/") + resetPasswordPath
	if redirectTo != "" && s.allowedRedirect(redirectTo) {
		target = redirectTo
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("type", "recovery")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *authService) allowedRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	origin := u.Scheme + "://" + u.Host
	if strings.EqualFold(origin, strings.TrimRight(s.cfg.SiteURL, "/")) {
		return true
	}
	for _, o := range s.cfg.RedirectOrigins {
		if strings.EqualFold(origin, strings.TrimRight(o, "/")) {
			return true
		}
	}
	return false
}

// issue starts a new session for user.
func (s *authService) issue(ctx context.Context, user *User) (*Session, error) {
	sessionID := uuid.NewString()
	refresh, err := s.tokens.createSession(ctx, sessionID, user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return s.sessionFor(user, sessionID, refresh)
}

func (s *authService) sessionFor(user *User, sessionID, refresh string) (*Session, error) {
	access, exp, err := s.access.sign(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         user.ToResponse(),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Password hashing (argon2id, PHC string format) ---

// hashPassword returns $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyPassword recomputes the hash with the parameters embedded in
// encoded and compares in constant time.
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1
}
