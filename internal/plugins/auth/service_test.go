package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/scribe/internal/apperror"
	"github.com/keyxmakerx/scribe/internal/metrics"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository with overridable functions. The
// defaults behave like an empty table.
type mockUserRepo struct {
	createFn          func(ctx context.Context, user *User) error
	findByIDFn        func(ctx context.Context, id string) (*User, error)
	findByEmailFn     func(ctx context.Context, email string) (*User, error)
	updatePasswordFn  func(ctx context.Context, id, hash string) error
	updateMetadataFn  func(ctx context.Context, id string, meta map[string]any) error
	touchLastSignInFn func(ctx context.Context, id string, at time.Time) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, hash)
	}
	return nil
}

func (m *mockUserRepo) UpdateMetadata(ctx context.Context, id string, meta map[string]any) error {
	if m.updateMetadataFn != nil {
		return m.updateMetadataFn(ctx, id, meta)
	}
	return nil
}

func (m *mockUserRepo) TouchLastSignIn(ctx context.Context, id string, at time.Time) error {
	if m.touchLastSignInFn != nil {
		return m.touchLastSignInFn(ctx, id, at)
	}
	return nil
}

// memoryRepo wires a mockUserRepo to a map so flows that create and then
// read users behave like the real table.
func memoryRepo() *mockUserRepo {
	var mu sync.Mutex
	byID := map[string]*User{}
	find := func(match func(*User) bool) (*User, error) {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range byID {
			if match(u) {
				cp := *u
				return &cp, nil
			}
		}
		return nil, apperror.NewNotFound("user not found")
	}
	return &mockUserRepo{
		createFn: func(_ context.Context, u *User) error {
			mu.Lock()
			defer mu.Unlock()
			cp := *u
			byID[u.ID] = &cp
			return nil
		},
		findByIDFn: func(_ context.Context, id string) (*User, error) {
			return find(func(u *User) bool { return u.ID == id })
		},
		findByEmailFn: func(_ context.Context, email string) (*User, error) {
			return find(func(u *User) bool { return u.Email == email })
		},
		updatePasswordFn: func(_ context.Context, id, hash string) error {
			mu.Lock()
			defer mu.Unlock()
			byID[id].PasswordHash = hash
			return nil
		},
		updateMetadataFn: func(_ context.Context, id string, meta map[string]any) error {
			mu.Lock()
			defer mu.Unlock()
			byID[id].Metadata = meta
			return nil
		},
	}
}

// --- Mock Mailer ---

type mockMailer struct {
	sendFn func(ctx context.Context, to, link string) error
	calls  int
	to     string
	link   string
}

func (m *mockMailer) SendRecoveryLink(ctx context.Context, to, link string) error {
	m.calls++
	m.to, m.link = to, link
	if m.sendFn != nil {
		return m.sendFn(ctx, to, link)
	}
	return nil
}

// --- Helpers ---

func newTestService(t *testing.T, repo UserRepository) (*authService, *mockMailer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mailer := &mockMailer{}
	svc := NewAuthService(repo, rdb, mailer, metrics.Nop{}, ServiceConfig{
		JWTSecret:       "test-secret-test-secret-test-secret",
		AccessTTL:       time.Hour,
		RefreshTTL:      24 * time.Hour,
		RecoveryTTL:     time.Hour,
		SiteURL:         "https://blog.example",
		RedirectOrigins: []string{"http://localhost:3000"},
	}).(*authService)
	return svc, mailer, mr
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (%s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// --- Tests ---

func TestSignUp_IssuesSession(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "  Alice@Example.com ", "Abcdef1!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", sess.User.Email)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if sess.TokenType != "bearer" || sess.ExpiresIn != 3600 {
		t.Errorf("unexpected token metadata: %s %d", sess.TokenType, sess.ExpiresIn)
	}

	id, err := svc.Authenticate(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("access token should authenticate: %v", err)
	}
	if id.UserID != sess.User.ID {
		t.Errorf("identity user %q, want %q", id.UserID, sess.User.ID)
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "bob@example.com", "Abcdef1!"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := svc.SignUp(ctx, "BOB@example.com", "Abcdef1!")
	assertAppError(t, err, http.StatusConflict)
}

func TestSignIn_BadCredentialsShareMessage(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, "carol@example.com", "Abcdef1!"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, wrongPass := svc.SignIn(ctx, "carol@example.com", "nope-nope")
	_, unknown := svc.SignIn(ctx, "nobody@example.com", "Abcdef1!")

	assertAppError(t, wrongPass, http.StatusUnauthorized)
	assertAppError(t, unknown, http.StatusUnauthorized)
	if apperror.SafeMessage(wrongPass) != apperror.SafeMessage(unknown) {
		t.Error("wrong password and unknown email must be indistinguishable")
	}

	if _, err := svc.SignIn(ctx, "Carol@Example.com", "Abcdef1!"); err != nil {
		t.Errorf("valid sign in failed: %v", err)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "dan@example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	next, err := svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Error("expected a new refresh token")
	}

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assertAppError(t, err, http.StatusUnauthorized)

	if _, err := svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Errorf("rotated token should work once: %v", err)
	}
}

func TestSignOut_RevokesAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "erin@example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	id, err := svc.Authenticate(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if err := svc.SignOut(ctx, *id); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	_, err = svc.Authenticate(ctx, sess.AccessToken)
	assertAppError(t, err, http.StatusUnauthorized)

	_, err = svc.Refresh(ctx, sess.RefreshToken)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_RejectsExpiredAndForgedTokens(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "fay@example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err = svc.Authenticate(ctx, sess.AccessToken+"x")
	assertAppError(t, err, http.StatusUnauthorized)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, sess.AccessToken)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestRecover_UnknownEmailIsSilent(t *testing.T) {
	svc, mailer, _ := newTestService(t, memoryRepo())

	if err := svc.Recover(context.Background(), "ghost@example.com", ""); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if mailer.calls != 0 {
		t.Error("no mail should be sent for unknown addresses")
	}
}

func TestRecover_ThenVerifyOnce(t *testing.T) {
	svc, mailer, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "gus@example.com", "Abcdef1!"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.Recover(ctx, "gus@example.com", "http://localhost:3000/auth/reset-password"); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if mailer.to != "gus@example.com" {
		t.Errorf("mail sent to %q", mailer.to)
	}
	if !strings.HasPrefix(mailer.link, "http://localhost:3000/auth/reset-password?") {
		t.Errorf("unexpected link %q", mailer.link)
	}

	link, _ := url.Parse(mailer.link)
	token := link.Query().Get("token")

	sess, err := svc.VerifyRecovery(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.User.Email != "gus@example.com" {
		t.Errorf("session for %q", sess.User.Email)
	}

	_, err = svc.VerifyRecovery(ctx, token)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestRecoveryLink_ForeignRedirectFallsBackToSite(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())

	link := svc.recoveryLink("https://evil.example/steal", "tok")
	if !strings.HasPrefix(link, "https://blog.example/auth/reset-password?") {
		t.Errorf("expected site reset page, got %q", link)
	}
	if !strings.Contains(link, "token=tok") || !strings.Contains(link, "type=recovery") {
		t.Errorf("expected token and type params, got %q", link)
	}
}

func TestRecover_MailFailureIsInternal(t *testing.T) {
	svc, mailer, _ := newTestService(t, memoryRepo())
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, "hal@example.com", "Abcdef1!"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	mailer.sendFn = func(context.Context, string, string) error { return errors.New("smtp down") }

	err := svc.Recover(ctx, "hal@example.com", "")
	assertAppError(t, err, http.StatusInternalServerError)
}

func TestUpdateUser_PasswordAndMetadata(t *testing.T) {
	svc, _, _ := newTestService(t, memoryRepo())
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, "ivy@example.com", "Abcdef1!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	newPass := "Zyxwvu9?"
	user, err := svc.UpdateUser(ctx, sess.User.ID, UpdateUserInput{
		Password: &newPass,
		Data:     map[string]any{"username": "ivy", "avatar_url": "https://x/a.png"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if user.Metadata["username"] != "ivy" {
		t.Errorf("metadata = %v", user.Metadata)
	}

	user, err = svc.UpdateUser(ctx, sess.User.ID, UpdateUserInput{Data: map[string]any{"avatar_url": nil}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := user.Metadata["avatar_url"]; ok {
		t.Error("expected null to remove avatar_url")
	}

	if _, err := svc.SignIn(ctx, "ivy@example.com", "Abcdef1!"); err == nil {
		t.Error("old password should no longer work")
	}
	if _, err := svc.SignIn(ctx, "ivy@example.com", newPass); err != nil {
		t.Errorf("new password should work: %v", err)
	}
}

func TestPasswordHash_RoundTrip(t *testing.T) {
	hash, err := hashPassword("Abcdef1!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("unexpected hash format %q", hash)
	}
	if !verifyPassword("Abcdef1!", hash) {
		t.Error("expected password to verify")
	}
	if verifyPassword("abcdef1!", hash) {
		t.Error("expected different password to fail")
	}
	if verifyPassword("Abcdef1!", "$bcrypt$garbage") {
		t.Error("expected malformed hash to fail")
	}
}
