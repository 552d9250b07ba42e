package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/platform/platformtest"
)

func newStore(t *testing.T) (*Store, *platformtest.Auth, *platformtest.Navigator) {
	t.Helper()
	auth := &platformtest.Auth{}
	nav := &platformtest.Navigator{}
	s := New(auth, nav, nil)
	t.Cleanup(s.Close)
	return s, auth, nav
}

func TestInit_RestoresProviderSession(t *testing.T) {
	s, auth, _ := newStore(t)
	want := platformtest.NewSession("u-1", "ada@example.com")
	auth.GetSessionFn = func(context.Context) (*platform.Session, error) { return want, nil }

	s.Init(context.Background())

	got := s.Current()
	require.NotNil(t, got)
	assert.Equal(t, *want, *got)
	assert.Equal(t, 1, auth.Listeners())
}

func TestInit_ProviderFailureLeavesSignedOut(t *testing.T) {
	s, auth, nav := newStore(t)
	auth.GetSessionFn = func(context.Context) (*platform.Session, error) {
		return nil, errors.New("network unreachable")
	}

	assert.NotPanics(t, func() { s.Init(context.Background()) })
	assert.Nil(t, s.Current())
	assert.Empty(t, nav.Views)
}

func TestSignedIn_ReplacesSessionAndRefreshes(t *testing.T) {
	s, auth, nav := newStore(t)
	s.Init(context.Background())

	auth.Emit(platform.SignedIn, platformtest.NewSession("u-1", "ada@example.com"))
	require.NotNil(t, s.Current())
	assert.Equal(t, "u-1", s.Current().UserID)
	assert.Equal(t, 1, nav.Refreshes)

	auth.Emit(platform.TokenRefreshed, platformtest.NewSession("u-2", "bob@example.com"))
	assert.Equal(t, "u-2", s.Current().UserID, "every event replaces the session wholesale")
	assert.Equal(t, 1, nav.Refreshes, "only SIGNED_IN and SIGNED_OUT refresh")
}

func TestSignedOut_ClearsAndRedirectsOnce(t *testing.T) {
	s, auth, nav := newStore(t)
	auth.GetSessionFn = func(context.Context) (*platform.Session, error) {
		return platformtest.NewSession("u-1", "ada@example.com"), nil
	}
	s.Init(context.Background())
	require.NotNil(t, s.Current())

	auth.Emit(platform.SignedOut, nil)

	assert.Nil(t, s.Current())
	assert.Nil(t, s.Current(), "subsequent reads stay absent")
	assert.Equal(t, []string{platform.ViewLanding}, nav.Views)
	assert.Equal(t, 1, nav.Refreshes)
}

func TestPartialSessionIsTreatedAsAbsent(t *testing.T) {
	s, auth, _ := newStore(t)
	s.Init(context.Background())

	partial := platformtest.NewSession("u-1", "ada@example.com")
	partial.RefreshToken = ""
	auth.Emit(platform.UserUpdated, partial)

	assert.Nil(t, s.Current())
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	s, auth, _ := newStore(t)
	s.Init(context.Background())
	auth.Emit(platform.SignedIn, platformtest.NewSession("u-1", "ada@example.com"))

	got := s.Current()
	got.UserID = "tampered"
	assert.Equal(t, "u-1", s.Current().UserID)
}

func TestClose_UnsubscribesExactlyOnce(t *testing.T) {
	auth := &platformtest.Auth{}
	nav := &platformtest.Navigator{}
	s := New(auth, nav, nil)
	s.Init(context.Background())
	sub := s.sub.(*platformtest.Subscription)

	s.Close()
	s.Close()

	assert.Equal(t, 1, sub.Calls)
	assert.Equal(t, 0, auth.Listeners())

	auth.Emit(platform.SignedIn, platformtest.NewSession("u-1", "ada@example.com"))
	assert.Nil(t, s.Current(), "no events after close")
}

func TestRequireSession_NavigatesToLogin(t *testing.T) {
	s, _, nav := newStore(t)
	s.Init(context.Background())

	_, err := s.RequireSession()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{platform.ViewLogin}, nav.Views)
}

func TestFromContext(t *testing.T) {
	s, auth, _ := newStore(t)
	s.Init(context.Background())
	auth.Emit(platform.SignedIn, platformtest.NewSession("u-1", "ada@example.com"))

	ctx := WithStore(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
	assert.Equal(t, "u-1", UserID(ctx))

	assert.Panics(t, func() { FromContext(context.Background()) })
}
