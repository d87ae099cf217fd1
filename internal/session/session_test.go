package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	writes int
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", shared.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type failingStore struct{ memStore }

func (f *failingStore) Set(string, string) error { return errors.New("disk full") }

func TestBootstrap(t *testing.T) {
	t.Run("token on url is persisted and stripped", func(t *testing.T) {
		store := newMemStore()

		res, err := Bootstrap(store, "/dashboard?token=T", "/")
		require.NoError(t, err)

		assert.Equal(t, Established, res.State)
		assert.Equal(t, "T", res.Token)
		assert.Equal(t, "T", store.values[TokenKey])
		assert.Equal(t, "/dashboard", res.CleanURL)
		assert.Empty(t, res.RedirectTo)

		u, err := url.Parse(res.CleanURL)
		require.NoError(t, err)
		assert.False(t, u.Query().Has(TokenParam))
	})

	t.Run("other query parameters survive", func(t *testing.T) {
		store := newMemStore()

		res, err := Bootstrap(store, "http://127.0.0.1:3000/dashboard?tab=live&token=abc.def.ghi", "/")
		require.NoError(t, err)

		u, err := url.Parse(res.CleanURL)
		require.NoError(t, err)
		assert.Equal(t, "live", u.Query().Get("tab"))
		assert.False(t, u.Query().Has(TokenParam))
		assert.Equal(t, "/dashboard", u.Path)
	})

	t.Run("url token replaces a stored token", func(t *testing.T) {
		store := newMemStore()
		store.values[TokenKey] = "old"

		res, err := Bootstrap(store, "/dashboard?token=new", "/")
		require.NoError(t, err)
		assert.Equal(t, "new", res.Token)
		assert.Equal(t, "new", store.values[TokenKey])
	})

	t.Run("stored token restores the session", func(t *testing.T) {
		store := newMemStore()
		store.values[TokenKey] = "persisted"

		res, err := Bootstrap(store, "/dashboard", "/")
		require.NoError(t, err)
		assert.Equal(t, Restored, res.State)
		assert.Equal(t, "persisted", res.Token)
		assert.True(t, res.State.Authenticated())
		assert.Equal(t, 0, store.writes)
	})

	t.Run("no token redirects to the entry route", func(t *testing.T) {
		store := newMemStore()

		res, err := Bootstrap(store, "/dashboard", "/welcome")
		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, res.State)
		assert.Equal(t, "/welcome", res.RedirectTo)
		assert.False(t, res.State.Authenticated())
	})

	t.Run("empty token parameter is ignored", func(t *testing.T) {
		store := newMemStore()

		res, err := Bootstrap(store, "/dashboard?token=", "/")
		require.NoError(t, err)
		assert.Equal(t, Unauthenticated, res.State)
		assert.Equal(t, 0, store.writes)
	})

	t.Run("persist failure is reported", func(t *testing.T) {
		store := &failingStore{memStore: memStore{values: map[string]string{}}}

		_, err := Bootstrap(store, "/dashboard?token=T", "/")
		assert.Error(t, err)
	})

	t.Run("unparseable url", func(t *testing.T) {
		_, err := Bootstrap(newMemStore(), "http://[::1", "/")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestBootstrapper(t *testing.T) {
	store := newMemStore()
	b := NewBootstrapper(store, "", nil)

	first, err := b.Run("/dashboard?token=one")
	require.NoError(t, err)

	second, err := b.Run("/dashboard?token=two")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "one", store.values[TokenKey])
	assert.Equal(t, 1, store.writes)
}

func TestTokenSource(t *testing.T) {
	t.Run("no stored token makes no request", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer srv.Close()

		res, err := Bootstrap(newMemStore(), "/dashboard", "/")
		require.NoError(t, err)
		require.Equal(t, Unauthenticated, res.State)

		client := &http.Client{Transport: &oauth2.Transport{Source: NewTokenSource(newMemStore())}}
		_, err = client.Get(srv.URL + "/api/emotion/test-auth")

		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.Zero(t, hits.Load())
	})

	t.Run("stored token is sent as bearer", func(t *testing.T) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
		}))
		defer srv.Close()

		store := newMemStore()
		require.NoError(t, SaveToken(store, "T"))

		client := &http.Client{Transport: &oauth2.Transport{Source: NewTokenSource(store)}}
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Bearer T", auth)
	})
}

func TestSignOut(t *testing.T) {
	store := newMemStore()
	require.NoError(t, SaveToken(store, "T"))
	require.NoError(t, SaveSpotifyTokens(store, "a", "r"))

	require.NoError(t, SignOut(store))

	_, err := LoadToken(store)
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	_, err = LoadSpotifyToken(store)
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestSpotifyTokens(t *testing.T) {
	t.Run("access and refresh", func(t *testing.T) {
		store := newMemStore()
		require.NoError(t, SaveSpotifyTokens(store, "access", "refresh"))

		tok, err := LoadSpotifyToken(store)
		require.NoError(t, err)
		assert.Equal(t, "access", tok.AccessToken)
		assert.Equal(t, "refresh", tok.RefreshToken)
	})

	t.Run("reconnect without refresh token drops the old one", func(t *testing.T) {
		store := newMemStore()
		require.NoError(t, SaveSpotifyTokens(store, "access", "refresh"))
		require.NoError(t, SaveSpotifyTokens(store, "access-2", ""))

		tok, err := LoadSpotifyToken(store)
		require.NoError(t, err)
		assert.Equal(t, "access-2", tok.AccessToken)
		assert.Empty(t, tok.RefreshToken)

		_, err = store.Get(SpotifyRefreshTokenKey)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing access token", func(t *testing.T) {
		err := SaveSpotifyTokens(newMemStore(), "", "refresh")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}

func TestInspect(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)
		return s
	}

	t.Run("valid claims", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"sub": "spotify-user",
			"iat": now.Add(-time.Hour).Unix(),
			"exp": now.Add(time.Hour).Unix(),
		})

		claims, err := Inspect(token, now)
		require.NoError(t, err)
		assert.Equal(t, "spotify-user", claims.Subject)
		assert.True(t, now.Add(time.Hour).Equal(claims.ExpiresAt))
		assert.False(t, claims.Expired)
	})

	t.Run("expired token is reported not rejected", func(t *testing.T) {
		token := sign(jwt.MapClaims{"sub": "u", "exp": now.Add(-time.Minute).Unix()})

		claims, err := Inspect(token, now)
		require.NoError(t, err)
		assert.True(t, claims.Expired)
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := Inspect("not-a-jwt", now)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
