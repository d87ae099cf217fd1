package server

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/session"
	"github.com/desertthunder/moodbeats/internal/shared"
	tu "github.com/desertthunder/moodbeats/internal/testing"
)

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("root matches only itself", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("request id is generated and echoed", func(t *testing.T) {
		h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a request id")
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "abc" {
			t.Errorf("expected incoming id to be kept, got %q", got)
		}
	})

	t.Run("logger never writes the query string", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		logger.SetLevel(log.DebugLevel)

		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard?token=SECRET", nil))

		out := buf.String()
		if strings.Contains(out, "SECRET") {
			t.Errorf("token leaked into log: %s", out)
		}
		if !strings.Contains(out, "418") {
			t.Errorf("expected status in log: %s", out)
		}
	})
}

func newTokenRouter(store session.Store) (*BasicRouter, *TokenHandler) {
	h := NewTokenHandler("/dashboard", session.NewBootstrapper(store, "/", nil), nil)
	router := NewBasicRouter()
	router.Handler(h)
	return router, h
}

func TestTokenHandler(t *testing.T) {
	t.Run("token on url is stored and stripped", func(t *testing.T) {
		store := tu.NewMemStore()
		router, h := newTokenRouter(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?token=T", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/dashboard" {
			t.Errorf("expected redirect to /dashboard, got %q", loc)
		}
		if got, _ := store.Get(session.TokenKey); got != "T" {
			t.Errorf("expected stored token T, got %q", got)
		}

		res := <-h.Result()
		if res.Err != nil || res.Session.State != session.Established {
			t.Errorf("unexpected result %+v", res)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected clean url to render, got %d", rec.Code)
		}
		if _, ok := <-h.Result(); ok {
			t.Error("expected result channel to be closed after one result")
		}
	})

	t.Run("other params survive", func(t *testing.T) {
		router, _ := newTokenRouter(tu.NewMemStore())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?tab=moods&token=T", nil))
		if loc := rec.Header().Get("Location"); loc != "/dashboard?tab=moods" {
			t.Errorf("unexpected redirect %q", loc)
		}
	})

	t.Run("no token redirects to entry route", func(t *testing.T) {
		store := tu.NewMemStore()
		router, h := newTokenRouter(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
		if res := <-h.Result(); res.Session.State.Authenticated() {
			t.Errorf("expected unauthenticated, got %v", res.Session.State)
		}
	})

	t.Run("stored token is restored", func(t *testing.T) {
		router, h := newTokenRouter(tu.NewMemStore(session.TokenKey, "OLD"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		res := <-h.Result()
		if res.Session.State != session.Restored || res.Session.Token != "OLD" {
			t.Errorf("unexpected result %+v", res.Session)
		}
	})
}

type failingStore struct{ *tu.MemStore }

func (failingStore) Set(string, string) error { return errors.New("disk full") }

func TestTokenHandlerStoreFailure(t *testing.T) {
	router, h := newTokenRouter(failingStore{tu.NewMemStore()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?token=T", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if res := <-h.Result(); res.Err == nil {
		t.Error("expected bootstrap error")
	}
}

func TestSpotifyHandler(t *testing.T) {
	t.Run("stores tokens and redirects home", func(t *testing.T) {
		store := tu.NewMemStore()
		h := NewSpotifyHandler("/success", "/", store, nil)
		router := NewBasicRouter()
		router.Handler(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/success?access_token=A&refresh_token=R&expires_in=3600", nil))

		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Errorf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
		}
		if got, _ := store.Get(session.SpotifyAccessTokenKey); got != "A" {
			t.Errorf("expected access token A, got %q", got)
		}
		if got, _ := store.Get(session.SpotifyRefreshTokenKey); got != "R" {
			t.Errorf("expected refresh token R, got %q", got)
		}

		res := <-h.Result()
		if res.Err != nil || res.Token.AccessToken != "A" || res.Token.Expiry.IsZero() {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("missing access token", func(t *testing.T) {
		h := NewSpotifyHandler("/success", "/", tu.NewMemStore(), nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/success", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); !errors.Is(res.Err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", res.Err)
		}
	})

	t.Run("error param", func(t *testing.T) {
		h := NewSpotifyHandler("/success", "/", tu.NewMemStore(), nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/success?error=access_denied", nil))

		if res := <-h.Result(); !errors.Is(res.Err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", res.Err)
		}
	})
}

func TestEntryHandler(t *testing.T) {
	for _, tc := range []struct {
		name  string
		store *tu.MemStore
		want  string
	}{
		{"signed out", tu.NewMemStore(), "not signed in"},
		{"signed in", tu.NewMemStore(session.TokenKey, "T"), "You are signed in"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewEntryHandler("/", tc.store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Errorf("expected body to contain %q", tc.want)
			}
		})
	}
}
