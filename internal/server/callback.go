package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/session"
	"github.com/desertthunder/moodbeats/internal/shared"
	"golang.org/x/oauth2"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func render(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page.Execute(w, struct{ Title, Message string }{title, message})
}

// oneshot delivers a single value and then closes.
type oneshot[T any] struct {
	once sync.Once
	ch   chan T
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{ch: make(chan T, 1)}
}

func (o *oneshot[T]) send(v T) {
	o.once.Do(func() {
		o.ch <- v
		close(o.ch)
	})
}

// BootstrapResult is the outcome of the first dashboard visit.
type BootstrapResult struct {
	Session session.Result
	Err     error
}

// TokenHandler serves the dashboard route.
type TokenHandler struct {
	route        string
	bootstrapper *session.Bootstrapper
	logger       *log.Logger
	result       *oneshot[BootstrapResult]
}

// NewTokenHandler creates a [TokenHandler] on route, bootstrapping through b.
func NewTokenHandler(route string, b *session.Bootstrapper, logger *log.Logger) *TokenHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenHandler{route: route, bootstrapper: b, logger: logger, result: newOneshot[BootstrapResult]()}
}

func (h *TokenHandler) Routes() []string {
	return []string{h.route}
}

// ServeHTTP bootstraps the session from the request URL.
//
// A request that carried the token is redirected to the same URL without it,
// so the token does not stay in the address bar or history. Visitors without
// a token are redirected to the entry route.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.bootstrapper.Run(r.URL.RequestURI())
	if err != nil {
		h.result.send(BootstrapResult{Err: err})
		render(w, http.StatusInternalServerError, "Sign in failed", "The session could not be stored. Check the terminal for details.")
		return
	}
	h.result.send(BootstrapResult{Session: res})

	switch {
	case !res.State.Authenticated():
		h.logger.Info("no session token, redirecting to entry route", "to", res.RedirectTo)
		http.Redirect(w, r, res.RedirectTo, http.StatusFound)
	case r.URL.Query().Has(session.TokenParam):
		http.Redirect(w, r, res.CleanURL, http.StatusFound)
	default:
		render(w, http.StatusOK, "Signed in to MoodBeats", "You can close this window and return to the terminal.")
	}
}

// Result receives exactly one [BootstrapResult] and is then closed.
func (h *TokenHandler) Result() <-chan BootstrapResult {
	return h.result.ch
}

// SpotifyResult is the outcome of the Spotify success redirect.
type SpotifyResult struct {
	Token *oauth2.Token
	Err   error
}

// SpotifyHandler serves the route the backend redirects to after connecting Spotify.
type SpotifyHandler struct {
	route      string
	entryRoute string
	store      session.Store
	logger     *log.Logger
	result     *oneshot[SpotifyResult]
}

func NewSpotifyHandler(route, entryRoute string, store session.Store, logger *log.Logger) *SpotifyHandler {
	if entryRoute == "" {
		entryRoute = "/"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SpotifyHandler{
		route:      route,
		entryRoute: entryRoute,
		store:      store,
		logger:     logger,
		result:     newOneshot[SpotifyResult](),
	}
}

func (h *SpotifyHandler) Routes() []string {
	return []string{h.route}
}

// ServeHTTP persists access_token and refresh_token, then redirects to the entry route.
func (h *SpotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.result.send(SpotifyResult{Err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)})
		render(w, http.StatusBadRequest, "Spotify connection failed", errParam)
		return
	}

	access, refresh := q.Get("access_token"), q.Get("refresh_token")
	if err := session.SaveSpotifyTokens(h.store, access, refresh); err != nil {
		h.result.send(SpotifyResult{Err: err})
		render(w, http.StatusBadRequest, "Spotify connection failed", "The redirect did not carry an access token.")
		return
	}

	token := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if secs, err := strconv.Atoi(q.Get("expires_in")); err == nil && secs > 0 {
		token.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}

	h.logger.Info("spotify tokens stored")
	h.result.send(SpotifyResult{Token: token})
	http.Redirect(w, r, h.entryRoute, http.StatusFound)
}

// Result receives exactly one [SpotifyResult] and is then closed.
func (h *SpotifyHandler) Result() <-chan SpotifyResult {
	return h.result.ch
}

// EntryHandler serves the entry route that unauthenticated visitors land on.
type EntryHandler struct {
	route string
	store session.Store
}

func NewEntryHandler(route string, store session.Store) *EntryHandler {
	if route == "" {
		route = "/"
	}
	return &EntryHandler{route: route, store: store}
}

func (h *EntryHandler) Routes() []string {
	return []string{h.route}
}

func (h *EntryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := session.LoadToken(h.store); err == nil {
		render(w, http.StatusOK, "MoodBeats", "You are signed in. Return to the terminal to continue.")
		return
	}
	render(w, http.StatusOK, "MoodBeats", "You are not signed in. Run \"moodbeats session login\" to start.")
}
