// Package session establishes and stores the bearer token that gates every
// authenticated call to the remote API.
//
// A session is bootstrapped once per dashboard mount: a token carried on the
// navigation URL is persisted and stripped, otherwise a previously persisted
// token is used, otherwise the visitor is sent back to the entry route.
package session

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// TokenParam is the query parameter that carries a freshly issued token.
const TokenParam = "token"

// Store is durable client storage.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// State is the outcome of a bootstrap.
type State int

const (
	// Unauthenticated means no token was found; the caller must redirect to the entry route.
	Unauthenticated State = iota
	// Established means a token arrived on the URL and was persisted.
	Established
	// Restored means a previously persisted token was found.
	Restored
)

func (s State) String() string {
	switch s {
	case Established:
		return "established"
	case Restored:
		return "restored"
	default:
		return "unauthenticated"
	}
}

// Authenticated reports whether the rest of the view may proceed.
func (s State) Authenticated() bool {
	return s == Established || s == Restored
}

// Result describes what the view should do after bootstrapping.
type Result struct {
	State State
	Token string
	// CleanURL is the navigation URL with the token parameter removed. It is
	// meant to replace the current history entry, never to be pushed.
	CleanURL string
	// RedirectTo is set when the visitor must leave the view.
	RedirectTo string
}

// Bootstrap inspects rawURL for a token, persisting it when present.
//
// It never validates the token and never calls the network.
func Bootstrap(store Store, rawURL, entryRoute string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad navigation url: %v", shared.ErrInvalidInput, err)
	}

	q := u.Query()
	if token := q.Get(TokenParam); token != "" {
		if err := store.Set(TokenKey, token); err != nil {
			return Result{}, fmt.Errorf("failed to persist session token: %w", err)
		}

		q.Del(TokenParam)
		u.RawQuery = q.Encode()
		return Result{State: Established, Token: token, CleanURL: u.String()}, nil
	}

	token, err := LoadToken(store)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return Result{State: Unauthenticated, CleanURL: u.String(), RedirectTo: entryRoute}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{State: Restored, Token: token, CleanURL: u.String()}, nil
}

// Bootstrapper runs [Bootstrap] at most once for the lifetime of a view.
type Bootstrapper struct {
	store      Store
	entryRoute string
	logger     *log.Logger

	once   sync.Once
	result Result
	err    error
}

// NewBootstrapper creates a [Bootstrapper] redirecting unauthenticated visitors to entryRoute.
func NewBootstrapper(store Store, entryRoute string, logger *log.Logger) *Bootstrapper {
	if entryRoute == "" {
		entryRoute = "/"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bootstrapper{store: store, entryRoute: entryRoute, logger: logger}
}

// Run bootstraps from rawURL on the first call. Later calls return the first result unchanged.
func (b *Bootstrapper) Run(rawURL string) (Result, error) {
	b.once.Do(func() {
		b.result, b.err = Bootstrap(b.store, rawURL, b.entryRoute)
		if b.err != nil {
			b.logger.Error("session bootstrap failed", "error", b.err)
			return
		}
		b.logger.Debug("session bootstrapped", "state", b.result.State)
	})
	return b.result, b.err
}
