package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Keys in the client store.
const (
	TokenKey               = "token"
	SpotifyAccessTokenKey  = "spotify_access_token"
	SpotifyRefreshTokenKey = "spotify_refresh_token"
)

// LoadToken returns the persisted session token or [shared.ErrNotAuthenticated].
func LoadToken(store Store) (string, error) {
	token, err := store.Get(TokenKey)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && token == "") {
		return "", shared.ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return token, nil
}

// SaveToken persists token as the session token.
func SaveToken(store Store, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", shared.ErrMissingArgument)
	}
	return store.Set(TokenKey, token)
}

// SignOut deletes the session token and any Spotify tokens.
func SignOut(store Store) error {
	for _, key := range []string{TokenKey, SpotifyAccessTokenKey, SpotifyRefreshTokenKey} {
		if err := store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// TokenSource is an [oauth2.TokenSource] over the persisted session token.
//
// It fails with [shared.ErrNotAuthenticated] before any request leaves the
// process when no token is stored.
type TokenSource struct {
	store Store
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

func NewTokenSource(store Store) *TokenSource {
	return &TokenSource{store: store}
}

func (s *TokenSource) Token() (*oauth2.Token, error) {
	token, err := LoadToken(s.store)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// NoToken is the token source of a client without a local store. Every
// authenticated request fails with [shared.ErrNotAuthenticated] before it is sent.
var NoToken oauth2.TokenSource = noToken{}

type noToken struct{}

func (noToken) Token() (*oauth2.Token, error) {
	return nil, fmt.Errorf("%w: no local store", shared.ErrNotAuthenticated)
}

// Claims is what the client can read from a session token without verifying it.
type Claims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat,omitzero"`
	ExpiresAt time.Time `json:"exp,omitzero"`
	Expired   bool      `json:"expired"`
}

// Inspect decodes token claims for display only. The signature is not checked
// and an expired token is reported, not rejected.
func Inspect(token string, now time.Time) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: token is not a JWT: %v", shared.ErrInvalidInput, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", shared.ErrInvalidInput)
	}

	claims := &Claims{}
	switch sub := mc["sub"].(type) {
	case string:
		claims.Subject = sub
	case float64:
		claims.Subject = strconv.FormatFloat(sub, 'f', -1, 64)
	}

	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time.UTC()
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time.UTC()
		claims.Expired = !now.Before(exp.Time)
	}
	return claims, nil
}

// SaveSpotifyTokens persists the Spotify tokens delivered on the OAuth success
// route. A redirect without a refresh token drops the stored one.
func SaveSpotifyTokens(store Store, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("%w: access_token", shared.ErrMissingArgument)
	}
	if err := store.Set(SpotifyAccessTokenKey, access); err != nil {
		return err
	}
	if refresh == "" {
		return store.Delete(SpotifyRefreshTokenKey)
	}
	return store.Set(SpotifyRefreshTokenKey, refresh)
}

// LoadSpotifyToken returns the persisted Spotify tokens as an [oauth2.Token].
func LoadSpotifyToken(store Store) (*oauth2.Token, error) {
	access, err := store.Get(SpotifyAccessTokenKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: spotify not connected", shared.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if refresh, err := store.Get(SpotifyRefreshTokenKey); err == nil {
		tok.RefreshToken = refresh
	}
	return tok, nil
}
