package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/moodbeats/internal/server"
	"github.com/desertthunder/moodbeats/internal/session"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// callbackServer is the local server the backend redirects the browser to.
type callbackServer struct {
	http    *http.Server
	token   *server.TokenHandler
	spotify *server.SpotifyHandler
	errors  chan error
}

func (r *Runner) startCallbackServer(store session.Store) *callbackServer {
	cfg := r.config.Session

	cb := &callbackServer{
		token:   server.NewTokenHandler(cfg.DashboardRoute, session.NewBootstrapper(store, cfg.EntryRoute, r.logger), r.logger),
		spotify: server.NewSpotifyHandler(cfg.SuccessRoute, cfg.EntryRoute, store, r.logger),
		errors:  make(chan error, 1),
	}

	router := server.NewBasicRouter()
	router.Use(server.RequestID(), server.RequestLogger(r.logger))
	router.Handler(server.NewEntryHandler(cfg.EntryRoute, store))
	router.Handler(cb.token)
	router.Handler(cb.spotify)

	cb.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		r.logger.Infof("starting callback server at %v", cfg.Addr())
		if err := cb.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cb.errors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)
	return cb
}

func (r *Runner) stopCallbackServer(cb *callbackServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cb.http.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}
}

// openLogin sends the user to the backend's Spotify login.
func (r *Runner) openLogin(noBrowser bool) {
	loginURL := r.api.SpotifyLoginURL()
	if noBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", loginURL)
		return
	}

	r.writePlain("→ Opening browser for Spotify login...\n")
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", loginURL)
	}
}

func (r *Runner) loginTimeout() time.Duration {
	if t := r.config.Session.LoginTimeout; t > 0 {
		return t
	}
	return defaultLoginTimeout
}

// SessionLogin signs in through the backend and waits for the dashboard redirect carrying the token.
func (r *Runner) SessionLogin(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	cb := r.startCallbackServer(store)
	defer r.stopCallbackServer(cb)

	r.openLogin(cmd.Bool("no-browser"))
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", r.loginTimeout())

	timeout := time.NewTimer(r.loginTimeout())
	defer timeout.Stop()

	var result server.BootstrapResult
	select {
	case result = <-cb.token.Result():
	case err := <-cb.errors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, r.loginTimeout())
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Err)
	}
	if !result.Session.State.Authenticated() {
		return fmt.Errorf("%w: the redirect did not carry a session token", shared.ErrAuthFailed)
	}

	r.writePlain("✓ Signed in (%v)\n", result.Session.State)
	return nil
}

// SessionStatus prints the stored token's claims.
func (r *Runner) SessionStatus(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	token, err := session.LoadToken(store)
	if err != nil {
		return err
	}

	claims, err := session.Inspect(token, time.Now())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(claims, true)
	}

	r.writePlainHeader("Session")
	r.writePlain("User:    %s\n", claims.Subject)
	if !claims.IssuedAt.IsZero() {
		r.writePlain("Issued:  %s\n", claims.IssuedAt.Local().Format(time.DateTime))
	}
	if !claims.ExpiresAt.IsZero() {
		r.writePlain("Expires: %s\n", claims.ExpiresAt.Local().Format(time.DateTime))
	}
	if claims.Expired {
		r.writePlainln("⚠ Token expired. Run 'moodbeats session login' to sign in again.")
	}
	return nil
}

// SessionVerify checks the stored token against the backend.
func (r *Runner) SessionVerify(ctx context.Context, cmd *cli.Command) error {
	check, err := r.api.TestAuth(ctx)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	r.writePlain("✓ %s\n", check.Message)

	user, err := r.api.Me(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch profile", "error", err)
		return nil
	}
	r.writePlain("User: %s (%s)\n", user.DisplayName, user.SpotifyID)

	summary, err := r.api.DashboardSummary(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch dashboard summary", "error", err)
		return nil
	}
	r.writePlain("Playlists today: %d\n", summary.PlaylistsToday)
	if summary.CurrentMood != nil {
		r.writePlain("Current mood: %s (%.0f%%)\n", *summary.CurrentMood, summary.Confidence)
	}
	return nil
}

// SessionLogout deletes the stored tokens.
func (r *Runner) SessionLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}
	if err := session.SignOut(store); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	r.writePlain("✓ Signed out\n")
	return nil
}

// SessionBootstrap runs the session bootstrap against a dashboard URL.
func (r *Runner) SessionBootstrap(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	store, err := r.requireStore()
	if err != nil {
		return err
	}

	res, err := session.Bootstrap(store, rawURL, r.config.Session.EntryRoute)
	if err != nil {
		return err
	}

	r.writePlain("State: %v\n", res.State)
	switch {
	case !res.State.Authenticated():
		r.writePlain("Redirect: %s\n", res.RedirectTo)
	default:
		r.writePlain("URL: %s\n", res.CleanURL)
	}
	return nil
}

// SpotifyConnect opens the Spotify login and waits for the backend to redirect
// back, either to the success route with Spotify tokens or to the dashboard
// with a session token.
func (r *Runner) SpotifyConnect(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	cb := r.startCallbackServer(store)
	defer r.stopCallbackServer(cb)

	r.openLogin(cmd.Bool("no-browser"))
	r.writePlain("→ Waiting for Spotify (%v timeout)...\n", r.loginTimeout())

	timeout := time.NewTimer(r.loginTimeout())
	defer timeout.Stop()

	var result server.SpotifyResult
	select {
	case result = <-cb.spotify.Result():
	case signedIn := <-cb.token.Result():
		return r.spotifySignedIn(signedIn)
	case err := <-cb.errors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, r.loginTimeout())
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Err != nil {
		return fmt.Errorf("spotify connection failed: %w", result.Err)
	}
	if result.Token == nil {
		return errors.New("no token received")
	}

	r.writePlain("✓ Spotify connected\n")
	if !result.Token.Expiry.IsZero() {
		r.writePlain("Access token expires: %s\n", result.Token.Expiry.Local().Format(time.DateTime))
	}
	return nil
}

// spotifySignedIn reports a Spotify login that ended on the dashboard route.
// The backend keeps the Spotify tokens in that case.
func (r *Runner) spotifySignedIn(result server.BootstrapResult) error {
	if result.Err != nil {
		return fmt.Errorf("spotify connection failed: %w", result.Err)
	}
	if !result.Session.State.Authenticated() {
		return fmt.Errorf("%w: the redirect did not carry a session token", shared.ErrAuthFailed)
	}

	r.writePlain("✓ Spotify connected through the backend (%v)\n", result.Session.State)
	r.writePlainln("Spotify tokens are held by the backend; none were stored locally.")
	return nil
}

// SpotifyStatus reports whether Spotify tokens are stored.
func (r *Runner) SpotifyStatus(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	token, err := session.LoadSpotifyToken(store)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		r.writePlain("✗ Spotify not connected. Run 'moodbeats spotify connect'.\n")
		return nil
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Spotify connected\n")
	r.writePlain("Access token: %s\n", mask(token.AccessToken))
	if token.RefreshToken != "" {
		r.writePlain("Refresh token: stored\n")
	}
	return nil
}

func mask(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-4:]
}
