// Package server provides the local callback server the MoodBeats backend
// redirects the browser to after login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handlers
//
// [TokenHandler] serves the dashboard route. The backend finishes its Spotify
// login by redirecting to that route with a session token in the query string;
// the handler bootstraps the session from the request URL, stores the token,
// and replaces the URL with one that no longer carries it. Visitors without a
// token are sent to the entry route.
//
// [SpotifyHandler] serves the success route, persisting the Spotify access and
// refresh tokens delivered there before returning the browser to the entry route.
//
// Both handlers publish their outcome exactly once on a result channel so the
// CLI can stop waiting and shut the server down.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
