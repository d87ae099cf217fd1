// Package services implements the HTTP client for the remote MoodBeats API.
//
// # Client
//
// [Client] issues authenticated requests through an [oauth2.Transport] whose
// token source reads the persisted session token. Without a stored token the
// transport fails with [shared.ErrNotAuthenticated] before anything is sent.
// Text analysis is the only endpoint called without credentials.
//
// # Responses
//
// Typed methods decode JSON into the payloads in the models package and run
// their Validate method:
//   - non-2xx status : [*StatusError] wrapping [shared.ErrAPIRequest]
//   - undecodable or invalid body : [shared.ErrMalformedResponse]
//
// The raw [Client.Get] and [Client.Post] helpers return an [APIResponse] and
// back the api debugging commands.
package services
