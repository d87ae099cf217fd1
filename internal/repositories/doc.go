// Package repositories implements the local SQLite store of the moodbeats client.
//
// Key Implementations:
//   - [KVStore] : durable client storage for the session token and Spotify tokens
//   - [JournalRepository] : append-only record of emotion upload attempts
//
// Journal entries carry a sequence number for stable, human-readable ordering independent of UUIDs.
// [nextSequence] increments the per-table counter inside the caller's transaction.
package repositories
