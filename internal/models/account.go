package models

import (
	"errors"
	"fmt"
)

// User is the profile returned by /api/me.
type User struct {
	SpotifyID   string `json:"spotify_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (u *User) Validate() error {
	if u.SpotifyID == "" {
		return errors.New("spotify_id is required")
	}
	return nil
}

// AuthCheck is the body of the token echo endpoint.
type AuthCheck struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

func (a *AuthCheck) Validate() error {
	if a.User == "" {
		return errors.New("user is required")
	}
	return nil
}

// DashboardSummary is today's activity as seen by the backend.
type DashboardSummary struct {
	PlaylistsToday int     `json:"playlists_today"`
	CurrentMood    *string `json:"current_mood"`
	Confidence     float64 `json:"confidence"`
}

func (d *DashboardSummary) Validate() error {
	if d.PlaylistsToday < 0 {
		return fmt.Errorf("playlists_today %d is negative", d.PlaylistsToday)
	}
	return nil
}

// MoodPoint is one entry of the remote mood timeline.
type MoodPoint struct {
	Mood       string  `json:"mood"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

func (m MoodPoint) Validate() error {
	if m.Mood == "" {
		return errors.New("mood is required")
	}
	return nil
}
