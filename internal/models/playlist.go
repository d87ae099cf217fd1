package models

import (
	"errors"
	"fmt"
)

// MoodAnalysis is the aggregated mood summary returned by the remote API.
//
// When a request carried an explicit mood, the API answers with only the
// dominant mood and Override set.
type MoodAnalysis struct {
	DominantMood     string         `json:"dominant_mood"`
	MoodDistribution map[string]int `json:"mood_distribution,omitempty"`
	TotalMoods       int            `json:"total_moods"`
	AvgConfidence    float64        `json:"avg_confidence"`
	DaysAnalyzed     int            `json:"days_analyzed"`
	Override         bool           `json:"override,omitempty"`
}

func (m *MoodAnalysis) Validate() error {
	if m == nil {
		return errors.New("mood analysis is missing")
	}
	if m.DominantMood == "" {
		return errors.New("dominant_mood is required")
	}
	if m.Override {
		return nil
	}
	if m.MoodDistribution == nil {
		return errors.New("mood_distribution is required")
	}
	if m.TotalMoods < 0 || m.DaysAnalyzed < 0 {
		return fmt.Errorf("negative counts in mood analysis (total=%d, days=%d)", m.TotalMoods, m.DaysAnalyzed)
	}
	return nil
}

// Track is a recommended track.
type Track struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"preview_url"`
	URI        string `json:"uri"`
	Image      string `json:"image"`
}

func (t Track) Validate() error {
	if t.Name == "" {
		return errors.New("track name is required")
	}
	if t.URI == "" {
		return fmt.Errorf("track %q has no uri", t.Name)
	}
	return nil
}

// Recommendations is the preview response.
type Recommendations struct {
	Recommendations []Track        `json:"recommendations"`
	MoodAnalysis    *MoodAnalysis  `json:"mood_analysis"`
	DominantMood    string         `json:"dominant_mood"`
	MoodParams      map[string]any `json:"mood_params,omitempty"`
}

func (r *Recommendations) Validate() error {
	if r.Recommendations == nil {
		return errors.New("recommendations is required")
	}
	for i, t := range r.Recommendations {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("recommendations[%d]: %w", i, err)
		}
	}
	if r.MoodAnalysis != nil {
		if err := r.MoodAnalysis.Validate(); err != nil {
			return fmt.Errorf("mood_analysis: %w", err)
		}
	}
	return nil
}

// PlaylistDescriptor describes a playlist created on the user's Spotify account.
type PlaylistDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	TracksAdded int    `json:"tracks_added"`
}

// GenerationResult is the generate response.
type GenerationResult struct {
	Success      bool               `json:"success"`
	Playlist     PlaylistDescriptor `json:"playlist"`
	MoodAnalysis *MoodAnalysis      `json:"mood_analysis"`
	DominantMood string             `json:"dominant_mood"`
}

func (g *GenerationResult) Validate() error {
	if g.Playlist.ID == "" {
		return errors.New("playlist.id is required")
	}
	if g.Playlist.URL == "" {
		return errors.New("playlist.url is required")
	}
	if g.Playlist.TracksAdded < 0 {
		return fmt.Errorf("playlist.tracks_added %d is negative", g.Playlist.TracksAdded)
	}
	if g.MoodAnalysis != nil {
		if err := g.MoodAnalysis.Validate(); err != nil {
			return fmt.Errorf("mood_analysis: %w", err)
		}
	}
	return nil
}

// TextEmotion is the response of text based emotion analysis.
type TextEmotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (t *TextEmotion) Validate() error {
	if t.Label == "" {
		return errors.New("label is required")
	}
	if t.Score < 0 || t.Score > 1 {
		return fmt.Errorf("score %v outside [0,1]", t.Score)
	}
	return nil
}

// PlaylistRequest is the body shared by preview and generate.
type PlaylistRequest struct {
	Days      int    `json:"days"`
	NumTracks int    `json:"num_tracks"`
	Mood      string `json:"mood,omitempty"`
}

func (p PlaylistRequest) Validate() error {
	if p.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", p.Days)
	}
	if p.NumTracks <= 0 {
		return fmt.Errorf("num_tracks must be positive, got %d", p.NumTracks)
	}
	if p.Mood != "" && !IsMood(p.Mood) {
		return fmt.Errorf("unknown mood %q", p.Mood)
	}
	return nil
}
