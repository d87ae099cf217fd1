package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// API paths
const (
	PathStoreEmotion = "/api/emotion/store"
	PathAnalyzeText  = "/api/emotion/analyze-text"
	PathTestAuth     = "/api/emotion/test-auth"
	PathAnalyzeMoods = "/api/playlist/analyze-moods"
	PathPreview      = "/api/playlist/preview-recommendations"
	PathGenerate     = "/api/playlist/generate"
	PathMe           = "/api/me"
	PathDashboard    = "/api/dashboard/summary"
	PathMoodTimeline = "/api/dashboard/mood-timeline"
	PathSpotifyLogin = "/auth/spotify/login"
)

// StoreEmotion uploads one emotion sample. Any 2xx status is success; the body is ignored.
func (c *Client) StoreEmotion(ctx context.Context, rec models.SyncRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	data, err := marshal(rec)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, c.authed, http.MethodPost, PathStoreEmotion, data)
	if err != nil {
		return err
	}
	return expectOK(resp)
}

// AnalyzeText classifies the emotion of free text. The endpoint needs no session.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*models.TextEmotion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text", shared.ErrMissingArgument)
	}

	data, err := marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, c.public, http.MethodPost, PathAnalyzeText, data)
	if err != nil {
		return nil, err
	}

	var out models.TextEmotion
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeMoods aggregates the moods stored over the last days.
func (c *Client) AnalyzeMoods(ctx context.Context, days int) (*models.MoodAnalysis, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", shared.ErrInvalidArgument)
	}

	q := url.Values{"days": {strconv.Itoa(days)}}
	resp, err := c.do(ctx, c.authed, http.MethodGet, PathAnalyzeMoods+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out models.MoodAnalysis
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PreviewRecommendations returns tracks for the user's recent mood without creating a playlist.
func (c *Client) PreviewRecommendations(ctx context.Context, req models.PlaylistRequest) (*models.Recommendations, error) {
	resp, err := c.postPlaylist(ctx, PathPreview, req)
	if err != nil {
		return nil, err
	}

	var out models.Recommendations
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePlaylist creates a playlist on the user's Spotify account.
func (c *Client) GeneratePlaylist(ctx context.Context, req models.PlaylistRequest) (*models.GenerationResult, error) {
	resp, err := c.postPlaylist(ctx, PathGenerate, req)
	if err != nil {
		return nil, err
	}

	var out models.GenerationResult
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postPlaylist(ctx context.Context, path string, req models.PlaylistRequest) (*APIResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	data, err := marshal(req)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, c.authed, http.MethodPost, path, data)
}

// TestAuth echoes the identity carried by the session token.
func (c *Client) TestAuth(ctx context.Context) (*models.AuthCheck, error) {
	resp, err := c.do(ctx, c.authed, http.MethodGet, PathTestAuth, nil)
	if err != nil {
		return nil, err
	}

	var out models.AuthCheck
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the signed in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.do(ctx, c.authed, http.MethodGet, PathMe, nil)
	if err != nil {
		return nil, err
	}

	var out models.User
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardSummary returns today's activity.
func (c *Client) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	resp, err := c.do(ctx, c.authed, http.MethodGet, PathDashboard, nil)
	if err != nil {
		return nil, err
	}

	var out models.DashboardSummary
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type timeline []models.MoodPoint

func (t timeline) Validate() error {
	for i, p := range t {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("timeline[%d]: %w", i, err)
		}
	}
	return nil
}

// MoodTimeline returns the most recent moods stored remotely, newest first.
func (c *Client) MoodTimeline(ctx context.Context) ([]models.MoodPoint, error) {
	resp, err := c.do(ctx, c.authed, http.MethodGet, PathMoodTimeline, nil)
	if err != nil {
		return nil, err
	}

	var out timeline
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SpotifyLoginURL is where the browser starts the Spotify login that ends with a session token.
func (c *Client) SpotifyLoginURL() string {
	return c.baseURL + PathSpotifyLogin
}
