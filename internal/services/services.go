package services

import (
	"context"

	"github.com/desertthunder/moodbeats/internal/models"
)

// MoodAPI is the set of remote operations the client performs.
type MoodAPI interface {
	StoreEmotion(ctx context.Context, rec models.SyncRecord) error
	AnalyzeText(ctx context.Context, text string) (*models.TextEmotion, error)
	AnalyzeMoods(ctx context.Context, days int) (*models.MoodAnalysis, error)
	PreviewRecommendations(ctx context.Context, req models.PlaylistRequest) (*models.Recommendations, error)
	GeneratePlaylist(ctx context.Context, req models.PlaylistRequest) (*models.GenerationResult, error)
	TestAuth(ctx context.Context) (*models.AuthCheck, error)
	Me(ctx context.Context) (*models.User, error)
	DashboardSummary(ctx context.Context) (*models.DashboardSummary, error)
	MoodTimeline(ctx context.Context) ([]models.MoodPoint, error)
	SpotifyLoginURL() string
	Get(ctx context.Context, path string) (*APIResponse, error)
	Post(ctx context.Context, path string, data []byte) (*APIResponse, error)
}

var _ MoodAPI = (*Client)(nil)
