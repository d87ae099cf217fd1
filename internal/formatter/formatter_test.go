package formatter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
	th "github.com/desertthunder/moodbeats/internal/testing"
)

func recommendations() *models.Recommendations {
	return &models.Recommendations{
		DominantMood: "happy",
		MoodAnalysis: &models.MoodAnalysis{
			DominantMood:     "happy",
			MoodDistribution: map[string]int{"happy": 4, "sad": 1},
			TotalMoods:       5,
			DaysAnalyzed:     7,
		},
		Recommendations: []models.Track{
			{Name: "Song One", Artist: "Artist One", Album: "Album One", URI: "spotify:track:1", PreviewURL: "https://p/1"},
			{Name: "Song Two", Artist: "Artist Two", URI: "spotify:track:2"},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("RecommendationsToCSV", func(t *testing.T) {
		data, err := RecommendationsToCSV(recommendations())
		if err != nil {
			t.Fatalf("RecommendationsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Name,Artist,Album,URI,Preview URL\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Song One,Artist One,Album One,spotify:track:1,https://p/1") {
			t.Errorf("CSV missing first track, got: %s", output)
		}
		if strings.Count(output, "\n") != 3 {
			t.Errorf("expected 3 lines, got: %s", output)
		}
	})

	t.Run("RecommendationsToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := RecommendationsToMarkdown(recommendations(), "")
			if err != nil {
				t.Fatalf("RecommendationsToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Happy Vibes",
				"**Mood**: happy (5 moods over 7 days)",
				"**Tracks**: 2",
				"1. Artist One - Song One (Album One) `spotify:track:1`",
				"2. Artist Two - Song Two `spotify:track:2`",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("Markdown should not contain a cover image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, _ := RecommendationsToMarkdown(recommendations(), "cover.jpg")
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Error("Markdown missing cover image")
			}
		})
	})

	t.Run("RecommendationsToText", func(t *testing.T) {
		data, err := RecommendationsToText(recommendations())
		if err != nil {
			t.Fatalf("RecommendationsToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Tracks: 2") || !strings.Contains(output, "2. Artist Two - Song Two") {
			t.Errorf("unexpected text output:\n%s", output)
		}
	})

	t.Run("override mood", func(t *testing.T) {
		r := recommendations()
		r.MoodAnalysis = &models.MoodAnalysis{DominantMood: "sad", Override: true}

		data, _ := RecommendationsToText(r)
		if !strings.Contains(string(data), "Mood: sad (chosen)") {
			t.Errorf("unexpected mood line:\n%s", data)
		}
	})

	t.Run("GenerationToText", func(t *testing.T) {
		output := string(GenerationToText(&models.GenerationResult{
			Success:      true,
			Playlist:     models.PlaylistDescriptor{ID: "p1", Name: "Happy Vibes", URL: "https://open.spotify.com/playlist/p1", TracksAdded: 20},
			DominantMood: "happy",
		}))

		for _, want := range []string{"Playlist: Happy Vibes", "URL: https://open.spotify.com/playlist/p1", "Tracks added: 20", "Mood: happy"} {
			if !strings.Contains(output, want) {
				t.Errorf("missing %q in:\n%s", want, output)
			}
		}
	})
}

func TestAnalysisToText(t *testing.T) {
	t.Run("bar chart ordered by count", func(t *testing.T) {
		output := string(AnalysisToText(&models.MoodAnalysis{
			DominantMood:     "happy",
			MoodDistribution: map[string]int{"sad": 3, "happy": 12, "neutral": 3},
			TotalMoods:       18,
			AvgConfidence:    78.46,
			DaysAnalyzed:     7,
		}, 10))

		if !strings.Contains(output, "Average confidence: 78.5%") {
			t.Errorf("missing average confidence:\n%s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		chart := lines[len(lines)-3:]
		want := []string{
			"happy   ██████████ 12",
			"neutral ██░░░░░░░░ 3",
			"sad     ██░░░░░░░░ 3",
		}
		for i := range want {
			if chart[i] != want[i] {
				t.Errorf("line %d: got %q, want %q", i, chart[i], want[i])
			}
		}
	})

	t.Run("override has no chart", func(t *testing.T) {
		output := string(AnalysisToText(&models.MoodAnalysis{DominantMood: "angry", Override: true}, 10))
		if strings.Contains(output, "█") {
			t.Errorf("unexpected chart:\n%s", output)
		}
	})
}

func TestBar(t *testing.T) {
	tests := []struct {
		count, max, width int
		want              string
	}{
		{0, 10, 4, "░░░░"},
		{1, 100, 4, "█░░░"},
		{5, 10, 4, "██░░"},
		{10, 10, 4, "████"},
		{3, 0, 4, ""},
	}

	for _, tt := range tests {
		if got := Bar(tt.count, tt.max, tt.width); got != tt.want {
			t.Errorf("Bar(%d, %d, %d) = %q, want %q", tt.count, tt.max, tt.width, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, "Markdown": FormatMarkdown, "text": FormatText, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := DownloadImage(srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestWriteRecommendations(t *testing.T) {
	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		result, err := WriteRecommendations(recommendations(), FormatCSV, "")
		if err != nil {
			t.Fatalf("WriteRecommendations failed: %v", err)
		}
		if len(result.Files) != 1 || result.Files[0] != "happy_recommendations.csv" {
			t.Errorf("unexpected files %v", result.Files)
		}
		th.AssertFileExists(t, "happy_recommendations.csv")
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")

		if _, err := WriteRecommendations(recommendations(), FormatJSON, path); err != nil {
			t.Fatalf("WriteRecommendations failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, `"uri": "spotify:track:1"`) {
			t.Errorf("unexpected JSON:\n%s", content)
		}
	})

	t.Run("Markdown with cover", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg"))
		}))
		defer srv.Close()

		r := recommendations()
		r.Recommendations[0].Image = srv.URL + "/cover"
		dir := filepath.Join(t.TempDir(), "mix")

		result, err := WriteRecommendations(r, FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("WriteRecommendations failed: %v", err)
		}
		if result.CoverImage != filepath.Join(dir, "cover.jpg") {
			t.Errorf("unexpected cover %q", result.CoverImage)
		}
		th.AssertFileExists(t, filepath.Join(dir, "cover.jpg"))
		if content := th.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(content, "![Cover](cover.jpg)") {
			t.Errorf("README missing cover:\n%s", content)
		}
	})

	t.Run("Markdown without reachable cover", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "mix")

		result, err := WriteRecommendations(recommendations(), FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("WriteRecommendations failed: %v", err)
		}
		if result.CoverImage != "" || len(result.Files) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})
}
