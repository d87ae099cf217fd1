// package formatter renders playlist flow results for the terminal and exports them to files (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts the short and long names of a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (want csv, md, txt or json)", shared.ErrInvalidFlag, s)
}

// RecommendationsToCSV writes one row per track with columns: Name, Artist, Album, URI, Preview URL
func RecommendationsToCSV(r *models.Recommendations) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Name", "Artist", "Album", "URI", "Preview URL"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range r.Recommendations {
		if err := writer.Write([]string{track.Name, track.Artist, track.Album, track.URI, track.PreviewURL}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// RecommendationsToMarkdown renders the recommendations with an optional cover image.
func RecommendationsToMarkdown(r *models.Recommendations, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", Title(r.DominantMood))
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Mood**: %s\n", moodLine(r.DominantMood, r.MoodAnalysis))
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(r.Recommendations))

	buf.WriteString("## Tracks\n\n")
	for i, track := range r.Recommendations {
		album := ""
		if track.Album != "" {
			album = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s `%s`\n", i+1, track.Artist, track.Name, album, track.URI)
	}
	return buf.Bytes(), nil
}

// RecommendationsToText renders the recommendations as a numbered list.
func RecommendationsToText(r *models.Recommendations) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Mood: %s\n", moodLine(r.DominantMood, r.MoodAnalysis))
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(r.Recommendations))
	for i, track := range r.Recommendations {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Name)
	}
	return buf.Bytes(), nil
}

// GenerationToText summarizes a created playlist.
func GenerationToText(g *models.GenerationResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Playlist: %s\n", g.Playlist.Name)
	fmt.Fprintf(&buf, "URL: %s\n", g.Playlist.URL)
	fmt.Fprintf(&buf, "Tracks added: %d\n", g.Playlist.TracksAdded)
	fmt.Fprintf(&buf, "Mood: %s\n", moodLine(g.DominantMood, g.MoodAnalysis))
	return buf.Bytes()
}

// Title is the playlist name the backend derives from a mood.
func Title(mood string) string {
	if mood == "" {
		return "Mood Mix"
	}
	return strings.ToUpper(mood[:1]) + mood[1:] + " Vibes"
}

func moodLine(dominant string, m *models.MoodAnalysis) string {
	switch {
	case m == nil:
		return dominant
	case m.Override:
		return m.DominantMood + " (chosen)"
	default:
		return fmt.Sprintf("%s (%d moods over %d days)", m.DominantMood, m.TotalMoods, m.DaysAnalyzed)
	}
}

// DistributionEntry is one bar of a mood distribution.
type DistributionEntry struct {
	Mood  string
	Count int
}

// SortedDistribution orders the distribution by count, then by mood name.
func SortedDistribution(dist map[string]int) []DistributionEntry {
	entries := make([]DistributionEntry, 0, len(dist))
	for mood, count := range dist {
		entries = append(entries, DistributionEntry{Mood: mood, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Mood < entries[j].Mood
	})
	return entries
}

// Bar returns a bar of width cells filled in proportion to count/max.
func Bar(count, max, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	filled := count * width / max
	if count > 0 && filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// AnalysisToText renders a mood analysis with a distribution bar chart of the given width.
func AnalysisToText(m *models.MoodAnalysis, width int) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dominant mood: %s\n", m.DominantMood)
	if m.Override {
		buf.WriteString("(chosen explicitly)\n")
		return buf.Bytes()
	}
	fmt.Fprintf(&buf, "Moods recorded: %d over %d days\n", m.TotalMoods, m.DaysAnalyzed)
	fmt.Fprintf(&buf, "Average confidence: %.1f%%\n\n", m.AvgConfidence)

	entries := SortedDistribution(m.MoodDistribution)
	if len(entries) == 0 {
		return buf.Bytes()
	}

	max, pad := entries[0].Count, 0
	for _, e := range entries {
		pad = maxInt(pad, len(e.Mood))
	}
	for _, e := range entries {
		fmt.Fprintf(&buf, "%-*s %s %d\n", pad, e.Mood, Bar(e.Count, max, width), e.Count)
	}
	return buf.Bytes()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// ExportResult lists the files written by [WriteRecommendations].
type ExportResult struct {
	Files      []string
	CoverImage string
}

// WriteRecommendations exports r to path in the given format.
//
// The path defaults to {mood}_recommendations.{ext}. Markdown is written into
// a directory ({path}/README.md) together with the first track's cover when
// it can be downloaded.
func WriteRecommendations(r *models.Recommendations, format Format, path string) (*ExportResult, error) {
	if path == "" {
		mood := r.DominantMood
		if mood == "" {
			mood = "mood"
		}
		path = mood + "_recommendations"
		if format != FormatMarkdown {
			path += "." + string(format)
		}
	}

	var data []byte
	var err error
	switch format {
	case FormatCSV:
		data, err = RecommendationsToCSV(r)
	case FormatText:
		data, err = RecommendationsToText(r)
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatMarkdown:
		return writeMarkdown(r, path)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return &ExportResult{Files: []string{path}}, nil
}

func writeMarkdown(r *models.Recommendations, dir string) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{}

	cover := ""
	if len(r.Recommendations) > 0 && r.Recommendations[0].Image != "" {
		if img, err := DownloadImage(r.Recommendations[0].Image); err == nil {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, img, 0644); err == nil {
				cover = "cover.jpg"
				result.CoverImage = path
				result.Files = append(result.Files, path)
			}
		}
	}

	data, err := RecommendationsToMarkdown(r, cover)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)
	return result, nil
}
