// Package emotion reduces expression samples to a single dominant emotion.
package emotion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

var aliases = map[string]string{
	"happiness": "happy",
	"sadness":   "sad",
	"anger":     "angry",
	"surprise":  "surprised",
	"fearful":   "fear",
	"disgusted": "disgust",
	"contempt":  "disgust",
}

// Reduce returns the label with the highest probability in sample.
//
// Labels are visited in lexicographic order and a later label only wins with a
// strictly greater probability, so ties resolve to the smallest label.
func Reduce(sample models.ExpressionSample) (models.Emotion, error) {
	if len(sample) == 0 {
		return models.Emotion{}, shared.ErrEmptySample
	}

	labels := make([]string, 0, len(sample))
	for label := range sample {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, label := range labels[1:] {
		if sample[label] > sample[best] {
			best = label
		}
	}

	p := sample[best]
	if math.IsNaN(p) {
		return models.Emotion{}, fmt.Errorf("%w: probability for %q is NaN", shared.ErrInvalidInput, best)
	}

	return models.Emotion{Label: Normalize(best), Confidence: ConfidencePercent(p)}, nil
}

// ConfidencePercent converts a probability to a whole percentage in [0,100].
func ConfidencePercent(p float64) int {
	pct := int(math.Round(p * 100))
	return max(0, min(100, pct))
}

// Normalize maps classifier labels onto the mood vocabulary of the remote API.
func Normalize(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if mood, ok := aliases[l]; ok {
		return mood
	}
	return l
}
