package inference

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/desertthunder/moodbeats/internal/models"
)

// Box is a located face in frame pixel coordinates.
type Box struct {
	Rect  image.Rectangle
	Score float32
}

// Detector locates at most one face in a frame.
type Detector interface {
	DetectSingleFace(ctx context.Context, img image.Image) (Box, bool, error)
	Close() error
}

// Classifier scores the expressions of the face inside box.
type Classifier interface {
	Expressions(ctx context.Context, img image.Image, box Box) (models.ExpressionSample, error)
	Close() error
}

// Adapter runs the two networks in sequence.
type Adapter struct {
	detector   Detector
	classifier Classifier
}

func NewAdapter(d Detector, c Classifier) *Adapter {
	return &Adapter{detector: d, classifier: c}
}

// Infer locates a single face and classifies its expression. found is false
// when the frame holds no face; that is not an error.
func (a *Adapter) Infer(ctx context.Context, img image.Image) (models.ExpressionSample, bool, error) {
	if img == nil {
		return nil, false, errors.New("nil frame")
	}

	box, found, err := a.detector.DetectSingleFace(ctx, img)
	if err != nil {
		return nil, false, fmt.Errorf("face detection failed: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	sample, err := a.classifier.Expressions(ctx, img, box)
	if err != nil {
		return nil, false, fmt.Errorf("expression classification failed: %w", err)
	}
	return sample, true, nil
}

// Close releases both networks.
func (a *Adapter) Close() error {
	return errors.Join(a.detector.Close(), a.classifier.Close())
}

// bestBox picks the highest face score above threshold. scores holds
// (background, face) pairs and boxes holds normalized (x1, y1, x2, y2) rows.
func bestBox(scores, boxes []float32, threshold float32, bounds image.Rectangle) (Box, bool) {
	n := min(len(scores)/2, len(boxes)/4)

	best, bestScore := -1, threshold
	for i := range n {
		if s := scores[2*i+1]; s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return Box{}, false
	}

	w, h := float32(bounds.Dx()), float32(bounds.Dy())
	b := boxes[4*best : 4*best+4]
	rect := image.Rect(
		bounds.Min.X+int(b[0]*w),
		bounds.Min.Y+int(b[1]*h),
		bounds.Min.X+int(b[2]*w),
		bounds.Min.Y+int(b[3]*h),
	).Intersect(bounds)

	if rect.Empty() {
		return Box{}, false
	}
	return Box{Rect: rect, Score: bestScore}, true
}

// toSample pairs classifier logits with their labels.
func toSample(logits []float32, labels []string) (models.ExpressionSample, error) {
	if len(logits) != len(labels) {
		return nil, fmt.Errorf("classifier returned %d scores for %d labels", len(logits), len(labels))
	}

	probs := Softmax(logits)
	sample := make(models.ExpressionSample, len(labels))
	for i, label := range labels {
		sample[label] = probs[i]
	}
	return sample, nil
}
