package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Moods is the mood vocabulary understood by the remote API.
var Moods = []string{"happy", "sad", "angry", "neutral", "surprised", "fear", "disgust"}

// IsMood reports whether label belongs to [Moods].
func IsMood(label string) bool {
	for _, m := range Moods {
		if m == label {
			return true
		}
	}
	return false
}

// ExpressionSample maps an expression label to a probability in [0,1].
type ExpressionSample map[string]float64

// Emotion is the reduced form of an [ExpressionSample].
type Emotion struct {
	Label      string `json:"emotion"`
	Confidence int    `json:"confidence"`
}

func (e Emotion) String() string {
	return fmt.Sprintf("%s (%d%%)", e.Label, e.Confidence)
}

// SyncRecord is the body of an emotion upload.
type SyncRecord struct {
	Emotion    string
	Confidence int
	Timestamp  time.Time
}

// TimestampLayout matches the millisecond ISO-8601 form the backend stores.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewSyncRecord stamps e with at, normalized to UTC.
func NewSyncRecord(e Emotion, at time.Time) SyncRecord {
	return SyncRecord{Emotion: e.Label, Confidence: e.Confidence, Timestamp: at.UTC()}
}

type syncRecordJSON struct {
	Emotion    string `json:"emotion"`
	Confidence int    `json:"confidence"`
	Timestamp  string `json:"timestamp"`
}

func (s SyncRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(syncRecordJSON{
		Emotion:    s.Emotion,
		Confidence: s.Confidence,
		Timestamp:  s.Timestamp.UTC().Format(TimestampLayout),
	})
}

func (s *SyncRecord) UnmarshalJSON(data []byte) error {
	var raw syncRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", raw.Timestamp, err)
	}

	*s = SyncRecord{Emotion: raw.Emotion, Confidence: raw.Confidence, Timestamp: ts.UTC()}
	return nil
}

// Validate checks the record against what the emotion store accepts.
func (s SyncRecord) Validate() error {
	if s.Emotion == "" {
		return fmt.Errorf("emotion is required")
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range", s.Confidence)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
