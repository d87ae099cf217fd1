package capture

import (
	"encoding/json"
	"time"

	"github.com/desertthunder/moodbeats/internal/models"
)

// EventKind names what an [Event] reports.
type EventKind string

const (
	EventCamera  EventKind = "camera"
	EventModels  EventKind = "models"
	EventTick    EventKind = "tick"
	EventUpload  EventKind = "upload"
	EventStopped EventKind = "stopped"
)

// Event is a progress update from a capture [Session].
type Event struct {
	Kind      EventKind        `json:"kind"`
	Readiness models.Readiness `json:"readiness"`
	Result    string           `json:"result,omitempty"`
	Emotion   *models.Emotion  `json:"emotion,omitempty"`
	Outcome   models.Outcome   `json:"outcome,omitempty"`
	Err       error            `json:"-"`
	At        time.Time        `json:"at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(e)}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}

// Report is the result of one capture pass.
type Report struct {
	Result  string
	Emotion *models.Emotion
	Outcome models.Outcome
	Err     error
}

// Status is a snapshot of a [Session].
type Status struct {
	Camera      models.Readiness `json:"camera"`
	Models      models.Readiness `json:"models"`
	Running     bool             `json:"running"`
	Ticks       int              `json:"ticks"`
	LastTickAt  time.Time        `json:"last_tick_at,omitzero"`
	LastResult  string           `json:"last_result,omitempty"`
	LastEmotion *models.Emotion  `json:"last_emotion,omitempty"`
	LastOutcome models.Outcome   `json:"last_outcome,omitempty"`
}
