package models

import (
	"fmt"
	"time"
)

// Outcome is the result of one upload attempt.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeSkippedNoToken   Outcome = "skipped_no_token"
	OutcomeSkippedDebounced Outcome = "skipped_debounced"
	OutcomeFailed           Outcome = "failed"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSent, OutcomeSkippedNoToken, OutcomeSkippedDebounced, OutcomeFailed:
		return true
	}
	return false
}

// JournalEntry records an upload attempt in the local store.
type JournalEntry struct {
	id         string
	sequence   int
	emotion    string
	confidence int
	recordedAt time.Time
	outcome    Outcome
	detail     string
	createdAt  time.Time
}

// NewJournalEntry creates an entry for record with the given outcome.
func NewJournalEntry(record SyncRecord, outcome Outcome, detail string) *JournalEntry {
	return &JournalEntry{
		emotion:    record.Emotion,
		confidence: record.Confidence,
		recordedAt: record.Timestamp,
		outcome:    outcome,
		detail:     detail,
		createdAt:  time.Now().UTC(),
	}
}

func (j *JournalEntry) ID() string            { return j.id }
func (j *JournalEntry) Sequence() int         { return j.sequence }
func (j *JournalEntry) Emotion() string       { return j.emotion }
func (j *JournalEntry) Confidence() int       { return j.confidence }
func (j *JournalEntry) RecordedAt() time.Time { return j.recordedAt }
func (j *JournalEntry) Outcome() Outcome      { return j.outcome }
func (j *JournalEntry) Detail() string        { return j.detail }
func (j *JournalEntry) CreatedAt() time.Time  { return j.createdAt }

func (j *JournalEntry) SetID(id string)          { j.id = id }
func (j *JournalEntry) SetSequence(seq int)      { j.sequence = seq }
func (j *JournalEntry) SetCreatedAt(t time.Time) { j.createdAt = t }

// Record rebuilds the [SyncRecord] the entry was created from.
func (j *JournalEntry) Record() SyncRecord {
	return SyncRecord{Emotion: j.emotion, Confidence: j.confidence, Timestamp: j.recordedAt}
}

func (j *JournalEntry) Validate() error {
	if err := j.Record().Validate(); err != nil {
		return err
	}
	if !j.outcome.Valid() {
		return fmt.Errorf("unknown outcome %q", j.outcome)
	}
	return nil
}
