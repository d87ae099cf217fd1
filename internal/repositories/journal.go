package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
)

var _ models.Repository[*models.JournalEntry] = (*JournalRepository)(nil)

// JournalRepository implements [models.Repository] for [models.JournalEntry] persistence.
type JournalRepository struct {
	db *sql.DB
}

// NewJournalRepository creates a new [JournalRepository] with the given database connection
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

const journalColumns = "id, sequence, emotion, confidence, recorded_at, outcome, detail, created_at"

// Create inserts entry with a generated ID and the next sequence number.
func (r *JournalRepository) Create(entry *models.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "journal")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `INSERT INTO journal (` + journalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.Exec(query, id, sequence, entry.Emotion(), entry.Confidence(), entry.RecordedAt().UTC(),
		string(entry.Outcome()), entry.Detail(), entry.CreatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal entry: %w", err)
	}

	entry.SetID(id)
	entry.SetSequence(sequence)
	return nil
}

// Get retrieves a journal entry by ID
func (r *JournalRepository) Get(id string) (*models.JournalEntry, error) {
	row := r.db.QueryRow(`SELECT `+journalColumns+` FROM journal WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: journal entry %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entry: %w", err)
	}
	return entry, nil
}

// Delete removes a journal entry by ID
func (r *JournalRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM journal WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: journal entry %s", shared.ErrNotFound, id)
	}
	return nil
}

// List retrieves entries matching criteria, newest first.
//
// Supported criteria: "outcome" ([models.Outcome] or string), "emotion" (string),
// "since" ([time.Time]) and "limit" (int).
func (r *JournalRepository) List(criteria map[string]any) ([]*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal WHERE 1 = 1`
	args := []any{}

	switch o := criteria["outcome"].(type) {
	case models.Outcome:
		query += " AND outcome = ?"
		args = append(args, string(o))
	case string:
		if o != "" {
			query += " AND outcome = ?"
			args = append(args, o)
		}
	}

	if emotion, ok := criteria["emotion"].(string); ok && emotion != "" {
		query += " AND emotion = ?"
		args = append(args, emotion)
	}

	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, since.UTC())
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Recent returns the n newest entries.
func (r *JournalRepository) Recent(n int) ([]*models.JournalEntry, error) {
	return r.List(map[string]any{"limit": n})
}

// OutcomeCounts tallies entries per outcome.
func (r *JournalRepository) OutcomeCounts() (map[models.Outcome]int, error) {
	rows, err := r.db.Query("SELECT outcome, COUNT(*) FROM journal GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to count journal outcomes: %w", err)
	}
	defer rows.Close()

	counts := map[models.Outcome]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[models.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.JournalEntry, error) {
	var (
		id         string
		sequence   int
		emotion    string
		confidence int
		recordedAt time.Time
		outcome    string
		detail     string
		createdAt  time.Time
	)

	if err := s.Scan(&id, &sequence, &emotion, &confidence, &recordedAt, &outcome, &detail, &createdAt); err != nil {
		return nil, err
	}

	record := models.SyncRecord{Emotion: emotion, Confidence: confidence, Timestamp: recordedAt.UTC()}
	entry := models.NewJournalEntry(record, models.Outcome(outcome), detail)
	entry.SetID(id)
	entry.SetSequence(sequence)
	entry.SetCreatedAt(createdAt.UTC())
	return entry, nil
}
