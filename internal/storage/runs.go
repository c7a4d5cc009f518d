package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveRun appends r to the run log. A missing ID or CreatedAt is filled in.
func (s *Store) SaveRun(r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, session_id, model, prompt, answer, ending, iterations, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Model, r.Prompt, r.Answer, r.Ending, r.Iterations, r.Error,
		r.Duration.Milliseconds(), formatTime(r.CreatedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("saving run: %w", err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, model, prompt, answer, ending, iterations, error, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var (
			r          Run
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Model, &r.Prompt, &r.Answer, &r.Ending,
			&r.Iterations, &r.Error, &durationMS, &createdAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}
