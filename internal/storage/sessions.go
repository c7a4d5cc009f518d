package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/ragent/internal/llm"
)

// SaveSession inserts the session or replaces the one with the same name.
// ID and CreatedAt are kept from the stored row when it exists.
func (s *Store) SaveSession(sess Session) (Session, error) {
	if sess.Name == "" {
		return Session{}, errors.New("session name is required")
	}
	messages := sess.Messages
	if messages == nil {
		messages = []llm.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return Session{}, fmt.Errorf("encoding messages: %w", err)
	}

	now := time.Now()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, name, last_model, messages_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_model = excluded.last_model,
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Name, sess.LastModel, string(data),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return Session{}, fmt.Errorf("saving session %q: %w", sess.Name, err)
	}
	return s.GetSession(sess.Name)
}

// GetSession returns the session called name.
func (s *Store) GetSession(name string) (Session, error) {
	row := s.db.QueryRow(`
		SELECT id, name, last_model, messages_json, created_at, updated_at
		FROM sessions WHERE name = ?`, name,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns up to limit sessions, most recently updated first.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, name, last_model, messages_json, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

// DeleteSession removes the session called name.
func (s *Store) DeleteSession(name string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess                 Session
		data                 string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&sess.ID, &sess.Name, &sess.LastModel, &data, &createdAt, &updatedAt); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(data), &sess.Messages); err != nil {
		return Session{}, fmt.Errorf("decoding messages of session %q: %w", sess.Name, err)
	}
	var err error
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Session{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return sess, nil
}
