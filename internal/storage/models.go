package storage

import (
	"errors"
	"time"

	"github.com/kalambet/ragent/internal/llm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is a named conversation whose history is carried across runs.
type Session struct {
	ID        string
	Name      string
	LastModel string
	Messages  []llm.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run records one agent invocation.
type Run struct {
	ID         string
	SessionID  string
	Model      string
	Prompt     string
	Answer     string
	Ending     string // "answered", "short-circuited", "drained" or "" on failure
	Iterations int
	Error      string
	Duration   time.Duration
	CreatedAt  time.Time
}
