// Package runner turns a task into an agent run: it builds the user message,
// carries session history across runs and records every run in the store.
package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kalambet/ragent/internal/agent"
	"github.com/kalambet/ragent/internal/llm"
	"github.com/kalambet/ragent/internal/storage"
)

// Store is the subset of storage.Store the runner needs.
type Store interface {
	GetSession(name string) (storage.Session, error)
	SaveSession(sess storage.Session) (storage.Session, error)
	SaveRun(r storage.Run) (storage.Run, error)
}

// Task describes one invocation.
type Task struct {
	Prompt  string
	Context string
	// Image is base64-encoded JPEG data attached next to the prompt.
	Image string
	// Session names the conversation to continue. Empty runs statelessly.
	Session string
	// Messages replaces the message built from Prompt, Context and Image.
	Messages []llm.Message
}

// Outcome captures what a run produced.
type Outcome struct {
	RunID      string
	SessionID  string
	Text       string
	Ending     string
	Iterations int
	Duration   time.Duration
}

// Runner executes tasks against an agent.
type Runner struct {
	agent  *agent.Agent
	store  Store
	logger *slog.Logger
}

// New creates a Runner. store may be nil, in which case sessions are
// unavailable and runs are not recorded.
func New(a *agent.Agent, store Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{agent: a, store: store, logger: logger}
}

// Agent returns the agent tasks run against.
func (r *Runner) Agent() *agent.Agent { return r.agent }

// UserPrompt folds optional context into the task text.
func UserPrompt(task, context string) string {
	if context == "" {
		return task
	}
	return fmt.Sprintf("Context: %s\n\n User: %s", context, task)
}

// ImageFromFile reads path and returns its base64 encoding.
func ImageFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// messages returns the new messages a task contributes to the conversation.
func (t Task) messages() ([]llm.Message, error) {
	if len(t.Messages) > 0 {
		return t.Messages, nil
	}
	if t.Prompt == "" {
		return nil, errors.New("task prompt is required")
	}
	text := UserPrompt(t.Prompt, t.Context)
	if t.Image == "" {
		return []llm.Message{llm.UserMessage(text)}, nil
	}
	return []llm.Message{llm.UserParts(
		llm.TextPart(text),
		llm.ImagePart("data:image/jpg;base64,"+t.Image),
	)}, nil
}

// Run executes the task and returns the final answer.
func (r *Runner) Run(ctx context.Context, t Task) (Outcome, error) {
	prior, added, err := r.prepare(t)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	res, err := r.agent.Run(ctx, append(prior, added...))
	if err != nil {
		r.record(t, Outcome{Duration: time.Since(start)}, err)
		return Outcome{}, err
	}

	out := Outcome{Text: res.Text, Ending: res.Ending.String(), Iterations: res.Iterations, Duration: time.Since(start)}
	return r.finish(t, prior, added, out)
}

// Stream executes the task and passes answer fragments to emit as they
// arrive. A non-nil error from emit aborts the stream.
func (r *Runner) Stream(ctx context.Context, t Task, emit func(fragment string) error) (Outcome, error) {
	prior, added, err := r.prepare(t)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	res, stream, err := r.agent.RunStream(ctx, append(prior, added...))
	if err != nil {
		r.record(t, Outcome{Duration: time.Since(start)}, err)
		return Outcome{}, err
	}
	defer stream.Close()

	var text []byte
	partial := func() Outcome {
		return Outcome{Text: string(text), Ending: res.Ending.String(), Iterations: res.Iterations, Duration: time.Since(start)}
	}
	for fragment, err := range stream.All() {
		if err != nil {
			r.record(t, partial(), err)
			return Outcome{}, err
		}
		text = append(text, fragment...)
		if err := emit(fragment); err != nil {
			r.record(t, partial(), err)
			return Outcome{}, err
		}
	}

	return r.finish(t, prior, added, partial())
}

func (r *Runner) prepare(t Task) (prior, added []llm.Message, err error) {
	added, err = t.messages()
	if err != nil {
		return nil, nil, err
	}
	if t.Session == "" {
		return nil, added, nil
	}
	if r.store == nil {
		return nil, nil, errors.New("sessions require a store")
	}
	sess, err := r.store.GetSession(t.Session)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r.logger.Debug("starting new session", "session", t.Session)
		return nil, added, nil
	case err != nil:
		return nil, nil, fmt.Errorf("loading session %q: %w", t.Session, err)
	}
	return sess.Messages, added, nil
}

func (r *Runner) finish(t Task, prior, added []llm.Message, out Outcome) (Outcome, error) {
	if t.Session != "" {
		messages := make([]llm.Message, 0, len(prior)+len(added)+1)
		messages = append(messages, prior...)
		messages = append(messages, added...)
		messages = append(messages, llm.AssistantMessage(out.Text, nil))

		sess, err := r.store.SaveSession(storage.Session{
			Name:      t.Session,
			LastModel: r.agent.Model(),
			Messages:  messages,
		})
		if err != nil {
			err = fmt.Errorf("saving session %q: %w", t.Session, err)
			out.RunID = r.record(t, out, err)
			return out, err
		}
		out.SessionID = sess.ID
	}
	out.RunID = r.record(t, out, nil)

	r.logger.Info("run complete",
		"ending", out.Ending,
		"iterations", out.Iterations,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// record appends the run to the log and returns its ID. Failures to record
// are logged, never returned.
func (r *Runner) record(t Task, out Outcome, runErr error) string {
	if r.store == nil {
		return ""
	}
	run := storage.Run{
		SessionID:  out.SessionID,
		Model:      r.agent.Model(),
		Prompt:     promptText(t),
		Answer:     out.Text,
		Ending:     out.Ending,
		Iterations: out.Iterations,
		Duration:   out.Duration,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	saved, err := r.store.SaveRun(run)
	if err != nil {
		r.logger.Warn("failed to record run", "error", err)
		return ""
	}
	return saved.ID
}

func promptText(t Task) string {
	if t.Prompt != "" || len(t.Messages) == 0 {
		return t.Prompt
	}
	return t.Messages[len(t.Messages)-1].Text()
}
