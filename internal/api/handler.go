package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ragent/internal/capability"
	"github.com/kalambet/ragent/internal/failure"
	"github.com/kalambet/ragent/internal/llm"
	"github.com/kalambet/ragent/internal/runner"
)

const maxRequestBodySize = 8 << 20 // 8MB, room for a base64 image

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Runner *runner.Runner
	Tools  *capability.Registry
	// Token enables bearer auth on /v1 routes when non-empty.
	Token  string
	Logger *slog.Logger
}

// RunRequest is the body of POST /v1/agent/run.
type RunRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	Messages  []llm.Message `json:"messages,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	Context   string        `json:"context,omitempty"`
	Image     string        `json:"image,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

// RunResponse is the non-streaming reply of POST /v1/agent/run.
type RunResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id,omitempty"`
	Content    string `json:"content"`
	Ending     string `json:"ending"`
	Iterations int    `json:"iterations"`
}

// NewHandler returns the HTTP API: a health probe, the capability list and
// the agent run endpoint.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/v1/tools", handleTools(deps))
		r.Post("/v1/agent/run", handleRun(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleTools(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs := []llm.ToolDefinition{}
		if deps.Tools != nil {
			defs = append(defs, deps.Tools.Definitions()...)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   defs,
		})
	}
}

func handleRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 && req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "either prompt or messages is required")
			return
		}

		task := runner.Task{
			Prompt:   req.Prompt,
			Context:  req.Context,
			Image:    req.Image,
			Session:  req.SessionID,
			Messages: req.Messages,
		}

		if req.Stream {
			streamRun(w, r, deps, task)
			return
		}

		out, err := deps.Runner.Run(r.Context(), task)
		if err != nil {
			deps.Logger.Warn("agent run failed", "error", err)
			httpError(w, statusFor(err), errorType(err), "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RunResponse{
			ID:         out.RunID,
			SessionID:  out.SessionID,
			Content:    out.Text,
			Ending:     out.Ending,
			Iterations: out.Iterations,
		})
	}
}

// streamRun writes answer fragments as SSE frames. Headers are sent with the
// first fragment so that failures of the tool loop still get a JSON error.
func streamRun(w http.ResponseWriter, r *http.Request, deps Deps, task runner.Task) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	started := false
	emit := func(fragment string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}
		if err := writeFrame(w, map[string]string{"content": fragment}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := deps.Runner.Stream(r.Context(), task, emit)
	if err != nil {
		deps.Logger.Warn("agent stream failed", "error", err)
		if !started {
			httpError(w, statusFor(err), errorType(err), "%v", err)
			return
		}
		writeFrame(w, map[string]any{
			"error": map[string]any{
				"message": err.Error(),
				"type":    errorType(err),
			},
		})
	} else if !started {
		w.Header().Set("Content-Type", "text/event-stream")
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeFrame(w http.ResponseWriter, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, failure.ErrTransport), errors.Is(err, failure.ErrProtocol):
		return http.StatusBadGateway
	case errors.Is(err, failure.ErrCapability), errors.Is(err, failure.ErrIterationLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, failure.ErrTransport), errors.Is(err, failure.ErrProtocol):
		return "upstream_error"
	case errors.Is(err, failure.ErrCapability):
		return "capability_error"
	case errors.Is(err, failure.ErrIterationLimit):
		return "iteration_limit_error"
	default:
		return "api_error"
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
