package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/ragent/internal/config"
	"github.com/kalambet/ragent/internal/runner"
	"github.com/kalambet/ragent/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(token string) *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      token,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})

	var health map[string]string
	if err := ts.client("test-token").getJSON(ctx, "/health", &health); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ts.client("").getJSON(ctx, "/health", &health); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	if got := ts.requests[0].Auth; got != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", got)
	}
	if got := ts.requests[1].Auth; got != "" {
		t.Errorf("auth without token = %q, want empty", got)
	}
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}
}

func TestAPIClient_NotReachable(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client("")
	ts.server.Close()

	var v map[string]any
	err := c.getJSON(ctx, "/health", &v)
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	var v map[string]any
	err := ts.client("").getJSON(ctx, "/missing", &v)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if want := "server returned 404: not found (not_found)"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestResponseError_PlainBody(t *testing.T) {
	resp := &http.Response{StatusCode: 502, Body: io.NopCloser(strings.NewReader("bad gateway\n"))}
	if got := responseError(resp).Error(); got != "server returned 502: bad gateway" {
		t.Errorf("error = %q", got)
	}
}

type fakeModels struct {
	ids   []string
	err   error
	calls int
}

func (f *fakeModels) ListModels(context.Context) ([]string, error) {
	f.calls++
	return f.ids, f.err
}

func TestShowStatus_QueriesServer(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health":   `{"status":"ok"}`,
		"GET /v1/tools": `{"object":"list","data":[{"type":"function","function":{"name":"get_time_tool","description":"","parameters":{}}}]}`,
	})

	cfg := config.Config{}
	cfg.Agent.Model = "qwen"
	models := &fakeModels{ids: []string{"qwen"}}
	showStatus(ctx, cfg, models, ts.client("tok"))

	if models.calls != 1 {
		t.Errorf("ListModels called %d times, want 1", models.calls)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	if ts.requests[1].Path != "/v1/tools" || ts.requests[1].Auth != "Bearer tok" {
		t.Errorf("second request = %+v", ts.requests[1])
	}
}

func TestShowStatus_StoppedServer(t *testing.T) {
	ts := newTestServer(t, nil)

	showStatus(ctx, config.Config{}, &fakeModels{err: errors.New("connection refused")}, ts.client(""))

	// Only the health probe is attempted when the server does not answer ok.
	if len(ts.requests) != 1 {
		t.Errorf("expected 1 request, got %d", len(ts.requests))
	}
}

func TestRunCommand_RequiresTask(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"run"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when no task is given")
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"run", "serve", "status", "sessions", "runs", "tools", "config"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestSetupLogging(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	setupLogging("debug")
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
	setupLogging("warn")
	if slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	setupLogging("bogus")
	if !slog.Default().Enabled(ctx, slog.LevelInfo) || slog.Default().Enabled(ctx, slog.LevelDebug) {
		t.Error("unknown level should fall back to info")
	}
}

func TestFormatting(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	line := formatSessionLine(storage.Session{Name: "work", LastModel: "qwen", UpdatedAt: when, Messages: nil})
	if want := "work  2026-03-01 12:00:00    0 messages  qwen"; line != want {
		t.Errorf("session line = %q, want %q", line, want)
	}

	run := storage.Run{ID: "0123456789abcdef", Prompt: "line one\nline two", Ending: "answered", Iterations: 2, Duration: 1500 * time.Millisecond, CreatedAt: when}
	line = formatRunLine(run)
	if !strings.HasPrefix(line, "01234567  ") || !strings.HasSuffix(line, "line one line two") || !strings.Contains(line, "answered") {
		t.Errorf("run line = %q", line)
	}
	run.Error = "boom"
	if line = formatRunLine(run); !strings.Contains(line, "failed") {
		t.Errorf("failed run line = %q", line)
	}

	if got := formatTranscriptLine(runner.MappedMessage{Speaker: runner.SpeakerAgent, Text: "hi"}); got != "\nAgent: hi" {
		t.Errorf("agent line = %q", got)
	}
	if got := formatTranscriptLine(runner.MappedMessage{Speaker: runner.SpeakerUser, Text: "yo"}); got != "\nUser: yo" {
		t.Errorf("user line = %q", got)
	}
}

func TestEllipsize(t *testing.T) {
	if got := ellipsize("short", 10); got != "short" {
		t.Errorf("ellipsize = %q", got)
	}
	if got := ellipsize("héllo wörld", 5); got != "héllo..." {
		t.Errorf("ellipsize = %q, want %q", got, "héllo...")
	}
	if got := ellipsize("line one\r\nline two", 40); got != "line one line two" {
		t.Errorf("ellipsize = %q, want newlines flattened", got)
	}
}

func TestStatusLinesGoToStatusOut(t *testing.T) {
	oldOut, oldColor := statusOut, noColor
	defer func() { statusOut, noColor = oldOut, oldColor }()

	var buf bytes.Buffer
	statusOut = &buf
	noColor = true

	printStep("loading %s", "config")
	printStatus("Model", "%s", "qwen")
	printError("failed")

	want := "→ loading config\n  Model: qwen\n✗ failed\n"
	if buf.String() != want {
		t.Errorf("status output = %q, want %q", buf.String(), want)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Agent.Model = "qwen2.5"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}
