package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/ragent/internal/failure"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "test-key")
}

func testRequest() CompletionRequest {
	return CompletionRequest{
		Model:       "test-model",
		Messages:    []Message{UserMessage("hi")},
		Temperature: 0.7,
	}
}

func sseServer(frames string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, frames)
	}
}

func drain(t *testing.T, s *Stream) ([]string, []error) {
	t.Helper()
	var (
		texts []string
		errs  []error
	)
	for s.Next() {
		if err := s.Err(); err != nil {
			errs = append(errs, err)
			continue
		}
		texts = append(texts, s.Text())
	}
	return texts, errs
}

func TestSendOnce_RequestShape(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"id":"c1","created":1,"model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"}}]}`)
	})

	msg, err := c.SendOnce(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendOnce: %v", err)
	}
	if msg.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello!")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", gotBody["model"])
	}
}

func TestSendOnce_ToolCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{}"}}]}}]}`)
	})

	msg, err := c.SendOnce(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendOnce: %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "echo" {
		t.Errorf("ToolCalls = %+v, want one echo call", msg.ToolCalls)
	}
}

func TestSendOnce_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","created":1,"model":"m","choices":[]}`)
	})

	_, err := c.SendOnce(context.Background(), testRequest())
	if !errors.Is(err, failure.ErrProtocol) {
		t.Fatalf("err = %v, want protocol error", err)
	}
}

func TestSendOnce_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":`)
	})

	_, err := c.SendOnce(context.Background(), testRequest())
	if !errors.Is(err, failure.ErrProtocol) {
		t.Fatalf("err = %v, want protocol error", err)
	}
}

func TestSendOnce_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := c.SendOnce(context.Background(), testRequest())
	if !errors.Is(err, failure.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %+v, want 503", fe)
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error = %q, want upstream body", err.Error())
	}
}

func TestSendOnce_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k").SendOnce(context.Background(), testRequest())
	if !errors.Is(err, failure.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestSendStream_Fragments(t *testing.T) {
	frames := "data: {\"id\":\"g\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"id\":\"g\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
		"data: {\"id\":\"g\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\" world\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"id\":\"g\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"after done\"}}]}\n\n"

	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		sseServer(frames)(w, r)
	})

	s, err := c.SendStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	texts, errs := drain(t, s)
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	if got := strings.Join(texts, "|"); got != "Hello| world" {
		t.Errorf("fragments = %q, want %q", got, "Hello| world")
	}
	if gotBody["stream"] != true {
		t.Errorf("stream = %v, want true", gotBody["stream"])
	}
	if s.Next() {
		t.Error("Next after exhaustion should return false")
	}
}

func TestSendStream_RoleOnlyDeltaYieldsNothing(t *testing.T) {
	frames := "data: {\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"\"}}]}\n\n" +
		"data: {\"choices\":[]}\n\n" +
		"data: [DONE]\n\n"
	c := newTestClient(t, sseServer(frames))

	s, err := c.SendStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	texts, errs := drain(t, s)
	if len(texts) != 0 || len(errs) != 0 {
		t.Errorf("got %v / %v, want no items", texts, errs)
	}
}

func TestSendStream_MalformedFrameKeepsPriorFragments(t *testing.T) {
	frames := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"one\"}}]}\n\n" +
		"data: {not json\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"two\"}}]}\n\n" +
		"data: [DONE]\n\n"
	c := newTestClient(t, sseServer(frames))

	s, err := c.SendStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}

	var items []string
	for text, err := range s.All() {
		if err != nil {
			if !errors.Is(err, failure.ErrProtocol) {
				t.Errorf("err = %v, want protocol error", err)
			}
			items = append(items, "ERR")
			continue
		}
		items = append(items, text)
	}
	if got := strings.Join(items, ","); got != "one,ERR,two" {
		t.Errorf("items = %q, want %q", got, "one,ERR,two")
	}
}

func TestSendStream_EndsOnBodyClose(t *testing.T) {
	frames := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}"
	c := newTestClient(t, sseServer(frames))

	s, err := c.SendStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	text, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "partial" {
		t.Errorf("text = %q, want %q", text, "partial")
	}
}

func TestSendStream_IgnoresCommentsAndCRLF(t *testing.T) {
	frames := ": keep-alive\r\n\r\n" +
		"event: message\r\ndata: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\r\n\r\n" +
		"data: [DONE]\r\n\r\n"
	c := newTestClient(t, sseServer(frames))

	s, err := c.SendStream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("SendStream: %v", err)
	}
	text, err := s.Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q, want %q", text, "ok")
	}
}

func TestSendStream_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.SendStream(context.Background(), testRequest())
	if !errors.Is(err, failure.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestStream_BreakClosesBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"a\"}}]}\n\n" +
			"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"b\"}}]}\n\n",
	)}
	s := newEventStream(body)

	for range s.All() {
		break
	}
	if !body.closed {
		t.Error("body not closed after break")
	}
	if s.Next() {
		t.Error("Next after Close should return false")
	}
}

func TestStaticStream(t *testing.T) {
	s := StaticStream("final")
	texts, errs := drain(t, s)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
	if len(texts) != 1 || texts[0] != "final" {
		t.Errorf("texts = %v, want [final]", texts)
	}
}

func TestListModels(t *testing.T) {
	var auth, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		fmt.Fprint(w, `{"object":"list","data":[{"id":"qwen2.5-7b","object":"model"},{"id":"llava","object":"model"}]}`)
	})

	ids, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if strings.Join(ids, ",") != "qwen2.5-7b,llava" {
		t.Errorf("ids = %v", ids)
	}
	if path != "/models" || auth != "Bearer test-key" {
		t.Errorf("request path = %q, auth = %q", path, auth)
	}
}

func TestListModels_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.ListModels(context.Background())
	if !errors.Is(err, failure.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
}
