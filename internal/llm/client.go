package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/ragent/internal/failure"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// Client sends chat-completion requests to an OpenAI-compatible endpoint.
// It performs no retries; wrap the http.Client's transport for that.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the endpoint rooted at baseURL
// (for example "http://localhost:1234/v1").
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the endpoint root the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendOnce issues req with streaming disabled and returns the message of the
// first choice.
func (c *Client) SendOnce(ctx context.Context, req CompletionRequest) (Message, error) {
	stream := false
	req.Stream = &stream

	body, err := c.post(ctx, req)
	if err != nil {
		return Message{}, err
	}
	defer body.Close()

	var resp CompletionResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return Message{}, failure.Wrap(failure.Protocol, "decoding completion response", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, failure.New(failure.Protocol, "decoding completion response", "no choices in response")
	}
	return resp.Choices[0].Message, nil
}

// SendStream issues req with streaming enabled and returns the live fragment
// sequence. The caller must drain or Close the stream.
func (c *Client) SendStream(ctx context.Context, req CompletionRequest) (*Stream, error) {
	stream := true
	req.Stream = &stream

	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return newEventStream(body), nil
}

func (c *Client) post(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, failure.Wrap(failure.Protocol, "marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, failure.Wrap(failure.Transport, "creating request", err)
	}
	c.setHeaders(httpReq, req.Stream != nil && *req.Stream)

	c.logger.Debug("sending completion request",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"stream", req.Stream != nil && *req.Stream,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, failure.Wrap(failure.Transport, "executing request", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &failure.Error{
			Kind:   failure.Transport,
			Op:     "chat completion",
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	return resp.Body, nil
}

func (c *Client) setHeaders(req *http.Request, stream bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
}

// ListModels returns the model ids served by the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, failure.Wrap(failure.Transport, "creating request", err)
	}
	c.setHeaders(req, false)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.Transport, "requesting models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &failure.Error{Kind: failure.Transport, Op: "list models", Status: resp.StatusCode}
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, failure.Wrap(failure.Protocol, "decoding models", err)
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
