// Package agent runs conversations against an OpenAI-compatible completion
// endpoint and resolves the capability calls the model asks for.
package agent

import (
	"context"
	"log/slog"

	"github.com/kalambet/ragent/internal/capability"
	"github.com/kalambet/ragent/internal/failure"
	"github.com/kalambet/ragent/internal/llm"
)

const (
	DefaultBaseURL       = "http://localhost:1234/v1"
	DefaultAPIKey        = "local"
	DefaultSystemPrompt  = "You are a helpful assistant.\n Strict follow user instructions"
	DefaultTemperature   = float32(0.7)
	DefaultTopP          = float32(0.9)
	DefaultMaxIterations = 15
)

// Completer sends completion requests. *llm.Client implements it.
type Completer interface {
	SendOnce(ctx context.Context, req llm.CompletionRequest) (llm.Message, error)
	SendStream(ctx context.Context, req llm.CompletionRequest) (*llm.Stream, error)
}

// Agent is an immutable model configuration. It is safe for concurrent runs
// as long as the capabilities in its registry are.
type Agent struct {
	model         string
	baseURL       string
	apiKey        string
	systemPrompt  string
	temperature   float32
	topP          float32
	maxIterations int
	tools         *capability.Registry

	client   Completer
	injected Completer
	logger   *slog.Logger
}

func (a *Agent) Model() string               { return a.model }
func (a *Agent) BaseURL() string             { return a.baseURL }
func (a *Agent) SystemPrompt() string        { return a.systemPrompt }
func (a *Agent) Temperature() float32        { return a.temperature }
func (a *Agent) TopP() float32               { return a.topP }
func (a *Agent) MaxIterations() int          { return a.maxIterations }
func (a *Agent) Tools() *capability.Registry { return a.tools }

// Builder assembles an Agent. The zero value is not usable; call NewBuilder.
type Builder struct {
	model         string
	baseURL       string
	apiKey        string
	systemPrompt  string
	temperature   float32
	topP          float32
	maxIterations int
	tools         *capability.Registry
	client        Completer
	logger        *slog.Logger
}

// NewBuilder returns a builder with every optional field at its default.
func NewBuilder() *Builder {
	return &Builder{
		baseURL:       DefaultBaseURL,
		apiKey:        DefaultAPIKey,
		systemPrompt:  DefaultSystemPrompt,
		temperature:   DefaultTemperature,
		topP:          DefaultTopP,
		maxIterations: DefaultMaxIterations,
	}
}

// FromAgent returns a builder preloaded with a's configuration.
func FromAgent(a *Agent) *Builder {
	return &Builder{
		model:         a.model,
		baseURL:       a.baseURL,
		apiKey:        a.apiKey,
		systemPrompt:  a.systemPrompt,
		temperature:   a.temperature,
		topP:          a.topP,
		maxIterations: a.maxIterations,
		tools:         a.tools,
		client:        a.injected,
		logger:        a.logger,
	}
}

func (b *Builder) Model(model string) *Builder {
	b.model = model
	return b
}

func (b *Builder) BaseURL(url string) *Builder {
	b.baseURL = url
	return b
}

func (b *Builder) APIKey(key string) *Builder {
	b.apiKey = key
	return b
}

func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

func (b *Builder) Temperature(t float32) *Builder {
	b.temperature = t
	return b
}

func (b *Builder) TopP(p float32) *Builder {
	b.topP = p
	return b
}

// Tools attaches a shared capability registry. It must not be modified after
// the agent is built.
func (b *Builder) Tools(r *capability.Registry) *Builder {
	b.tools = r
	return b
}

// MaxIterations bounds the number of model queries in a tool loop.
func (b *Builder) MaxIterations(n int) *Builder {
	b.maxIterations = n
	return b
}

// Client replaces the HTTP client built from BaseURL and APIKey.
func (b *Builder) Client(c Completer) *Builder {
	b.client = c
	return b
}

func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and returns the agent.
func (b *Builder) Build() (*Agent, error) {
	if b.model == "" {
		return nil, failure.New(failure.Configuration, "build agent", "model is required")
	}
	if b.maxIterations < 1 {
		return nil, failure.New(failure.Configuration, "build agent", "max iterations must be positive, got %d", b.maxIterations)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		model:         b.model,
		baseURL:       b.baseURL,
		apiKey:        b.apiKey,
		systemPrompt:  b.systemPrompt,
		temperature:   b.temperature,
		topP:          b.topP,
		maxIterations: b.maxIterations,
		tools:         b.tools,
		injected:      b.client,
		logger:        logger,
	}
	a.client = b.client
	if a.client == nil {
		a.client = llm.NewClient(b.baseURL, b.apiKey, llm.WithLogger(logger))
	}
	return a, nil
}
