package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/ragent/internal/failure"
	"github.com/kalambet/ragent/internal/llm"
)

// request builds a completion request for history. The system prompt is
// always prepended, even when history already starts with a system message.
func (a *Agent) request(history []llm.Message, stream bool) llm.CompletionRequest {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.SystemMessage(a.systemPrompt))
	messages = append(messages, history...)

	topP := a.topP
	req := llm.CompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
		TopP:        &topP,
		Stream:      &stream,
	}
	if a.tools != nil {
		req.Tools = a.tools.Definitions()
	}
	return req
}

// Prompt sends one non-streaming request and returns the assistant text and
// the tool calls it carries. A nil slice means the response had no
// tool_calls field.
func (a *Agent) Prompt(ctx context.Context, history []llm.Message) (string, []llm.ToolCall, error) {
	msg, err := a.client.SendOnce(ctx, a.request(history, false))
	if err != nil {
		return "", nil, err
	}
	return msg.Text(), msg.ToolCalls, nil
}

// PromptStream sends one streaming request and returns the live fragment
// stream. The caller must drain or close it.
func (a *Agent) PromptStream(ctx context.Context, history []llm.Message) (*llm.Stream, error) {
	return a.client.SendStream(ctx, a.request(history, true))
}

// Ending tells how a tool loop terminated.
type Ending int

const (
	// Answered means the model replied without requesting tools.
	Answered Ending = iota
	// ShortCircuited means a capability without callback produced the answer.
	ShortCircuited
	// Drained means a batch of tool calls ran without any callback result.
	Drained
)

func (e Ending) String() string {
	switch e {
	case Answered:
		return "answered"
	case ShortCircuited:
		return "short-circuited"
	case Drained:
		return "drained"
	default:
		return fmt.Sprintf("Ending(%d)", int(e))
	}
}

// Result is the outcome of a tool loop.
type Result struct {
	Text string
	// History is the transcript the loop worked on, excluding the system
	// prompt. It starts with the caller's history.
	History    []llm.Message
	Iterations int
	Ending     Ending
}

// Run resolves tool calls until the model produces a final answer. The
// caller's history slice is never modified.
func (a *Agent) Run(ctx context.Context, history []llm.Message) (Result, error) {
	if a.tools == nil {
		return Result{}, failure.New(failure.Configuration, "tool loop", "agent has no capability registry")
	}

	h := make([]llm.Message, len(history), len(history)+8)
	copy(h, history)

	for i := 1; i <= a.maxIterations; i++ {
		text, calls, err := a.Prompt(ctx, h)
		if err != nil {
			return Result{}, err
		}
		if calls == nil {
			a.logger.DebugContext(ctx, "tool loop answered", "iteration", i)
			return Result{Text: text, History: h, Iterations: i, Ending: Answered}, nil
		}

		h = append(h, llm.AssistantMessage(text, calls))

		called := false
		for _, call := range calls {
			name := call.Function.Name
			callback, err := a.tools.CallbackPolicy(name)
			if err != nil {
				return Result{}, failure.Wrap(failure.Capability, "resolve tool call", err)
			}

			var args json.RawMessage
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return Result{}, failure.Wrap(failure.Capability, "resolve tool call",
					fmt.Errorf("parsing arguments for %q: %w", name, err))
			}

			result, err := a.tools.Execute(ctx, name, args)
			if err != nil {
				return Result{}, failure.Wrap(failure.Capability, "execute "+name, err)
			}

			h = append(h, llm.ToolResultMessage(call.ID, name, result))
			if !callback {
				a.logger.DebugContext(ctx, "tool loop short-circuited", "iteration", i, "tool", name)
				return Result{Text: result, History: h, Iterations: i, Ending: ShortCircuited}, nil
			}
			called = true
		}

		if !called {
			a.logger.DebugContext(ctx, "tool loop drained", "iteration", i)
			return Result{Text: text, History: h, Iterations: i, Ending: Drained}, nil
		}
	}

	return Result{}, failure.New(failure.IterationLimit, "tool loop", "max iterations (%d) reached", a.maxIterations)
}

// PromptWithTools runs the tool loop and returns only the final text.
func (a *Agent) PromptWithTools(ctx context.Context, history []llm.Message) (string, error) {
	res, err := a.Run(ctx, history)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// PromptWithToolsStream runs the tool loop without streaming and streams only
// the final answer. When the model answered without tools the request is sent
// again through PromptStream; otherwise the already known text is returned as
// a one-item stream.
func (a *Agent) PromptWithToolsStream(ctx context.Context, history []llm.Message) (*llm.Stream, error) {
	_, stream, err := a.RunStream(ctx, history)
	return stream, err
}

// RunStream is PromptWithToolsStream that also reports the loop result.
// Result.Text is empty when the answer is re-issued as a live stream.
func (a *Agent) RunStream(ctx context.Context, history []llm.Message) (Result, *llm.Stream, error) {
	res, err := a.Run(ctx, history)
	if err != nil {
		return Result{}, nil, err
	}
	if res.Ending != Answered {
		return res, llm.StaticStream(res.Text), nil
	}
	stream, err := a.PromptStream(ctx, res.History)
	if err != nil {
		return Result{}, nil, err
	}
	res.Text = ""
	return res, stream, nil
}
