// Package llm holds the OpenAI-compatible chat-completion wire model and the
// HTTP client that speaks it.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one block of multipart content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart returns a text block.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart returns an image block pointing at url.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

// FunctionCall is the function descriptor of a ToolCall. Arguments is a JSON
// document encoded as a string, exactly as the model produced it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a capability invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is one conversation entry.
//
// Content and Parts share the wire field "content" and are mutually
// exclusive: when Parts is non-empty it is sent and Content is ignored.
type Message struct {
	Role       Role
	Content    string
	Parts      []ContentPart
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

type wireMessage struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Role:       m.Role,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	var (
		content []byte
		err     error
	)
	if len(m.Parts) > 0 {
		content, err = json.Marshal(m.Parts)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	w.Content = content
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		Role:       w.Role,
		ToolCalls:  w.ToolCalls,
		ToolCallID: w.ToolCallID,
		Name:       w.Name,
	}

	raw := bytes.TrimSpace(w.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, &m.Content)
	case '[':
		return json.Unmarshal(raw, &m.Parts)
	default:
		return fmt.Errorf("message content must be a string or an array, got %s", raw)
	}
}

// Text returns the string content, or the concatenated text blocks when the
// message is multipart.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// SystemMessage returns a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage returns a user-role message with string content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// UserParts returns a user-role message with multipart content.
func UserParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// AssistantMessage returns an assistant turn, optionally carrying tool calls.
func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolResultMessage returns a tool-role message reporting the result of the
// call identified by callID.
func ToolResultMessage(callID, name, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: callID, Name: name}
}

// FunctionDefinition describes a capability to the model.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolDefinition is the wire form of a capability definition.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// CompletionRequest is the body of POST /chat/completions.
type CompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float32          `json:"temperature"`
	TopP        *float32         `json:"top_p,omitempty"`
	Stream      *bool            `json:"stream,omitempty"`
}

// Choice is one entry of a non-streaming response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// CompletionResponse is a non-streaming response body.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Delta is the incremental message carried by one streaming frame.
type Delta struct {
	Role    Role    `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// StreamChoice is one entry of a streaming frame.
type StreamChoice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// StreamChunk is the JSON payload of one SSE data frame.
type StreamChunk struct {
	ID      string         `json:"id"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// ModelList is the response of GET /models.
type ModelList struct {
	Object string `json:"object"`
	Data   []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by,omitempty"`
	} `json:"data"`
}
