package llm

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestMessage_MarshalStringContent(t *testing.T) {
	b, err := json.Marshal(UserMessage("Hello, world!"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	if !strings.Contains(got, `"content":"Hello, world!"`) {
		t.Errorf("json = %s, want string content", got)
	}
	if strings.Count(got, `"content"`) != 1 {
		t.Errorf("json = %s, want exactly one content field", got)
	}
}

func TestMessage_MarshalPartsWinOverString(t *testing.T) {
	m := Message{
		Role:    RoleUser,
		Content: "ignored",
		Parts:   []ContentPart{TextPart("Describe this image")},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	if strings.Count(got, `"content"`) != 1 {
		t.Fatalf("json = %s, want exactly one content field", got)
	}
	if strings.Contains(got, "ignored") {
		t.Errorf("json = %s, string content leaked next to parts", got)
	}
	if !strings.Contains(got, `"type":"text"`) || !strings.Contains(got, `"text":"Describe this image"`) {
		t.Errorf("json = %s, want text block", got)
	}
}

func TestMessage_MarshalImagePart(t *testing.T) {
	b, err := json.Marshal(UserParts(ImagePart("data:image/png;base64,iVBORw0KG...")))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	if !strings.Contains(got, `"type":"image_url"`) {
		t.Errorf("json = %s, want image_url type", got)
	}
	if !strings.Contains(got, `"url":"data:image/png;base64,iVBORw0KG..."`) {
		t.Errorf("json = %s, want image url", got)
	}
	if strings.Contains(got, `"text"`) {
		t.Errorf("json = %s, image block should omit text", got)
	}
}

func TestMessage_UnmarshalStringContent(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":"x"}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", m.Role, RoleAssistant)
	}
	if m.Content != "x" {
		t.Errorf("Content = %q, want %q", m.Content, "x")
	}
	if len(m.Parts) != 0 {
		t.Errorf("Parts = %v, want empty", m.Parts)
	}
}

func TestMessage_MultipartRoundTrip(t *testing.T) {
	in := `{"role":"user","content":[{"type":"text","text":"what is this?"},{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]}`

	var m Message
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Content != "" {
		t.Errorf("Content = %q, want empty", m.Content)
	}
	want := []ContentPart{TextPart("what is this?"), ImagePart("https://example.com/a.png")}
	if !reflect.DeepEqual(m.Parts, want) {
		t.Fatalf("Parts = %+v, want %+v", m.Parts, want)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestMessage_UnmarshalNullContentWithToolCalls(t *testing.T) {
	in := `{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"msg\":\"hi\"}"}}]}`

	var m Message
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Content != "" || len(m.Parts) != 0 {
		t.Errorf("content = %q / %v, want none", m.Content, m.Parts)
	}
	if len(m.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(m.ToolCalls))
	}
	call := m.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "echo" || call.Function.Arguments != `{"msg":"hi"}` {
		t.Errorf("ToolCall = %+v", call)
	}
}

func TestMessage_UnmarshalRejectsObjectContent(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":{"a":1}}`), &m); err == nil {
		t.Fatal("expected error for object content")
	}
}

func TestMessage_ToolResultFields(t *testing.T) {
	b, err := json.Marshal(ToolResultMessage("call_9", "echo", "hi"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"role":"tool","content":"hi","tool_call_id":"call_9","name":"echo"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestMessage_Text(t *testing.T) {
	m := UserParts(TextPart("a"), ImagePart("u"), TextPart("b"))
	if got := m.Text(); got != "ab" {
		t.Errorf("Text() = %q, want %q", got, "ab")
	}
	if got := UserMessage("plain").Text(); got != "plain" {
		t.Errorf("Text() = %q, want %q", got, "plain")
	}
}

func TestCompletionRequest_OptionalFields(t *testing.T) {
	b, err := json.Marshal(CompletionRequest{
		Model:       "m",
		Messages:    []Message{UserMessage("hi")},
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	for _, field := range []string{`"tools"`, `"top_p"`, `"stream"`} {
		if strings.Contains(got, field) {
			t.Errorf("json = %s, unexpected %s", got, field)
		}
	}
	if !strings.Contains(got, `"temperature":0.5`) {
		t.Errorf("json = %s, want temperature", got)
	}
}
