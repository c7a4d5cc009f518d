package runner

import "github.com/kalambet/ragent/internal/llm"

// Speaker labels a line of a transcript.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// MappedMessage is the text-only view of a message shown to people.
type MappedMessage struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript reduces history to user and agent text. Tool traffic, system
// prompts and assistant turns that only requested tools are left out.
func Transcript(history []llm.Message) []MappedMessage {
	out := make([]MappedMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case llm.RoleUser:
			out = append(out, MappedMessage{Speaker: SpeakerUser, Text: m.Text()})
		case llm.RoleAssistant:
			if len(m.ToolCalls) > 0 && m.Text() == "" {
				continue
			}
			out = append(out, MappedMessage{Speaker: SpeakerAgent, Text: m.Text()})
		}
	}
	return out
}
