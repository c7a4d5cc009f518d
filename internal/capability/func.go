package capability

import (
	"context"
	"encoding/json"
)

// emptyParameters is the schema of a capability without arguments.
var emptyParameters = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)

// Define builds a wire definition for a function capability. A nil
// parameters schema is replaced by an empty object schema.
func Define(name, description string, parameters json.RawMessage) json.RawMessage {
	if len(parameters) == 0 {
		parameters = emptyParameters
	}
	def, err := json.Marshal(map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters":  parameters,
		},
	})
	if err != nil {
		// Only reachable when parameters is not valid JSON; Definitions
		// skips the capability in that case.
		return nil
	}
	return def
}

// Func adapts a function into a Capability.
type Func struct {
	ToolName    string
	Description string
	Parameters  json.RawMessage
	// NoCallback makes the result the final answer of the run.
	NoCallback bool
	Fn         func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *Func) Name() string { return f.ToolName }

func (f *Func) Definition() json.RawMessage {
	return Define(f.ToolName, f.Description, f.Parameters)
}

func (f *Func) Callback() bool { return !f.NoCallback }

func (f *Func) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return f.Fn(ctx, args)
}
