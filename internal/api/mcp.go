package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ragent/internal/capability"
	"github.com/kalambet/ragent/internal/runner"
	"github.com/kalambet/ragent/internal/storage"
)

// RunLog lists recorded runs.
type RunLog interface {
	RecentRuns(limit int) ([]storage.Run, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Runner  *runner.Runner
	Tools   *capability.Registry
	Runs    RunLog // optional; if nil, the runs://recent resource is not registered
	Version string
}

// NewMCPServer creates an MCP server exposing every registered capability,
// plus an ask tool that runs the agent on a single prompt.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"ragent",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ragent: a local tool-using agent. Call its tools directly or delegate a task with ask."),
		server.WithRecovery(),
	)

	if deps.Tools != nil {
		for _, def := range deps.Tools.Definitions() {
			fn := def.Function
			s.AddTool(
				mcp.NewToolWithRawSchema(fn.Name, fn.Description, fn.Parameters),
				mcpCapability(deps.Tools, fn.Name),
			)
		}
	}

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Run the agent on a task. The agent may call its local tools before answering."),
			mcp.WithString("prompt", mcp.Description("The task to perform"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional context prepended to the task")),
			mcp.WithString("session", mcp.Description("Optional session name to continue a conversation")),
		),
		mcpAsk(deps),
	)

	if deps.Runs != nil {
		s.AddResource(
			mcp.NewResource(
				"runs://recent",
				"Recent Runs",
				mcp.WithResourceDescription("Last 10 agent runs (prompts truncated)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(deps),
		)
	}

	return s
}

func mcpCapability(reg *capability.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		out, err := reg.Execute(ctx, name, args)
		if err != nil {
			return mcpError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return mcpText(out), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Runner == nil {
			return mcpError("agent not available"), nil
		}
		prompt, err := req.RequireString("prompt")
		if err != nil || prompt == "" {
			return mcpError("prompt is required"), nil
		}

		out, err := deps.Runner.Run(ctx, runner.Task{
			Prompt:  prompt,
			Context: req.GetString("context", ""),
			Session: req.GetString("session", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("agent run failed: %v", err)), nil
		}
		return mcpText(out.Text), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := deps.Runs.RecentRuns(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent runs: %w", err)
		}

		type runSummary struct {
			ID         string `json:"id"`
			CreatedAt  string `json:"created_at"`
			Model      string `json:"model"`
			Prompt     string `json:"prompt"`
			Ending     string `json:"ending,omitempty"`
			Iterations int    `json:"iterations"`
			Error      string `json:"error,omitempty"`
		}

		summaries := make([]runSummary, len(runs))
		for i, r := range runs {
			prompt := r.Prompt
			if utf8.RuneCountInString(prompt) > 200 {
				runes := []rune(prompt)
				prompt = string(runes[:200]) + "..."
			}
			summaries[i] = runSummary{
				ID:         r.ID,
				CreatedAt:  r.CreatedAt.Format(time.RFC3339),
				Model:      r.Model,
				Prompt:     prompt,
				Ending:     r.Ending,
				Iterations: r.Iterations,
				Error:      r.Error,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal runs: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
