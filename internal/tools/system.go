package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/kalambet/ragent/internal/capability"
)

// RipgrepTool searches file contents with rg.
type RipgrepTool struct {
	opts Options
}

func (t *RipgrepTool) Name() string   { return "ripgrep_tool" }
func (t *RipgrepTool) Callback() bool { return true }

func (t *RipgrepTool) Definition() json.RawMessage {
	return capability.Define(t.Name(), "Search text using ripgrep",
		json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string","description":"Text or regex to search for"},"path":{"type":"string","description":"Optional path to search in"}},"required":["pattern"]}`))
}

func (t *RipgrepTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return invalidArgs(err), nil
	}
	if in.Pattern == "" {
		return "pattern is required", nil
	}

	rgArgs := []string{"--line-number", "--no-heading", "--color", "never", "-e", in.Pattern}
	if in.Path != "" {
		rgArgs = append(rgArgs, "--", in.Path)
	}
	out := runCommand(ctx, t.opts.Dir, t.opts.MaxOutput, "rg", rgArgs...)
	// rg exits 1 without stderr when nothing matched.
	if out == "rg failed: exit status 1" {
		return fmt.Sprintf("no matches for %q", in.Pattern), nil
	}
	return out, nil
}

// PwdTool reports the working directory.
type PwdTool struct {
	opts Options
}

func (t *PwdTool) Name() string   { return "print_working_directory_tool" }
func (t *PwdTool) Callback() bool { return true }

func (t *PwdTool) Definition() json.RawMessage {
	return capability.Define(t.Name(), "Prints the current working directory", nil)
}

func (t *PwdTool) Execute(context.Context, json.RawMessage) (string, error) {
	if t.opts.Dir != "" {
		return t.opts.Dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("failed to get working directory: %v", err), nil
	}
	return wd, nil
}

// ProcessListTool lists running processes.
type ProcessListTool struct {
	opts Options
}

func (t *ProcessListTool) Name() string   { return "process_list_tool" }
func (t *ProcessListTool) Callback() bool { return true }

func (t *ProcessListTool) Definition() json.RawMessage {
	return capability.Define(t.Name(), "Lists running processes on the system", nil)
}

func (t *ProcessListTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	if runtime.GOOS == "windows" {
		return runCommand(ctx, t.opts.Dir, t.opts.MaxOutput, "tasklist"), nil
	}
	return runCommand(ctx, t.opts.Dir, t.opts.MaxOutput, "ps", "aux"), nil
}

// TimeTool reports the local system time.
type TimeTool struct {
	now func() time.Time
}

func (t *TimeTool) Name() string   { return "get_time_tool" }
func (t *TimeTool) Callback() bool { return true }

func (t *TimeTool) Definition() json.RawMessage {
	return capability.Define(t.Name(), "Returns the current system time in a human-readable format.", nil)
}

func (t *TimeTool) Execute(context.Context, json.RawMessage) (string, error) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	return "Current system time is: " + now().Format(time.RFC1123Z), nil
}
