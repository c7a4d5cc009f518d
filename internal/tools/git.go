package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kalambet/ragent/internal/capability"
)

// GitCommand selects the git subcommand a GitTool runs.
type GitCommand string

const (
	GitDiff   GitCommand = "diff"
	GitStatus GitCommand = "status"
	GitLog    GitCommand = "log"
)

const defaultLogCount = 10

// GitTool runs a read-only git subcommand in the working directory.
type GitTool struct {
	command GitCommand
	opts    Options
}

func NewGitTool(command GitCommand, opts Options) *GitTool {
	return &GitTool{command: command, opts: opts}
}

func (t *GitTool) Name() string   { return "git_" + string(t.command) + "_tool" }
func (t *GitTool) Callback() bool { return true }

func (t *GitTool) Definition() json.RawMessage {
	switch t.command {
	case GitLog:
		return capability.Define(t.Name(), "Shows git log for the current repository, one commit per line",
			json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer","description":"Number of commits to show (default 10)"}},"required":[]}`))
	case GitDiff:
		return capability.Define(t.Name(), "Shows git diff for the current repository",
			json.RawMessage(`{"type":"object","properties":{"staged":{"type":"boolean","description":"Show staged changes instead of the working tree"}},"required":[]}`))
	default:
		return capability.Define(t.Name(), "Shows git status for the current repository", nil)
	}
}

func (t *GitTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Count  int  `json:"count"`
		Staged bool `json:"staged"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return invalidArgs(err), nil
	}

	gitArgs := []string{"--no-pager", string(t.command)}
	switch t.command {
	case GitLog:
		count := in.Count
		if count <= 0 {
			count = defaultLogCount
		}
		gitArgs = append(gitArgs, "--oneline", "-n", strconv.Itoa(count))
	case GitDiff:
		if in.Staged {
			gitArgs = append(gitArgs, "--staged")
		}
	case GitStatus:
		gitArgs = append(gitArgs, "--short", "--branch")
	}
	return runCommand(ctx, t.opts.Dir, t.opts.MaxOutput, "git", gitArgs...), nil
}
