// Package tools provides the default capabilities offered to the model:
// filesystem inspection, search, git, process listing, time and HTTP fetch.
//
// Every capability reports its own failures as a descriptive result string
// so the model can read them; Execute returns a non-nil error only when the
// run itself should stop.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/ragent/internal/capability"
)

const (
	defaultMaxOutput     = 64 * 1024
	defaultFetchCacheLen = 64
	defaultFetchRate     = 30
)

// Options configures the default capability set.
type Options struct {
	// Dir is the working directory for file and command capabilities.
	// Empty means the process working directory.
	Dir string
	// MaxOutput caps the bytes returned by a single capability.
	MaxOutput int
	// FetchRate is the number of HTTP fetches allowed per minute. Negative
	// disables the limit.
	FetchRate int
	// FetchCacheSize is the number of fetched pages kept in memory.
	FetchCacheSize int
	// HTTPClient is used by the fetch capability.
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.MaxOutput <= 0 {
		o.MaxOutput = defaultMaxOutput
	}
	if o.FetchRate == 0 {
		o.FetchRate = defaultFetchRate
	}
	if o.FetchCacheSize <= 0 {
		o.FetchCacheSize = defaultFetchCacheLen
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	return o
}

// Default returns a registry holding every built-in capability.
func Default(opts Options, regOpts ...capability.RegistryOption) (*capability.Registry, error) {
	opts = opts.withDefaults()

	fetch, err := NewFetchTool(opts)
	if err != nil {
		return nil, fmt.Errorf("creating fetch tool: %w", err)
	}

	r := capability.NewRegistry(regOpts...)
	r.Register(&ListTool{opts: opts})
	r.Register(&ReadFileTool{opts: opts})
	r.Register(&RipgrepTool{opts: opts})
	r.Register(&PwdTool{opts: opts})
	r.Register(NewGitTool(GitDiff, opts))
	r.Register(NewGitTool(GitStatus, opts))
	r.Register(NewGitTool(GitLog, opts))
	r.Register(&ProcessListTool{opts: opts})
	r.Register(&TimeTool{})
	r.Register(fetch)
	return r, nil
}

// decodeArgs unmarshals args into v. A missing or null document leaves v
// untouched.
func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

func invalidArgs(err error) string {
	return "invalid arguments: " + err.Error()
}

// resolvePath makes p absolute relative to dir.
func resolvePath(dir, p string) string {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}

// runCommand executes name with args in dir and returns its stdout. Failures
// are folded into the returned string.
func runCommand(ctx context.Context, dir string, maxOutput int, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Sprintf("failed to execute %s: %v", name, err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Sprintf("%s failed: %s", name, truncate(msg, maxOutput))
		}
		return fmt.Sprintf("%s failed: %v", name, err)
	}

	if stdout.Len() == 0 {
		return "(no output)"
	}
	return truncate(stdout.String(), maxOutput)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return truncated(s, max, int64(len(s)))
}

// truncated keeps the first max bytes of s, backing off to a rune boundary,
// and notes the full size.
func truncated(s string, max int, total int64) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... (truncated, %d bytes total)", total)
}
