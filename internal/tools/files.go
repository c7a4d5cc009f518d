package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/ragent/internal/capability"
)

// ListTool lists the entries of a directory.
type ListTool struct {
	opts Options
}

func (t *ListTool) Name() string   { return "list_tool" }
func (t *ListTool) Callback() bool { return true }

func (t *ListTool) Definition() json.RawMessage {
	return capability.Define(t.Name(),
		"Lists files and directories in the specified path (defaults to current directory). Returns a formatted list showing names and whether each entry is a file or directory.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The directory path to list (optional, defaults to current directory)"}},"required":[]}`))
}

func (t *ListTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return invalidArgs(err), nil
	}

	dir := resolvePath(t.opts.Dir, in.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("failed to list %s: %v", dir, err), nil
	}
	if len(entries) == 0 {
		return fmt.Sprintf("%s is empty", dir), nil
	}

	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&sb, "dir   %s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&sb, "file  %s\n", e.Name())
			continue
		}
		fmt.Fprintf(&sb, "file  %s (%d bytes)\n", e.Name(), info.Size())
	}
	return truncate(sb.String(), t.opts.MaxOutput), nil
}

// ReadFileTool returns the contents of a text file, or the extracted text of
// a PDF document.
type ReadFileTool struct {
	opts Options
}

func (t *ReadFileTool) Name() string   { return "read_file_tool" }
func (t *ReadFileTool) Callback() bool { return true }

func (t *ReadFileTool) Definition() json.RawMessage {
	return capability.Define(t.Name(),
		"Reads and returns the complete contents of a text file. Use this to examine source code, configuration files, documentation, or any text-based file. PDF files are returned as extracted text.",
		json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Path to the file to read (relative or absolute)"}},"required":["path"]}`))
}

func (t *ReadFileTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return invalidArgs(err), nil
	}
	if in.Path == "" {
		return "path is required", nil
	}

	path := resolvePath(t.opts.Dir, in.Path)
	if isPDF(path) {
		text, err := readPDF(path, t.opts.MaxOutput)
		if err != nil {
			return fmt.Sprintf("failed to read PDF %s: %v", path, err), nil
		}
		return text, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("failed to read %s: %v", path, err), nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Sprintf("failed to read %s: %v", path, err), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("%s is a directory, use list_tool instead", path), nil
	}

	data, err := io.ReadAll(io.LimitReader(f, int64(t.opts.MaxOutput)+1))
	if err != nil {
		return fmt.Sprintf("failed to read %s: %v", path, err), nil
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return fmt.Sprintf("%s looks like a binary file (%d bytes)", path, info.Size()), nil
	}
	if len(data) > t.opts.MaxOutput {
		return truncated(string(data), t.opts.MaxOutput, info.Size()), nil
	}
	return string(data), nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func readPDF(path string, maxOutput int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(text, int64(maxOutput)+1)); err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	if buf.Len() == 0 {
		return "(no extractable text)", nil
	}
	return truncate(buf.String(), maxOutput), nil
}
