package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type readTextFileRequest struct {
	Path  string `json:"path"`
	Line  *int   `json:"line"`
	Limit *int   `json:"limit"`
}

// readTextFile returns a whole file, or a 1-based line-window slice of
// it rejoined without a trailing newline.
func (h *Host) readTextFile(params json.RawMessage) (json.RawMessage, error) {
	var req readTextFileRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid read request: %w", err)
	}

	content, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", req.Path, err)
	}

	if req.Line == nil && req.Limit == nil {
		return json.Marshal(map[string]string{"content": string(content)})
	}

	start := 0
	if req.Line != nil {
		start = *req.Line - 1
		if start < 0 {
			start = 0
		}
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if req.Limit != nil {
		if limEnd := start + *req.Limit; limEnd < end {
			end = limEnd
		}
	}

	sliced := strings.Join(lines[start:end], "\n")
	return json.Marshal(map[string]string{"content": sliced})
}

type writeTextFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// writeTextFile creates the parent directory tree if needed and writes
// content verbatim, truncating any prior file.
func (h *Host) writeTextFile(params json.RawMessage) (json.RawMessage, error) {
	var req writeTextFileRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid write request: %w", err)
	}

	if dir := filepath.Dir(req.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create parent directories for %s: %w", req.Path, err)
		}
	}

	if err := os.WriteFile(req.Path, []byte(req.Content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", req.Path, err)
	}

	return json.Marshal(map[string]interface{}{})
}
