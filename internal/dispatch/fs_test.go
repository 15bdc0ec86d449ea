package dispatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadTextFileLineWindow(t *testing.T) {
	h := NewHost(false)

	dir := t.TempDir()
	path := filepath.Join(dir, "letters.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\ne"), 0644))

	line, limit := 2, 2
	params, err := json.Marshal(readTextFileRequest{Path: path, Line: &line, Limit: &limit})
	require.NoError(t, err)

	result, err := h.readTextFile(params)
	require.NoError(t, err)

	var resp struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(result, &resp))
	require.Equal(t, "b\nc", resp.Content)
}

func TestWriteTextFileCreatesParentDirectories(t *testing.T) {
	h := NewHost(false)

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "new", "file")

	params, err := json.Marshal(writeTextFileRequest{Path: path, Content: "hello"})
	require.NoError(t, err)

	_, err = h.writeTextFile(params)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}
