package terminal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminalLifecycle(t *testing.T) {
	m := NewManager()

	createParams, err := json.Marshal(map[string]interface{}{
		"command": "/bin/sh",
		"args":    []string{"-c", "printf hi; exit 3"},
	})
	require.NoError(t, err)

	createResult, err := m.Create(createParams)
	require.NoError(t, err)

	var created struct {
		TerminalID string `json:"terminalId"`
	}
	require.NoError(t, json.Unmarshal(createResult, &created))

	idParams, err := json.Marshal(map[string]string{"terminalId": created.TerminalID})
	require.NoError(t, err)

	require.NoError(t, waitUntil(t, func() bool {
		out, err := m.Output(idParams)
		require.NoError(t, err)
		var parsed struct {
			Output     string      `json:"output"`
			Truncated  bool        `json:"truncated"`
			ExitStatus *ExitStatus `json:"exitStatus"`
		}
		require.NoError(t, json.Unmarshal(out, &parsed))
		if parsed.ExitStatus == nil {
			return false
		}
		require.Equal(t, "hi", parsed.Output)
		require.False(t, parsed.Truncated)
		require.NotNil(t, parsed.ExitStatus.ExitCode)
		require.Equal(t, 3, *parsed.ExitStatus.ExitCode)
		require.Nil(t, parsed.ExitStatus.Signal)
		return true
	}))

	_, err = m.Release(idParams)
	require.NoError(t, err)

	_, err = m.Output(idParams)
	require.Error(t, err)
	require.Contains(t, err.Error(), "terminal not found")
}

func TestTerminalOutputTruncation(t *testing.T) {
	m := NewManager()

	createParams, err := json.Marshal(map[string]interface{}{
		"command":         "/bin/sh",
		"args":            []string{"-c", "printf ABCDEFGHIJ"},
		"outputByteLimit": 8,
	})
	require.NoError(t, err)

	createResult, err := m.Create(createParams)
	require.NoError(t, err)

	var created struct {
		TerminalID string `json:"terminalId"`
	}
	require.NoError(t, json.Unmarshal(createResult, &created))

	idParams, err := json.Marshal(map[string]string{"terminalId": created.TerminalID})
	require.NoError(t, err)

	require.NoError(t, waitUntil(t, func() bool {
		out, err := m.Output(idParams)
		require.NoError(t, err)
		var parsed struct {
			Output    string `json:"output"`
			Truncated bool   `json:"truncated"`
		}
		require.NoError(t, json.Unmarshal(out, &parsed))
		if !parsed.Truncated {
			return false
		}
		require.Equal(t, "CDEFGHIJ", parsed.Output)
		return true
	}))
}

func waitUntil(t *testing.T, check func() bool) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
	return nil
}
