package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/stretchr/testify/require"
)

func TestInteractivePermissionGranted(t *testing.T) {
	h := NewHost(true)

	var events []acp.AdapterEvent
	emit := func(ev acp.AdapterEvent) { events = append(events, ev) }

	params, err := json.Marshal(map[string]interface{}{
		"sessionId": "sess-1",
		"toolCall":  map[string]string{"title": "run tests"},
		"options": []permissionOption{
			{OptionID: "a", Kind: "allow_once"},
			{OptionID: "r", Kind: "reject_once"},
		},
	})
	require.NoError(t, err)

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := h.requestPermission(params, emit)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	require.Eventually(t, func() bool { return len(events) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, acp.EventPermissionRequest, events[0].Kind)

	require.True(t, h.Permissions.Resolve(events[0].PermissionID, true))

	select {
	case result := <-resultCh:
		var outcome struct {
			Outcome struct {
				Outcome  string `json:"outcome"`
				OptionID string `json:"optionId"`
			} `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal(result, &outcome))
		require.Equal(t, "selected", outcome.Outcome.Outcome)
		require.Equal(t, "a", outcome.Outcome.OptionID)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for permission outcome")
	}
}

func TestInteractivePermissionDenied(t *testing.T) {
	h := NewHost(true)

	var events []acp.AdapterEvent
	emit := func(ev acp.AdapterEvent) { events = append(events, ev) }

	params, err := json.Marshal(map[string]interface{}{
		"sessionId": "sess-1",
		"options": []permissionOption{
			{OptionID: "a", Kind: "allow_once"},
			{OptionID: "r", Kind: "reject_once"},
		},
	})
	require.NoError(t, err)

	resultCh := make(chan json.RawMessage, 1)
	go func() {
		result, _ := h.requestPermission(params, emit)
		resultCh <- result
	}()

	require.Eventually(t, func() bool { return len(events) == 1 }, time.Second, time.Millisecond)
	require.True(t, h.Permissions.Resolve(events[0].PermissionID, false))

	result := <-resultCh
	var outcome struct {
		Outcome struct {
			Outcome  string `json:"outcome"`
			OptionID string `json:"optionId"`
		} `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(result, &outcome))
	require.Equal(t, "r", outcome.Outcome.OptionID)
}

func TestNonInteractivePermissionFallsBackToFirstOption(t *testing.T) {
	h := NewHost(false)

	params, err := json.Marshal(map[string]interface{}{
		"sessionId": "sess-1",
		"options": []permissionOption{
			{OptionID: "x", Kind: "reject_once"},
		},
	})
	require.NoError(t, err)

	result, err := h.requestPermission(params, func(acp.AdapterEvent) {})
	require.NoError(t, err)

	var outcome struct {
		Outcome struct {
			Outcome  string `json:"outcome"`
			OptionID string `json:"optionId"`
		} `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(result, &outcome))
	require.Equal(t, "selected", outcome.Outcome.Outcome)
	require.Equal(t, "x", outcome.Outcome.OptionID)
}

func TestUnsupportedMethodReturnsRPCError(t *testing.T) {
	h := NewHost(false)

	_, rpcErr := h.Handle("session/cancel", json.RawMessage(`{}`), func(acp.AdapterEvent) {})
	require.NotNil(t, rpcErr)
	require.Equal(t, -32000, rpcErr.Code)
}
