package acp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedPeer emulates the adapter subprocess side of the framing
// transport over a pair of in-process pipes, letting these tests drive
// Client without spawning a real child process.
type scriptedPeer struct {
	fromClient *bufio.Scanner
	toClient   io.Writer
}

func newScriptedClient(t *testing.T, handler RequestHandler, permissions PermissionResolver) (*Client, *scriptedPeer) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	waitCh := make(chan struct{})
	t.Cleanup(func() { close(waitCh) })

	c := &Client{
		handler:     handler,
		permissions: permissions,
		pending:     make(map[uint64]chan pendingSlot),
		bus:         newEventBus(),
	}
	c.transport = startTransport(stdinW, stdoutR, nil, func() error { <-waitCh; return nil }, func() {})
	c.transport.onResponse = c.handleResponse
	c.transport.onNotification = c.handleNotification
	c.transport.onRequest = c.handleRequest

	return c, &scriptedPeer{fromClient: bufio.NewScanner(stdinR), toClient: stdoutW}
}

func (p *scriptedPeer) nextRequest(t *testing.T) (id json.RawMessage, method string, params json.RawMessage) {
	t.Helper()
	require.True(t, p.fromClient.Scan(), "expected a line from the client")

	var msg struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	require.NoError(t, json.Unmarshal(p.fromClient.Bytes(), &msg))
	return msg.ID, msg.Method, msg.Params
}

func (p *scriptedPeer) reply(t *testing.T, id json.RawMessage, result interface{}) {
	t.Helper()
	line, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	})
	require.NoError(t, err)
	fmt.Fprintf(p.toClient, "%s\n", line)
}

func (p *scriptedPeer) notify(t *testing.T, method string, params interface{}) {
	t.Helper()
	line, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	fmt.Fprintf(p.toClient, "%s\n", line)
}

func TestInitializeHandshake(t *testing.T) {
	client, peer := newScriptedClient(t, nil, nil)

	done := make(chan error, 1)
	go func() { done <- client.Initialize() }()

	id, method, _ := peer.nextRequest(t)
	require.Equal(t, "initialize", method)
	peer.reply(t, id, map[string]interface{}{"protocolVersion": 1})

	require.NoError(t, <-done)
}

func TestInitializeProtocolMismatch(t *testing.T) {
	client, peer := newScriptedClient(t, nil, nil)

	done := make(chan error, 1)
	go func() { done <- client.Initialize() }()

	id, _, _ := peer.nextRequest(t)
	peer.reply(t, id, map[string]interface{}{"protocolVersion": 2})

	err := <-done
	require.Error(t, err)
	require.Contains(t, err.Error(), "protocol version mismatch")
}

func TestPromptStreamingDeliversChunksInOrder(t *testing.T) {
	client, peer := newScriptedClient(t, nil, nil)

	var seen []string
	done := make(chan PromptResponse, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := client.PromptStreaming("sess-1", "hi", func(ev AdapterEvent) {
			if ev.Kind == EventAgentMessageChunk {
				seen = append(seen, ev.Text)
			}
		})
		if err != nil {
			errCh <- err
			return
		}
		done <- resp
	}()

	id, method, _ := peer.nextRequest(t)
	require.Equal(t, "session/prompt", method)

	for _, chunk := range []string{"Hel", "lo", "!"} {
		peer.notify(t, "session/update", map[string]interface{}{
			"sessionId": "sess-1",
			"update": map[string]interface{}{
				"sessionUpdate": "agent_message_chunk",
				"content":       map[string]interface{}{"text": chunk},
			},
		})
	}
	peer.reply(t, id, map[string]interface{}{"stopReason": "end_turn"})

	select {
	case resp := <-done:
		require.Equal(t, "end_turn", resp.StopReason)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for prompt_streaming to return")
	}

	require.Equal(t, []string{"Hel", "lo", "!"}, seen)
}
