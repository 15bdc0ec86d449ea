package acp

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Config describes how to launch and address an adapter subprocess.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
}

type pendingSlot struct {
	result json.RawMessage
	err    error
}

// Client is the public surface of the adapter protocol: connect,
// initialize, new_session, prompt_streaming, respond_permission. It
// owns the request id counter, the pending-response table, and the
// event broadcast; everything else lives in transport.go (framing) and
// eventbus.go (fan-out).
type Client struct {
	transport   *transport
	handler     RequestHandler
	permissions PermissionResolver

	nextID uint64

	mu      sync.Mutex
	pending map[uint64]chan pendingSlot

	bus *eventBus
}

// Connect spawns the adapter command with ANTHROPIC_API_KEY (and any
// extra Env) set, pipes its three standard streams, and starts the
// framing transport. The child keeps running until it exits on its own
// or Close kills it.
func Connect(cfg Config, apiKey string, handler RequestHandler, permissions PermissionResolver) (*Client, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = os.Environ()
	if apiKey != "" {
		cmd.Env = append(cmd.Env, "ANTHROPIC_API_KEY="+apiKey)
	}
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to capture adapter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to capture adapter stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to capture adapter stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn adapter command %s %v: %w", cfg.Command, cfg.Args, err)
	}

	c := &Client{
		handler:     handler,
		permissions: permissions,
		pending:     make(map[uint64]chan pendingSlot),
		bus:         newEventBus(),
	}

	kill := func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
	c.transport = startTransport(stdin, stdout, stderr, cmd.Wait, kill)
	c.transport.onResponse = c.handleResponse
	c.transport.onNotification = c.handleNotification
	c.transport.onRequest = c.handleRequest

	return c, nil
}

// Close kills the adapter subprocess, matching the kill-on-drop
// semantics of the child's lifetime being exclusively owned by this client.
func (c *Client) Close() {
	c.transport.kill()
}

func (c *Client) request(method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddUint64(&c.nextID, 1)

	ch := make(chan pendingSlot, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(struct {
		JSONRPC string      `json:"jsonrpc"`
		ID      uint64      `json:"id"`
		Method  string      `json:"method"`
		Params  interface{} `json:"params"`
	}{"2.0", id, method, params})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	c.transport.send(payload)

	select {
	case slot := <-ch:
		return slot.result, slot.err
	case <-c.transport.closed:
		select {
		case slot := <-ch:
			return slot.result, slot.err
		default:
			return nil, fmt.Errorf("response channel closed before JSON-RPC response")
		}
	}
}

// Initialize performs the initialize handshake and verifies the
// adapter's protocol version matches ours.
func (c *Client) Initialize() error {
	params := map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"clientCapabilities": map[string]interface{}{
			"fs": map[string]interface{}{
				"readTextFile":  true,
				"writeTextFile": true,
			},
			"terminal": true,
		},
		"clientInfo": map[string]interface{}{
			"name":    ClientName,
			"version": ClientVersion,
		},
	}

	result, err := c.request("initialize", params)
	if err != nil {
		return err
	}

	var resp struct {
		ProtocolVersion *int `json:"protocolVersion"`
	}
	if err := json.Unmarshal(result, &resp); err != nil || resp.ProtocolVersion == nil {
		return fmt.Errorf("initialize response missing protocolVersion")
	}
	if *resp.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: expected %d, got %d", ProtocolVersion, *resp.ProtocolVersion)
	}

	return nil
}

// NewSession opens a session rooted at cwd and returns its opaque id.
func (c *Client) NewSession(cwd string) (string, error) {
	params := map[string]interface{}{
		"cwd":        cwd,
		"mcpServers": []interface{}{},
	}

	result, err := c.request("session/new", params)
	if err != nil {
		return "", err
	}

	var resp struct {
		SessionID *string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &resp); err != nil || resp.SessionID == nil {
		return "", fmt.Errorf("session/new response missing sessionId")
	}

	return *resp.SessionID, nil
}

// PromptStreaming sends a text prompt on sessionID and invokes onEvent
// for every matching event observed before the response arrives. The
// caller's subscription is opened before the request is sent so no
// event can be lost to a race.
func (c *Client) PromptStreaming(sessionID, text string, onEvent func(AdapterEvent)) (PromptResponse, error) {
	params := map[string]interface{}{
		"sessionId": sessionID,
		"prompt": []interface{}{
			map[string]interface{}{"type": "text", "text": text},
		},
	}

	subID, events := c.bus.subscribe()
	defer c.bus.unsubscribe(subID)

	type outcome struct {
		result json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.request("session/prompt", params)
		done <- outcome{result, err}
	}()

	for {
		select {
		case o := <-done:
			if o.err != nil {
				return PromptResponse{}, o.err
			}
			var resp struct {
				StopReason string `json:"stopReason"`
			}
			json.Unmarshal(o.result, &resp)
			if resp.StopReason == "" {
				resp.StopReason = "unknown"
			}
			return PromptResponse{StopReason: resp.StopReason}, nil

		case ev, ok := <-events:
			if !ok {
				continue
			}
			if ev.sessionID() == sessionID || ev.sessionID() == "" {
				onEvent(ev)
			}
		}
	}
}

// RespondPermission hands a grant/deny decision to the permission
// coordinator shared with the reverse-request dispatcher. It is the
// only way an outside actor completes a session/request_permission
// reverse request while interactive mode is on.
func (c *Client) RespondPermission(permissionID string, granted bool) error {
	if c.permissions == nil || !c.permissions.Resolve(permissionID, granted) {
		return fmt.Errorf("unknown permission request id: %s", permissionID)
	}
	return nil
}

func (c *Client) handleResponse(idRaw json.RawMessage, raw json.RawMessage) {
	var id uint64
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		ch <- pendingSlot{err: fmt.Errorf("malformed JSON-RPC response: %w", err)}
		return
	}

	if len(envelope.Error) > 0 {
		ch <- pendingSlot{err: fmt.Errorf("ACP request failed: %s", envelope.Error)}
		return
	}

	result := envelope.Result
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	ch <- pendingSlot{result: result}
}

func (c *Client) handleNotification(raw json.RawMessage) {
	var msg struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Method != "session/update" {
		return
	}

	var params struct {
		SessionID string          `json:"sessionId"`
		Update    json.RawMessage `json:"update"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return
	}

	var update struct {
		SessionUpdate string          `json:"sessionUpdate"`
		Content       json.RawMessage `json:"content"`
		Title         string          `json:"title"`
		Status        string          `json:"status"`
		ToolCallID    string          `json:"toolCallId"`
	}
	if err := json.Unmarshal(params.Update, &update); err != nil {
		return
	}

	switch update.SessionUpdate {
	case "agent_message_chunk":
		var content struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(update.Content, &content); err == nil && content.Text != nil {
			c.bus.publish(AdapterEvent{Kind: EventAgentMessageChunk, SessionID: params.SessionID, Text: *content.Text})
		}
	case "tool_call":
		title := update.Title
		if title == "" {
			title = "tool call"
		}
		c.bus.publish(AdapterEvent{
			Kind:       EventToolCall,
			SessionID:  params.SessionID,
			ToolCallID: update.ToolCallID,
			Title:      title,
			Status:     update.Status,
		})
	case "tool_call_update":
		c.bus.publish(AdapterEvent{
			Kind:       EventToolCallUpdate,
			SessionID:  params.SessionID,
			ToolCallID: update.ToolCallID,
			Title:      update.Title,
			Status:     update.Status,
		})
	}
}

func (c *Client) handleRequest(raw json.RawMessage) {
	var msg struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	sessionID := extractSessionID(msg.Params)

	var (
		result json.RawMessage
		rpcErr *RPCError
	)
	if c.handler != nil {
		result, rpcErr = c.handler.Handle(msg.Method, msg.Params, c.bus.publish)
	} else {
		rpcErr = &RPCError{Code: -32000, Message: "unsupported ACP client method: " + msg.Method}
	}

	var (
		response []byte
		err      error
	)
	if rpcErr != nil {
		c.bus.publish(AdapterEvent{
			Kind:      EventToolCall,
			SessionID: sessionID,
			Title:     msg.Method,
			Status:    "failed: " + rpcErr.Message,
		})
		response, err = json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *RPCError       `json:"error"`
		}{"2.0", msg.ID, rpcErr})
	} else {
		response, err = json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Result  json.RawMessage `json:"result"`
		}{"2.0", msg.ID, result})
	}
	if err != nil {
		return
	}

	c.transport.send(response)
}

func extractSessionID(params json.RawMessage) string {
	var probe struct {
		SessionID string `json:"sessionId"`
	}
	json.Unmarshal(params, &probe)
	return probe.SessionID
}
