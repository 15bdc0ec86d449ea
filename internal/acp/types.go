// Package acp implements the adapter-protocol client: a JSON-RPC duplex
// over a child process's standard streams, with a bidirectional
// request/response table, notification fan-out, and local termination
// of the adapter's reverse requests.
package acp

import "encoding/json"

// ProtocolVersion is the only adapter protocol version this client speaks.
const ProtocolVersion = 1

// ClientName/ClientVersion are advertised to the adapter during initialize.
const (
	ClientName    = "boss-engine"
	ClientVersion = "0.1.0"
)

// EventKind tags the variant of an AdapterEvent.
type EventKind string

const (
	EventAgentMessageChunk EventKind = "agent_message_chunk"
	EventToolCall          EventKind = "tool_call"
	EventToolCallUpdate    EventKind = "tool_call_update"
	EventPermissionRequest EventKind = "permission_request"
)

// AdapterEvent is a notification broadcast to every current subscriber
// of a client's event bus. Only the fields relevant to Kind are set.
type AdapterEvent struct {
	Kind         EventKind
	SessionID    string
	Text         string
	ToolCallID   string
	Title        string
	Status       string
	PermissionID string
}

func (e AdapterEvent) sessionID() string { return e.SessionID }

// PromptResponse is the result of a completed session/prompt call.
type PromptResponse struct {
	StopReason string
}

// RPCError is the JSON-RPC error shape returned to the adapter for a
// reverse request the broker could not satisfy.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RequestHandler answers reverse requests the adapter subprocess
// initiates: filesystem access, terminal control, and permission
// prompts. Implementations may emit events (a PermissionRequest, most
// notably) through emit while a call is in flight.
type RequestHandler interface {
	Handle(method string, params json.RawMessage, emit func(AdapterEvent)) (json.RawMessage, *RPCError)
}

// PermissionResolver completes a previously issued permission ticket.
// Client.RespondPermission delegates to one of these so that the
// permission coordinator can be shared with the reverse-request
// dispatcher without an import cycle.
type PermissionResolver interface {
	Resolve(id string, granted bool) bool
}
