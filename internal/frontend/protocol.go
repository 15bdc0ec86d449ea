// Package frontend implements the primary frontend bridge: a
// Unix-domain socket speaking a line-delimited, type-tagged JSON
// request/event protocol over the shared agent registry.
package frontend

import "github.com/spinyfin/mono/internal/registry"

// Request is one line read from a connected frontend. Only the fields
// relevant to Type are populated by the sender.
type Request struct {
	Type         string `json:"type"`
	Cwd          string `json:"cwd,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
	Text         string `json:"text,omitempty"`
	PermissionID string `json:"id,omitempty"`
	Granted      bool   `json:"granted,omitempty"`
}

// Event is one line written to a connected frontend.
type Event struct {
	Type       string               `json:"type"`
	AgentID    string               `json:"agentId,omitempty"`
	Agents     []registry.AgentInfo `json:"agents,omitempty"`
	Text       string               `json:"text,omitempty"`
	StopReason string               `json:"stopReason,omitempty"`
	Name       string               `json:"name,omitempty"`
	Status     string               `json:"status,omitempty"`
	ID         string               `json:"id,omitempty"`
	Title      string               `json:"title,omitempty"`
	Message    string               `json:"message,omitempty"`
}
