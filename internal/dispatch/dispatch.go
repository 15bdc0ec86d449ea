// Package dispatch implements the reverse-request "client host": it
// receives requests the adapter subprocess initiates and routes them to
// filesystem handlers, the terminal manager, or the permission
// coordinator.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/permission"
	"github.com/spinyfin/mono/internal/terminal"
)

// Host answers every reverse request an AdapterClient forwards to it.
// It satisfies acp.RequestHandler.
type Host struct {
	Terminals              *terminal.Manager
	Permissions            *permission.Coordinator
	InteractivePermissions bool
}

// NewHost builds a Host with its own terminal manager and permission
// coordinator, using the default terminal output limit.
func NewHost(interactive bool) *Host {
	return &Host{
		Terminals:              terminal.NewManager(),
		Permissions:            permission.NewCoordinator(),
		InteractivePermissions: interactive,
	}
}

// NewHostWithOutputLimit is NewHost but overrides the terminal
// manager's default output cap, as set by the broker YAML overlay.
func NewHostWithOutputLimit(interactive bool, outputLimit int) *Host {
	return &Host{
		Terminals:              terminal.NewManagerWithDefaultLimit(outputLimit),
		Permissions:            permission.NewCoordinator(),
		InteractivePermissions: interactive,
	}
}

// Handle dispatches by method name. Unsupported methods produce
// JSON-RPC error code -32000.
func (h *Host) Handle(method string, params json.RawMessage, emit func(acp.AdapterEvent)) (json.RawMessage, *acp.RPCError) {
	var (
		result json.RawMessage
		err    error
	)

	switch method {
	case "fs/read_text_file":
		result, err = h.readTextFile(params)
	case "fs/write_text_file":
		result, err = h.writeTextFile(params)
	case "terminal/create":
		result, err = h.Terminals.Create(params)
	case "terminal/output":
		result, err = h.Terminals.Output(params)
	case "terminal/wait_for_exit":
		result, err = h.Terminals.WaitForExit(params)
	case "terminal/kill":
		result, err = h.Terminals.Kill(params)
	case "terminal/release":
		result, err = h.Terminals.Release(params)
	case "session/request_permission":
		result, err = h.requestPermission(params, emit)
	default:
		err = fmt.Errorf("unsupported ACP client method: %s", method)
	}

	if err != nil {
		return nil, &acp.RPCError{Code: -32000, Message: err.Error()}
	}
	return result, nil
}
