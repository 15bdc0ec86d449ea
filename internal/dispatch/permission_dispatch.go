package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spinyfin/mono/internal/acp"
)

// permissionTimeout is how long an interactive permission request waits
// for a decision before it is treated as a denial.
const permissionTimeout = 600 * time.Second

type permissionOption struct {
	OptionID string `json:"optionId"`
	Kind     string `json:"kind"`
}

type requestPermissionRequest struct {
	SessionID string `json:"sessionId"`
	ToolCall  struct {
		Title string `json:"title"`
	} `json:"toolCall"`
	Options []permissionOption `json:"options"`
}

var cancelledOutcome = map[string]interface{}{
	"outcome": map[string]interface{}{"outcome": "cancelled"},
}

func selectedOutcome(optionID string) map[string]interface{} {
	return map[string]interface{}{
		"outcome": map[string]interface{}{
			"outcome":  "selected",
			"optionId": optionID,
		},
	}
}

func firstOptionOfKind(options []permissionOption, kinds ...string) (string, bool) {
	for _, opt := range options {
		for _, kind := range kinds {
			if opt.Kind == kind {
				return opt.OptionID, true
			}
		}
	}
	return "", false
}

// requestPermission implements session/request_permission. Behavior
// branches on Host.InteractivePermissions:
//
//   - non-interactive: pick the first allow_once/allow_always option,
//     else the first option of any kind, else cancel.
//   - interactive: register a ticket, emit a PermissionRequest event,
//     and wait up to permissionTimeout for a decision; timeout counts
//     as a denial.
func (h *Host) requestPermission(params json.RawMessage, emit func(acp.AdapterEvent)) (json.RawMessage, error) {
	var req requestPermissionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid permission request: %w", err)
	}

	if len(req.Options) == 0 {
		return json.Marshal(cancelledOutcome)
	}

	title := req.ToolCall.Title
	if title == "" {
		title = "Tool permission"
	}

	allowID, hasAllow := firstOptionOfKind(req.Options, "allow_once", "allow_always")
	rejectID, hasReject := firstOptionOfKind(req.Options, "reject_once")

	if !h.InteractivePermissions {
		if hasAllow {
			return json.Marshal(selectedOutcome(allowID))
		}
		return json.Marshal(selectedOutcome(req.Options[0].OptionID))
	}

	id, wait := h.Permissions.Register()
	emit(acp.AdapterEvent{
		Kind:         acp.EventPermissionRequest,
		SessionID:    req.SessionID,
		PermissionID: id,
		Title:        title,
	})

	granted := false
	select {
	case g, ok := <-wait:
		granted = ok && g
	case <-time.After(permissionTimeout):
	}

	if granted {
		if hasAllow {
			return json.Marshal(selectedOutcome(allowID))
		}
		return json.Marshal(selectedOutcome(req.Options[0].OptionID))
	}

	if hasReject {
		return json.Marshal(selectedOutcome(rejectID))
	}
	return json.Marshal(cancelledOutcome)
}
