// Package terminal hosts the live child processes an adapter spawns via
// terminal/create and keeps a bounded ring of their combined output
// available for polling.
package terminal

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/spinyfin/mono/internal/logger"
)

// DefaultOutputLimit is the output buffer cap used when terminal/create
// doesn't specify one and the broker config doesn't override it.
const DefaultOutputLimit = 64 * 1024

type envVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type createRequest struct {
	Command         string    `json:"command"`
	Args            *[]string `json:"args"`
	Cwd             *string   `json:"cwd"`
	Env             []envVar  `json:"env"`
	OutputByteLimit *int      `json:"outputByteLimit"`
}

// Manager owns every live terminal created on an adapter's behalf,
// keyed by monotonically assigned terminal-<n> ids.
type Manager struct {
	defaultOutputLimit int

	mu        sync.Mutex
	nextID    uint64
	terminals map[string]*Terminal
}

// NewManager returns a Manager using DefaultOutputLimit for terminals
// that don't request one explicitly.
func NewManager() *Manager {
	return NewManagerWithDefaultLimit(DefaultOutputLimit)
}

// NewManagerWithDefaultLimit lets the broker config override the
// default output cap.
func NewManagerWithDefaultLimit(limit int) *Manager {
	return &Manager{defaultOutputLimit: limit, terminals: make(map[string]*Terminal)}
}

// Create spawns a child per terminal/create and returns {"terminalId": ...}.
func (m *Manager) Create(params json.RawMessage) (json.RawMessage, error) {
	var req createRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid terminal/create request: %w", err)
	}

	program, args, mode := normalizeCommand(req.Command, req.Args)

	cwdLabel := "<none>"
	if req.Cwd != nil {
		cwdLabel = *req.Cwd
	}
	logger.Info("terminal/create raw_command=%q executable=%q args=%v cwd=%s mode=%s", req.Command, program, args, cwdLabel, mode)

	cmd := exec.Command(program, args...)
	cmd.Stdin = nil

	if req.Cwd != nil {
		info, err := os.Stat(*req.Cwd)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("terminal/create cwd does not exist or is not a directory: %s", *req.Cwd)
		}
		cmd.Dir = *req.Cwd
	}

	if len(req.Env) > 0 {
		cmd.Env = os.Environ()
		for _, v := range req.Env {
			cmd.Env = append(cmd.Env, v.Name+"="+v.Value)
		}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to spawn terminal command executable=%s args=%v: %w", program, args, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to spawn terminal command executable=%s args=%v: %w", program, args, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn terminal command executable=%s args=%v: %w", program, args, err)
	}

	limit := m.defaultOutputLimit
	if req.OutputByteLimit != nil {
		limit = *req.OutputByteLimit
	}

	term := newTerminal(cmd, limit)
	term.startOutputPumps(stdout, stderr)

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("terminal-%d", m.nextID)
	m.terminals[id] = term
	m.mu.Unlock()

	return json.Marshal(map[string]string{"terminalId": id})
}

func (m *Manager) lookup(params json.RawMessage) (*Terminal, string, error) {
	var req struct {
		TerminalID string `json:"terminalId"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, "", fmt.Errorf("terminalId missing from terminal request")
	}

	m.mu.Lock()
	term, ok := m.terminals[req.TerminalID]
	m.mu.Unlock()
	if !ok {
		return nil, req.TerminalID, fmt.Errorf("terminal not found: %s", req.TerminalID)
	}
	return term, req.TerminalID, nil
}

// Output returns the current buffer snapshot, truncation flag, and a
// non-blocking exit-status probe.
func (m *Manager) Output(params json.RawMessage) (json.RawMessage, error) {
	term, _, err := m.lookup(params)
	if err != nil {
		return nil, err
	}

	output, truncated := term.snapshot()
	return json.Marshal(map[string]interface{}{
		"output":     output,
		"truncated":  truncated,
		"exitStatus": term.captureExitStatus(),
	})
}

// WaitForExit blocks until the terminal's child exits.
func (m *Manager) WaitForExit(params json.RawMessage) (json.RawMessage, error) {
	term, _, err := m.lookup(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(term.waitForExit())
}

// Kill is a no-op if the child has already exited; it does not remove
// the entry from the map.
func (m *Manager) Kill(params json.RawMessage) (json.RawMessage, error) {
	term, _, err := m.lookup(params)
	if err != nil {
		return nil, err
	}
	if err := term.kill(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{})
}

// Release removes the entry from the map and best-effort kills the child.
func (m *Manager) Release(params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		TerminalID string `json:"terminalId"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("terminalId missing from terminal request")
	}

	m.mu.Lock()
	term, ok := m.terminals[req.TerminalID]
	delete(m.terminals, req.TerminalID)
	m.mu.Unlock()

	if ok {
		term.kill()
	}
	return json.Marshal(map[string]interface{}{})
}
