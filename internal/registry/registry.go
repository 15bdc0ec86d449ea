// Package registry is the agent registry: it owns one adapter client
// per agent id, serializes prompts per agent, and forwards events. It
// is the concrete implementation of the broker's external contract
// (spec'd only as an interface) needed to produce a runnable broker.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/config"
	"github.com/spinyfin/mono/internal/dispatch"
	"github.com/spinyfin/mono/internal/logger"
	"github.com/spinyfin/mono/internal/rawsession"
)

// handshakeTimeout bounds how long CreateAgent waits for the ACP
// initialize handshake before falling back to a raw session.
const handshakeTimeout = 3 * time.Second

// AgentInfo is the externally visible summary of a registered agent.
type AgentInfo struct {
	ID       string `json:"id"`
	Cwd      string `json:"cwd"`
	Protocol string `json:"protocol"`
}

type agent struct {
	id         string
	cwd        string
	client     *acp.Client
	sessionID  string
	host       *dispatch.Host
	raw        *rawsession.Session
	promptLock sync.Mutex
	protocol   string
}

// Registry is the agent registry described in the spec's external
// interface contract.
type Registry struct {
	cfg *config.RuntimeConfig

	mu     sync.Mutex
	nextID uint64
	agents map[string]*agent
}

// New returns an empty Registry bound to cfg (used for ACP command
// launch vector, working directory default, and broker tunables).
func New(cfg *config.RuntimeConfig) *Registry {
	return &Registry{cfg: cfg, agents: make(map[string]*agent)}
}

// CreateAgent spawns an adapter for cwd (or the configured default cwd
// when empty), preferring a full ACP handshake and falling back to a
// raw pty-driven session for CLI tools that don't speak the adapter
// protocol.
func (r *Registry) CreateAgent(cwd string) (string, error) {
	if cwd == "" {
		cwd = r.cfg.Cwd
	}

	r.mu.Lock()
	r.nextID++
	id := fmt.Sprintf("agent-%d", r.nextID)
	r.mu.Unlock()

	host := dispatch.NewHostWithOutputLimit(r.cfg.Broker.Interactive, r.cfg.Broker.TerminalOutputLimitBytes)

	client, sessionID, err := r.handshakeACP(host, cwd)
	if err == nil {
		a := &agent{id: id, cwd: cwd, client: client, sessionID: sessionID, host: host, protocol: "acp"}
		r.mu.Lock()
		r.agents[id] = a
		r.mu.Unlock()
		return id, nil
	}

	logger.Warn("agent %s: ACP handshake failed (%v), falling back to raw session", id, err)

	raw, err := rawsession.Start(rawsession.Config{
		Command: r.cfg.ACPCommand,
		Args:    r.cfg.ACPArgs,
		Dir:     cwd,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start agent %s: %w", id, err)
	}

	a := &agent{id: id, cwd: cwd, raw: raw, protocol: "raw"}
	r.mu.Lock()
	r.agents[id] = a
	r.mu.Unlock()

	return id, nil
}

func (r *Registry) handshakeACP(host *dispatch.Host, cwd string) (*acp.Client, string, error) {
	client, err := acp.Connect(acp.Config{
		Command: r.cfg.ACPCommand,
		Args:    r.cfg.ACPArgs,
		Dir:     cwd,
	}, r.cfg.AnthropicAPIKey, host, host.Permissions)
	if err != nil {
		return nil, "", err
	}

	result := make(chan error, 1)
	go func() { result <- client.Initialize() }()

	select {
	case err := <-result:
		if err != nil {
			client.Close()
			return nil, "", err
		}
	case <-time.After(handshakeTimeout):
		client.Close()
		return nil, "", fmt.Errorf("initialize handshake timed out after %s", handshakeTimeout)
	}

	sessionID, err := client.NewSession(cwd)
	if err != nil {
		client.Close()
		return nil, "", err
	}

	return client, sessionID, nil
}

func (r *Registry) get(id string) (*agent, error) {
	r.mu.Lock()
	a, ok := r.agents[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", id)
	}
	return a, nil
}

// PromptStreaming serializes a text prompt against agentID's prompt
// lock and forwards every observed event to onEvent.
func (r *Registry) PromptStreaming(ctx context.Context, agentID, text string, onEvent func(acp.AdapterEvent)) (string, error) {
	a, err := r.get(agentID)
	if err != nil {
		return "", err
	}

	a.promptLock.Lock()
	defer a.promptLock.Unlock()

	if a.protocol == "raw" {
		return "", a.raw.Send(ctx, text, onEvent)
	}

	resp, err := a.client.PromptStreaming(a.sessionID, text, onEvent)
	if err != nil {
		return "", err
	}
	return resp.StopReason, nil
}

// RespondPermission forwards a grant/deny decision to agentID's
// permission coordinator.
func (r *Registry) RespondPermission(agentID, permissionID string, granted bool) error {
	a, err := r.get(agentID)
	if err != nil {
		return err
	}
	if a.protocol == "raw" {
		return fmt.Errorf("agent %s does not support permissions", agentID)
	}
	return a.client.RespondPermission(permissionID, granted)
}

// List returns a summary of every currently registered agent.
func (r *Registry) List() []AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		infos = append(infos, AgentInfo{ID: a.id, Cwd: a.cwd, Protocol: a.protocol})
	}
	return infos
}

// Remove tears down agentID's adapter client (or raw session) and
// drops it from the registry.
func (r *Registry) Remove(agentID string) error {
	r.mu.Lock()
	a, ok := r.agents[agentID]
	if ok {
		delete(r.agents, agentID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown agent: %s", agentID)
	}

	if a.protocol == "raw" {
		a.raw.Close()
	} else {
		a.client.Close()
	}
	return nil
}
