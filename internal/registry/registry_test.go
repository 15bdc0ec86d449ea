package registry

import (
	"context"
	"testing"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/config"
	"github.com/spinyfin/mono/internal/rawsession"
	"github.com/stretchr/testify/require"
)

// Raw-protocol agents are exercised directly here, bypassing
// CreateAgent's ACP handshake attempt: a real adapter binary isn't
// available in this environment, and a plain echo-style stand-in
// would bounce replies back as spurious reverse requests forever
// instead of behaving like a real adapter.
func TestRegistryRawAgentLifecycle(t *testing.T) {
	cfg := &config.RuntimeConfig{ACPCommand: "cat", Cwd: t.TempDir(), Broker: config.DefaultBrokerSettings()}
	r := New(cfg)

	raw, err := rawsession.Start(rawsession.Config{Command: "cat", Dir: cfg.Cwd})
	require.NoError(t, err)

	r.mu.Lock()
	r.agents["agent-1"] = &agent{id: "agent-1", cwd: cfg.Cwd, raw: raw, protocol: "raw"}
	r.mu.Unlock()

	infos := r.List()
	require.Len(t, infos, 1)
	require.Equal(t, "agent-1", infos[0].ID)
	require.Equal(t, "raw", infos[0].Protocol)

	// No caller-supplied deadline, matching every production call site:
	// PromptStreaming must return on its own once the raw session's
	// pty goes quiet, not hang forever waiting on ctx.Done().
	_, err = r.PromptStreaming(context.Background(), "agent-1", "hello", func(acp.AdapterEvent) {})
	require.NoError(t, err)

	require.Error(t, r.RespondPermission("agent-1", "perm-1", true))

	require.NoError(t, r.Remove("agent-1"))
	require.Empty(t, r.List())
}

func TestRegistryUnknownAgent(t *testing.T) {
	r := New(&config.RuntimeConfig{})

	_, err := r.PromptStreaming(context.Background(), "missing", "x", func(acp.AdapterEvent) {})
	require.ErrorContains(t, err, "unknown agent")

	require.ErrorContains(t, r.Remove("missing"), "unknown agent")
	require.ErrorContains(t, r.RespondPermission("missing", "perm-1", true), "unknown agent")
}
