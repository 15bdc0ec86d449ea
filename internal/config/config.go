// Package config loads the runtime configuration of boss-engine from the
// environment, per the variables documented in the spec's external
// interfaces section, plus an optional YAML overlay for broker tunables.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/shlex"
)

const (
	defaultACPCommand = "npx @zed-industries/claude-code-acp"
	defaultSocketPath = "/tmp/boss-engine.sock"
	defaultPIDPath    = "/tmp/boss-engine.pid"
	defaultLogPath    = "/tmp/boss-engine.log"
)

// RuntimeConfig holds everything resolved once at startup: the adapter
// launch vector, the bearer credential passed to the child, the socket
// and PID paths for server mode, and the broker-level tunables loaded
// from the optional YAML overlay.
type RuntimeConfig struct {
	AnthropicAPIKey string
	ACPCommand      string
	ACPArgs         []string
	Cwd             string

	SocketPath string
	PIDPath    string
	LogPath    string

	Broker BrokerSettings
}

// LoadFromEnv resolves a RuntimeConfig from the process environment and
// the optional broker YAML overlay (see BrokerSettings.applyOverlay). It
// does not touch the filesystem beyond the overlay file and the cwd
// lookup.
func LoadFromEnv() (*RuntimeConfig, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set before starting boss-engine")
	}

	acpCmdLine := os.Getenv("BOSS_ACP_CMD")
	if acpCmdLine == "" {
		acpCmdLine = defaultACPCommand
	}

	parts, err := shlex.Split(acpCmdLine)
	if err != nil {
		return nil, fmt.Errorf("could not parse BOSS_ACP_CMD: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("BOSS_ACP_CMD resolved to an empty command")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current working directory: %w", err)
	}

	cfg := &RuntimeConfig{
		AnthropicAPIKey: apiKey,
		ACPCommand:      parts[0],
		ACPArgs:         parts[1:],
		Cwd:             cwd,
		SocketPath:      envOr("BOSS_ENGINE_SOCKET_PATH", defaultSocketPath),
		PIDPath:         envOr("BOSS_ENGINE_PID_PATH", defaultPIDPath),
		LogPath:         envOr("BOSS_ENGINE_LOG_PATH", defaultLogPath),
		Broker:          DefaultBrokerSettings(),
	}

	overlayPath := os.Getenv("BOSS_ENGINE_CONFIG")
	if overlayPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			overlayPath = filepath.Join(home, ".boss-engine", "broker.yaml")
		}
	}
	if overlayPath != "" {
		if err := cfg.Broker.applyOverlay(overlayPath); err != nil {
			return nil, fmt.Errorf("failed to load broker config %s: %w", overlayPath, err)
		}
	}

	return cfg, nil
}

// Preflight verifies the adapter command is actually launchable: if it
// contains a path separator it must exist on disk, otherwise it must be
// locatable on PATH.
func (c *RuntimeConfig) Preflight() error {
	if containsPathSeparator(c.ACPCommand) {
		if _, err := os.Stat(c.ACPCommand); err != nil {
			return fmt.Errorf("ACP command does not exist: %s", c.ACPCommand)
		}
		return nil
	}

	if _, err := exec.LookPath(c.ACPCommand); err != nil {
		return fmt.Errorf("ACP command not found on PATH: %s (set BOSS_ACP_CMD to override)", c.ACPCommand)
	}
	return nil
}

func containsPathSeparator(s string) bool {
	for _, r := range s {
		if r == os.PathSeparator || r == '/' {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
