package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// BrokerSettings holds tunables that affect broker behavior but never
// require a restart-time env var: output buffer sizing, the permission
// timeout, and the permission mode, all overridable via a YAML file
// loaded on top of the built-in defaults. The socket, PID and log paths
// come from the environment only.
type BrokerSettings struct {
	// TerminalOutputLimitBytes bounds how much combined stdout/stderr a
	// terminal session retains before it starts dropping its oldest bytes.
	TerminalOutputLimitBytes int `yaml:"terminal_output_limit_bytes"`

	// PermissionTimeoutSeconds is loaded from the overlay but is not read
	// by the reverse-request dispatcher: session/request_permission always
	// waits its fixed 600-second timeout before treating the request as
	// denied.
	PermissionTimeoutSeconds int `yaml:"permission_timeout_seconds"`

	// Interactive controls whether permission requests are answered
	// automatically with the first allow option, or the first option of
	// any kind when none allows (false), or block until a frontend
	// answers (true).
	Interactive bool `yaml:"interactive"`
}

// DefaultBrokerSettings returns the settings boss-engine uses when no
// overlay file is present or a field is left unset in one.
func DefaultBrokerSettings() BrokerSettings {
	return BrokerSettings{
		TerminalOutputLimitBytes: 64 * 1024,
		PermissionTimeoutSeconds: 600,
		Interactive:              true,
	}
}

// applyOverlay merges a YAML file's contents onto b. A missing file is
// not an error — the defaults simply stand — but a present, malformed
// file is reported to the caller.
func (b *BrokerSettings) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overlay struct {
		TerminalOutputLimitBytes *int  `yaml:"terminal_output_limit_bytes"`
		PermissionTimeoutSeconds *int  `yaml:"permission_timeout_seconds"`
		Interactive              *bool `yaml:"interactive"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if overlay.TerminalOutputLimitBytes != nil {
		b.TerminalOutputLimitBytes = *overlay.TerminalOutputLimitBytes
	}
	if overlay.PermissionTimeoutSeconds != nil {
		b.PermissionTimeoutSeconds = *overlay.PermissionTimeoutSeconds
	}
	if overlay.Interactive != nil {
		b.Interactive = *overlay.Interactive
	}

	return nil
}
