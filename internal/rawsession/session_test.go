package rawsession

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/stretchr/testify/require"
)

func TestSessionEchoesInputOverPty(t *testing.T) {
	s, err := Start(Config{Command: "cat"})
	require.NoError(t, err)
	defer s.Close()

	var mu sync.Mutex
	var received strings.Builder

	// Send has no caller-supplied deadline here, matching every
	// production call site (registry.PromptStreaming is always called
	// with context.Background()). It must still return on its own once
	// the pty goes quiet, rather than block forever.
	err = s.Send(context.Background(), "hello", func(ev acp.AdapterEvent) {
		require.Equal(t, acp.EventAgentMessageChunk, ev.Kind)
		mu.Lock()
		received.WriteString(ev.Text)
		mu.Unlock()
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, received.String(), "hello")
}

func TestSessionRejectsSendAfterClose(t *testing.T) {
	s, err := Start(Config{Command: "cat"})
	require.NoError(t, err)

	s.Close()
	s.Close() // idempotent

	err = s.Send(context.Background(), "hello", func(acp.AdapterEvent) {})
	require.Error(t, err)
}
