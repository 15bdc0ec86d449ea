// Package rawsession is the reduced-capability fallback the agent
// registry uses when an adapter command doesn't speak the adapter
// protocol: a pty-attached child whose raw output is streamed to
// whichever prompt is currently listening. It offers no reverse
// requests, no sessions, and no permissions — only output streaming,
// matching the capability set of a plain interactive CLI tool.
package rawsession

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/logger"
)

// idleTimeout is how long Send waits after the last pty output before
// deciding a turn is finished. A raw session has no "stop reason" of
// its own to watch for, so quiescence is the only available signal —
// matching how a human would read an interactive CLI tool's output
// before typing the next line.
const idleTimeout = 750 * time.Millisecond

// Config describes how to launch a raw, pty-attached session.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Cols    int
	Rows    int
}

// Session is a single pty-attached child process.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	listener func(acp.AdapterEvent)
	activity chan struct{}

	closeCh chan struct{}
	closed  atomic.Bool
}

// Start spawns cfg.Command attached to a pty of the given size
// (defaulting to 120x30) and begins streaming its output in the
// background.
func Start(cfg Config) (*Session, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir

	cols, rows := cfg.Cols, cfg.Rows
	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 30
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, fmt.Errorf("failed to start raw session for %s: %w", cfg.Command, err)
	}

	s := &Session{cmd: cmd, ptmx: ptmx, activity: make(chan struct{}, 1), closeCh: make(chan struct{})}
	go s.readOutput()
	return s, nil
}

func (s *Session) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.mu.Lock()
			listener := s.listener
			s.mu.Unlock()
			if listener != nil {
				listener(acp.AdapterEvent{Kind: acp.EventAgentMessageChunk, Text: string(buf[:n])})
			}
			select {
			case s.activity <- struct{}{}:
			default:
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("rawsession: read error: %v", err)
			}
			return
		}
	}
}

// Send writes text to the pty and streams raw output to onEvent until
// the pty goes quiet for idleTimeout, ctx is cancelled, or the session
// is closed, whichever happens first. Unlike acp.Client.PromptStreaming
// there is no structured stop reason: quiescence is
// the only signal a raw session has for "the turn is over".
func (s *Session) Send(ctx context.Context, text string, onEvent func(acp.AdapterEvent)) error {
	if s.closed.Load() {
		return fmt.Errorf("raw session is closed")
	}

	s.mu.Lock()
	s.listener = onEvent
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
	}()

	if _, err := s.ptmx.Write([]byte(text + "\n")); err != nil {
		return fmt.Errorf("rawsession: write failed: %w", err)
	}

	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return nil
		case <-s.activity:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idleTimeout)
		case <-timer.C:
			return nil
		}
	}
}

// Close kills the child and releases the pty.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.closeCh)
		s.ptmx.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
	}
}
