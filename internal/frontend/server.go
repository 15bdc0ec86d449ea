package frontend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/logger"
	"github.com/spinyfin/mono/internal/registry"
)

// Server binds a Unix-domain socket and serves every connection
// against a shared agent registry. Each connection gets its own
// goroutine; events from concurrent prompts on different agents
// interleave freely on the wire, tagged by agentId.
type Server struct {
	SocketPath string
	PIDPath    string
	Registry   *registry.Registry
}

// ListenAndServe removes a stale socket file, binds, writes the PID
// file, and accepts connections until the listener errors (typically
// because it was closed during shutdown).
func (s *Server) ListenAndServe() error {
	if err := removeStaleSocket(s.SocketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to bind unix socket %s: %w", s.SocketPath, err)
	}
	defer ln.Close()

	if err := writePIDFile(s.PIDPath); err != nil {
		return err
	}
	defer removePIDFileIfOwned(s.PIDPath)

	logger.Info("frontend socket is ready at %s", s.SocketPath)
	logger.Info("engine pid file is ready at %s", s.PIDPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
		}
	}
	return nil
}

func writePIDFile(path string) error {
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pid file %s: %w", path, err)
	}
	return nil
}

// removePIDFileIfOwned only removes path if its contents still name
// this process, so a newer instance's PID file is never clobbered by
// an older instance's deferred cleanup.
func removePIDFileIfOwned(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || parsed != os.Getpid() {
		return
	}
	os.Remove(path)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	logger.Info("frontend connected")

	out := make(chan Event, 64)
	writerDone := make(chan struct{})
	go writerLoop(conn, out, writerDone)

	var wg sync.WaitGroup

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			out <- Event{Type: "error", Message: fmt.Sprintf("invalid request payload: %v", err)}
			continue
		}

		s.dispatch(req, out, &wg)
	}

	wg.Wait()
	close(out)
	<-writerDone
	logger.Info("frontend disconnected")
}

func (s *Server) dispatch(req Request, out chan<- Event, wg *sync.WaitGroup) {
	switch req.Type {
	case "create_agent":
		id, err := s.Registry.CreateAgent(req.Cwd)
		if err != nil {
			out <- Event{Type: "error", Message: err.Error()}
			return
		}
		out <- Event{Type: "agent_created", AgentID: id}
		out <- Event{Type: "agent_ready", AgentID: id}

	case "list_agents":
		out <- Event{Type: "agent_list", Agents: s.Registry.List()}

	case "remove_agent":
		if err := s.Registry.Remove(req.AgentID); err != nil {
			out <- Event{Type: "error", Message: err.Error()}
			return
		}
		out <- Event{Type: "agent_removed", AgentID: req.AgentID}

	case "prompt":
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runPrompt(req.AgentID, req.Text, out)
		}()

	case "permission_response":
		if err := s.Registry.RespondPermission(req.AgentID, req.PermissionID, req.Granted); err != nil {
			out <- Event{Type: "error", AgentID: req.AgentID, Message: err.Error()}
		}

	default:
		out <- Event{Type: "error", Message: fmt.Sprintf("unknown request type: %s", req.Type)}
	}
}

func (s *Server) runPrompt(agentID, text string, out chan<- Event) {
	onEvent := func(ev acp.AdapterEvent) {
		switch ev.Kind {
		case acp.EventAgentMessageChunk:
			out <- Event{Type: "chunk", AgentID: agentID, Text: ev.Text}
		case acp.EventToolCall, acp.EventToolCallUpdate:
			out <- Event{Type: "tool_call", AgentID: agentID, Name: ev.Title, Status: ev.Status}
		case acp.EventPermissionRequest:
			out <- Event{Type: "permission_request", AgentID: agentID, ID: ev.PermissionID, Title: ev.Title}
		}
	}

	stopReason, err := s.Registry.PromptStreaming(context.Background(), agentID, text, onEvent)
	if err != nil {
		out <- Event{Type: "error", AgentID: agentID, Message: err.Error()}
		return
	}
	out <- Event{Type: "done", AgentID: agentID, StopReason: stopReason}
}

func writerLoop(conn net.Conn, out <-chan Event, done chan<- struct{}) {
	defer close(done)

	enc := json.NewEncoder(conn)
	for ev := range out {
		if err := enc.Encode(ev); err != nil {
			logger.Error("failed to write event to frontend socket: %v", err)
			return
		}
	}
}
