// Package wsgateway is a supplementary frontend transport: it mirrors
// the same request/event schema as internal/frontend over a websocket
// instead of a Unix socket, for browser-based frontends. It adds no
// core semantics of its own — every request is handled by the same
// agent registry the Unix socket frontend uses.
package wsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spinyfin/mono/internal/acp"
	"github.com/spinyfin/mono/internal/logger"
	"github.com/spinyfin/mono/internal/registry"
)

// Gateway serves the frontend protocol over websocket connections on
// Addr, which defaults to 127.0.0.1:0 and is otherwise bound as given.
// Port 0 asks the OS for an available port, following the teacher's
// findAvailablePort pattern.
type Gateway struct {
	Addr     string
	Registry *registry.Registry

	upgrader websocket.Upgrader
	listener net.Listener
}

// wsRequest and wsEvent mirror frontend.Request/frontend.Event. They
// are redeclared here rather than imported so the wire schema can be
// read from either package without a cross-import; the field sets are
// kept in lockstep by hand.
type wsRequest struct {
	Type         string `json:"type"`
	Cwd          string `json:"cwd,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
	Text         string `json:"text,omitempty"`
	PermissionID string `json:"id,omitempty"`
	Granted      bool   `json:"granted,omitempty"`
}

type wsEvent struct {
	Type       string               `json:"type"`
	AgentID    string               `json:"agentId,omitempty"`
	Agents     []registry.AgentInfo `json:"agents,omitempty"`
	Text       string               `json:"text,omitempty"`
	StopReason string               `json:"stopReason,omitempty"`
	Name       string               `json:"name,omitempty"`
	Status     string               `json:"status,omitempty"`
	ID         string               `json:"id,omitempty"`
	Title      string               `json:"title,omitempty"`
	Message    string               `json:"message,omitempty"`
	ConnID     string               `json:"connId,omitempty"`
}

// ListenAndServe binds g.Addr (defaulting to 127.0.0.1:0), logs the
// resolved port, and serves websocket connections until the listener
// is closed.
func (g *Gateway) ListenAndServe() error {
	addr := g.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind websocket gateway on %s: %w", addr, err)
	}
	g.listener = ln

	logger.Info("websocket gateway listening on %s", ln.Addr())

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleUpgrade)

	srv := &http.Server{Handler: mux}
	return srv.Serve(ln)
}

// Port returns the resolved listening port, valid only after
// ListenAndServe has bound the listener.
func (g *Gateway) Port() int {
	if g.listener == nil {
		return 0
	}
	return g.listener.Addr().(*net.TCPAddr).Port
}

func (g *Gateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket gateway: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger.Info("websocket gateway: connection %s established", connID)

	out := make(chan wsEvent, 64)
	writerDone := make(chan struct{})
	go g.writerLoop(conn, connID, out, writerDone)

	var wg sync.WaitGroup

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req wsRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			out <- wsEvent{Type: "error", Message: fmt.Sprintf("invalid request payload: %v", err)}
			continue
		}

		g.dispatch(req, out, &wg)
	}

	wg.Wait()
	close(out)
	<-writerDone
	logger.Info("websocket gateway: connection %s closed", connID)
}

func (g *Gateway) dispatch(req wsRequest, out chan<- wsEvent, wg *sync.WaitGroup) {
	switch req.Type {
	case "create_agent":
		id, err := g.Registry.CreateAgent(req.Cwd)
		if err != nil {
			out <- wsEvent{Type: "error", Message: err.Error()}
			return
		}
		out <- wsEvent{Type: "agent_created", AgentID: id}
		out <- wsEvent{Type: "agent_ready", AgentID: id}

	case "list_agents":
		out <- wsEvent{Type: "agent_list", Agents: g.Registry.List()}

	case "remove_agent":
		if err := g.Registry.Remove(req.AgentID); err != nil {
			out <- wsEvent{Type: "error", Message: err.Error()}
			return
		}
		out <- wsEvent{Type: "agent_removed", AgentID: req.AgentID}

	case "prompt":
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.runPrompt(req.AgentID, req.Text, out)
		}()

	case "permission_response":
		if err := g.Registry.RespondPermission(req.AgentID, req.PermissionID, req.Granted); err != nil {
			out <- wsEvent{Type: "error", AgentID: req.AgentID, Message: err.Error()}
		}

	default:
		out <- wsEvent{Type: "error", Message: fmt.Sprintf("unknown request type: %s", req.Type)}
	}
}

func (g *Gateway) runPrompt(agentID, text string, out chan<- wsEvent) {
	onEvent := func(ev acp.AdapterEvent) {
		switch ev.Kind {
		case acp.EventAgentMessageChunk:
			out <- wsEvent{Type: "chunk", AgentID: agentID, Text: ev.Text}
		case acp.EventToolCall, acp.EventToolCallUpdate:
			out <- wsEvent{Type: "tool_call", AgentID: agentID, Name: ev.Title, Status: ev.Status}
		case acp.EventPermissionRequest:
			out <- wsEvent{Type: "permission_request", AgentID: agentID, ID: ev.PermissionID, Title: ev.Title}
		}
	}

	stopReason, err := g.Registry.PromptStreaming(context.Background(), agentID, text, onEvent)
	if err != nil {
		out <- wsEvent{Type: "error", AgentID: agentID, Message: err.Error()}
		return
	}
	out <- wsEvent{Type: "done", AgentID: agentID, StopReason: stopReason}
}

func (g *Gateway) writerLoop(conn *websocket.Conn, connID string, out <-chan wsEvent, done chan<- struct{}) {
	defer close(done)

	for ev := range out {
		ev.ConnID = connID
		payload, err := json.Marshal(ev)
		if err != nil {
			logger.Error("websocket gateway: failed to marshal event: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Error("websocket gateway: failed to write event: %v", err)
			return
		}
	}
}
