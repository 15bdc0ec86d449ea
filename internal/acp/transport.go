package acp

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/spinyfin/mono/internal/logger"
)

// outboundQueueCapacity is the bounded queue the writer loop drains;
// request() and reverse-request replies share it so framing stays
// strictly ordered without a second write pipe.
const outboundQueueCapacity = 256

// transport owns one child process's stdin/stdout/stderr and moves
// line-delimited JSON in and out of it. It classifies each inbound line
// as a response, a notification, or a reverse request and hands it to
// the matching callback; callbacks are wired by the owning Client
// before any traffic flows.
type transport struct {
	outbound chan json.RawMessage

	onResponse     func(id json.RawMessage, raw json.RawMessage)
	onNotification func(raw json.RawMessage)
	onRequest      func(raw json.RawMessage)

	closed chan struct{}
	once   sync.Once

	killFunc func()
}

func startTransport(stdin io.WriteCloser, stdout, stderr io.ReadCloser, wait func() error, kill func()) *transport {
	t := &transport{
		outbound: make(chan json.RawMessage, outboundQueueCapacity),
		closed:   make(chan struct{}),
		killFunc: kill,
	}

	go t.writeLoop(stdin)
	go t.readLoop(stdout)
	if stderr != nil {
		go t.stderrLoop(stderr)
	}
	go t.waitLoop(wait)

	return t
}

// send enqueues a fully-encoded JSON-RPC object. It blocks while the
// queue is full and returns silently once the transport has shut down.
func (t *transport) send(msg json.RawMessage) {
	select {
	case t.outbound <- msg:
	case <-t.closed:
	}
}

func (t *transport) writeLoop(stdin io.WriteCloser) {
	defer stdin.Close()

	for {
		select {
		case msg, ok := <-t.outbound:
			if !ok {
				return
			}
			if _, err := stdin.Write(msg); err != nil {
				logger.Error("acp: failed to write to adapter stdin: %v", err)
				return
			}
			if _, err := stdin.Write([]byte("\n")); err != nil {
				logger.Error("acp: failed to terminate JSON-RPC line: %v", err)
				return
			}
		case <-t.closed:
			return
		}
	}
}

func (t *transport) readLoop(stdout io.ReadCloser) {
	defer stdout.Close()
	defer t.shutdown()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var probe struct {
			ID     json.RawMessage `json:"id"`
			Method *string         `json:"method"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			logger.Warn("acp: failed to parse JSON-RPC line: %v", err)
			continue
		}

		raw := json.RawMessage(append([]byte(nil), line...))

		switch {
		case probe.Method != nil && len(probe.ID) > 0:
			if t.onRequest != nil {
				t.onRequest(raw)
			}
		case probe.Method != nil:
			if t.onNotification != nil {
				t.onNotification(raw)
			}
		case len(probe.ID) > 0:
			if t.onResponse != nil {
				t.onResponse(probe.ID, raw)
			}
		default:
			logger.Debug("acp: ignoring JSON-RPC message without method/id: %s", line)
		}
	}
}

func (t *transport) stderrLoop(stderr io.ReadCloser) {
	defer stderr.Close()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			logger.Tagged("acp_stderr", "%s", line)
		}
	}
}

func (t *transport) waitLoop(wait func() error) {
	if wait == nil {
		return
	}
	if err := wait(); err != nil {
		logger.Info("acp: adapter subprocess exited: %v", err)
	} else {
		logger.Info("acp: adapter subprocess exited")
	}
	t.shutdown()
}

func (t *transport) shutdown() {
	t.once.Do(func() {
		close(t.closed)
	})
}

func (t *transport) kill() {
	if t.killFunc != nil {
		t.killFunc()
	}
}
