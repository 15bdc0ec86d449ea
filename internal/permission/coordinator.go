// Package permission implements the rendezvous table between a reverse
// session/request_permission call awaiting a decision and the external
// actor (a connected frontend) that eventually resolves it.
package permission

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Coordinator issues opaque permission tickets and resolves them at
// most once. Ids are monotonic per instance.
type Coordinator struct {
	nextID uint64

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{pending: make(map[string]chan bool)}
}

// Register inserts a new ticket and returns its id and the channel its
// eventual grant/deny decision arrives on.
func (c *Coordinator) Register() (string, <-chan bool) {
	id := fmt.Sprintf("perm-%d", atomic.AddUint64(&c.nextID, 1))
	ch := make(chan bool, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	return id, ch
}

// Resolve completes the ticket named id with granted. It returns false
// if id was never issued or has already been resolved.
func (c *Coordinator) Resolve(id string, granted bool) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	ch <- granted
	close(ch)
	return true
}
