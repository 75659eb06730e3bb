// Package correlator matches outbound commands to their inbound
// responses over a connection that also carries unsolicited events.
package correlator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ctagard/inspector-broker/internal/wire"
)

// Correlator allocates monotonic ids for outbound commands and
// delivers each command's response exactly once, either by fulfilling
// it or by expiring it.
type Correlator struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]chan wire.Envelope
	closed  bool
}

// New creates an empty correlator. ids start at 1.
func New() *Correlator {
	return &Correlator{
		nextID:  1,
		pending: make(map[int]chan wire.Envelope),
	}
}

// Allocate reserves the next request id and registers a channel that
// will receive exactly one envelope: the eventual response, or a
// synthetic error envelope on timeout or cancellation. Once CancelAll
// has run, every subsequent Allocate returns an already-failed
// envelope instead of registering a new pending entry that would never
// be delivered.
func (c *Correlator) Allocate() (id int, wait <-chan wire.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id = c.nextID
	c.nextID++

	ch := make(chan wire.Envelope, 1)
	if c.closed {
		ch <- wire.Envelope{
			ID: id,
			Error: &wire.ErrorObject{
				Code:    -1,
				Message: "correlator: transport closed",
			},
		}
		return id, ch
	}

	c.pending[id] = ch
	return id, ch
}

// Await blocks until id's response arrives, ctx is cancelled, or
// timeout elapses, whichever comes first. It always removes id from
// the pending table before returning.
func (c *Correlator) Await(ctx context.Context, id int, wait <-chan wire.Envelope, timeout time.Duration) (wire.Envelope, error) {
	defer c.forget(id)

	select {
	case env := <-wait:
		return env, nil
	case <-time.After(timeout):
		return wire.Envelope{}, fmt.Errorf("correlator: command %d timed out after %s", id, timeout)
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

func (c *Correlator) forget(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Deliver completes the pending command matching env.ID, if any. It
// returns false if no command with that id was outstanding (a late
// or duplicate response, which the caller should ignore).
func (c *Correlator) Deliver(env wire.Envelope) bool {
	c.mu.Lock()
	ch, ok := c.pending[env.ID]
	if ok {
		delete(c.pending, env.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	ch <- env
	return true
}

// CancelAll fails every outstanding command with the given error,
// waking every Await call. Used when the underlying transport closes.
func (c *Correlator) CancelAll(cause error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int]chan wire.Envelope)
	c.closed = true
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- wire.Envelope{
			ID: id,
			Error: &wire.ErrorObject{
				Code:    -1,
				Message: cause.Error(),
			},
		}
	}
}
