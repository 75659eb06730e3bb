// Package framer dials a target inspector over WebSocket and frames
// JSON-RPC 2.0 envelopes onto and off the wire.
//
// Framer owns the single writer goroutine a *websocket.Conn requires
// (concurrent writers on one connection are not safe); callers send
// through a buffered channel and receive inbound frames off another.
package framer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctagard/inspector-broker/internal/wire"
)

const sendBufferSize = 64

// ErrClientBufferFull is returned when the outbound queue cannot accept
// another frame because the writer goroutine has fallen behind.
type ErrClientBufferFull struct{}

func (ErrClientBufferFull) Error() string { return "framer: send buffer full" }

// Framer is a single WebSocket connection to a target inspector.
type Framer struct {
	conn *websocket.Conn

	send   chan []byte
	inbox  chan wire.Envelope
	closed chan struct{}

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
}

// Dial connects to the target at url (already validated by the caller's
// admission policy) and starts the framer's read and write pumps.
func Dial(ctx context.Context, target string) (*Framer, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("framer: invalid target url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("framer: dial %s: %w", target, err)
	}

	f := &Framer{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		inbox:  make(chan wire.Envelope, sendBufferSize),
		closed: make(chan struct{}),
	}

	go f.writePump()
	go f.readPump()

	return f, nil
}

// Inbox delivers every envelope received from the target, in order.
// It is closed when the connection is torn down.
func (f *Framer) Inbox() <-chan wire.Envelope {
	return f.inbox
}

// Closed is closed once the underlying connection has gone away, for
// any reason (local Close, remote hangup, read/write error).
func (f *Framer) Closed() <-chan struct{} {
	return f.closed
}

// Send enqueues a request for the write pump. Writes are atomic per
// message: a request is either written whole or not at all.
func (f *Framer) Send(req wire.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("framer: encode request: %w", err)
	}

	select {
	case f.send <- data:
		return nil
	case <-f.closed:
		return fmt.Errorf("framer: connection closed")
	default:
		return ErrClientBufferFull{}
	}
}

func (f *Framer) writePump() {
	for {
		select {
		case data, ok := <-f.send:
			if !ok {
				return
			}
			if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				f.teardown(err)
				return
			}
		case <-f.closed:
			return
		}
	}
}

func (f *Framer) readPump() {
	defer close(f.inbox)

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.teardown(err)
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("framer: dropping malformed frame: %v", err)
			continue
		}

		select {
		case f.inbox <- env:
		case <-f.closed:
			return
		}
	}
}

// teardown closes the connection and the closed channel exactly once,
// fanning out the failure to every reader.
func (f *Framer) teardown(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeErr = err
		f.mu.Unlock()
		close(f.closed)
		f.conn.Close()
	})
}

// Close closes the connection from this side.
func (f *Framer) Close() error {
	f.teardown(nil)
	return nil
}

// Err returns the error that caused the connection to close, if any.
func (f *Framer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}
