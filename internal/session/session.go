// Package session implements the per-target aggregate: the WebSocket
// connection to one target inspector, its command correlator, its
// event demultiplexer, and the state machine and tables described by
// the debug broker's data model (Session, Breakpoint record, Script
// record, Paused snapshot, Source-map state).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/internal/correlator"
	"github.com/ctagard/inspector-broker/internal/framer"
	"github.com/ctagard/inspector-broker/internal/sourcemap"
	"github.com/ctagard/inspector-broker/internal/wire"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// DefaultCommandTimeout is used when no per-command deadline is
// configured.
const DefaultCommandTimeout = 5 * time.Second

// Session owns one WebSocket connection to a target inspector and every
// piece of state derived from it.
type Session struct {
	mu sync.Mutex

	id        string
	name      string
	url       string
	state     types.SessionState
	createdAt time.Time

	framer  *framer.Framer
	corr    *correlator.Correlator
	timeout time.Duration

	breakpoints map[string]*types.BreakpointRecord // by inspector breakpointId
	scripts     map[string]*types.ScriptRecord      // by scriptId
	scriptsByURL map[string]*types.ScriptRecord

	sourceMaps map[string]*sourcemap.Engine // by scriptId
	fetch      sourcemap.Fetcher

	paused *types.PausedSnapshot

	nextRef    int
	objectRefs map[int]string // variablesReference -> CDP objectId

	stopped chan struct{}
}

// New connects to target and brings the target's Debugger and Runtime
// domains online. The returned session is CONNECTED once this
// completes without error.
func New(ctx context.Context, id, name, target string, timeout time.Duration, fetch sourcemap.Fetcher) (*Session, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if fetch == nil {
		fetch = sourcemap.DefaultFetcher
	}

	f, err := framer.Dial(ctx, target)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:           id,
		name:         name,
		url:          target,
		state:        types.SessionConnecting,
		createdAt:    time.Now(),
		framer:       f,
		corr:         correlator.New(),
		timeout:      timeout,
		breakpoints:  make(map[string]*types.BreakpointRecord),
		scripts:      make(map[string]*types.ScriptRecord),
		scriptsByURL: make(map[string]*types.ScriptRecord),
		sourceMaps:   make(map[string]*sourcemap.Engine),
		fetch:        fetch,
		objectRefs:   make(map[int]string),
		stopped:      make(chan struct{}),
	}

	go s.demux()

	if _, err := s.call(ctx, wire.MethodDebuggerEnable, nil); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := s.call(ctx, wire.MethodRuntimeEnable, nil); err != nil {
		f.Close()
		return nil, err
	}

	s.mu.Lock()
	s.state = types.SessionConnected
	s.mu.Unlock()

	return s, nil
}

// Info projects the session's public summary, as returned by
// list_sessions and the debug://sessions resource.
func (s *Session) Info() types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Session{
		ID:        s.id,
		Name:      s.name,
		URL:       s.url,
		State:     s.state,
		CreatedAt: s.createdAt,
	}
}

func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// call sends method/params to the target and waits for its response,
// translating a timeout or a target-reported error into a brokererr.
func (s *Session) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id, wait := s.corr.Allocate()
	if err := s.framer.Send(wire.Request{ID: id, Method: method, Params: params}); err != nil {
		return nil, brokererr.ConnectionFailed(s.url, err)
	}

	env, err := s.corr.Await(ctx, id, wait, s.timeout)
	if err != nil {
		return nil, brokererr.Timeout(method, err)
	}
	if env.Error != nil {
		return nil, brokererr.ProtocolError(fmt.Sprintf("%s: %s", method, env.Error.Message), nil)
	}
	return env.Result, nil
}

// demux is the single reader goroutine: it classifies every inbound
// frame as either a command response (handed to the correlator) or an
// event (routed by method name), and reacts to transport closure by
// cancelling every outstanding command and moving to DISCONNECTED.
func (s *Session) demux() {
	defer close(s.stopped)

	for {
		select {
		case env, ok := <-s.framer.Inbox():
			if !ok {
				s.onDisconnect()
				return
			}
			if env.IsResponse() {
				s.corr.Deliver(env)
				continue
			}
			s.handleEvent(env)
		case <-s.framer.Closed():
			s.onDisconnect()
			return
		}
	}
}

func (s *Session) onDisconnect() {
	s.mu.Lock()
	s.state = types.SessionDisconnected
	s.mu.Unlock()

	cause := s.framer.Err()
	if cause == nil {
		cause = fmt.Errorf("connection to %s closed", s.url)
	}
	s.corr.CancelAll(cause)
}

func (s *Session) handleEvent(env wire.Envelope) {
	switch env.Method {
	case wire.EventDebuggerPaused:
		s.onPaused(env.Params)
	case wire.EventDebuggerResumed:
		s.onResumed()
	case wire.EventDebuggerScriptParsed:
		s.onScriptParsed(env.Params)
	case wire.EventDebuggerBreakpointResolved:
		s.onBreakpointResolved(env.Params)
	default:
		// Unknown notifications are silently dropped.
	}
}

// Stopped is closed once the session's demultiplexer has exited,
// i.e. the session has reached DISCONNECTED for good.
func (s *Session) Stopped() <-chan struct{} {
	return s.stopped
}

// Disconnect closes the underlying connection. Idempotent.
func (s *Session) Disconnect() error {
	return s.framer.Close()
}

func (s *Session) allocRef(objectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRef++
	ref := s.nextRef
	s.objectRefs[ref] = objectID
	return ref
}

func (s *Session) objectIDFor(ref int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.objectRefs[ref]
	return id, ok
}

func logWarn(format string, args ...interface{}) {
	log.Printf("session: "+format, args...)
}
