// Package registry tracks live sessions by id, enforces the target URL
// admission policy, and caps the number of concurrent sessions.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/internal/session"
	"github.com/ctagard/inspector-broker/internal/sourcemap"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// AdmissionPolicy governs which target URLs connect_session will dial.
type AdmissionPolicy struct {
	AllowedHosts  []string
	AllowUnlisted bool
}

// DefaultAdmissionPolicy matches spec's default allow-list.
func DefaultAdmissionPolicy() AdmissionPolicy {
	return AdmissionPolicy{
		AllowedHosts: []string{"localhost", "127.0.0.1", "::1"},
	}
}

func (p AdmissionPolicy) check(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return brokererr.InvalidParameters(fmt.Sprintf("malformed target url %q: %v", target, err))
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return brokererr.InvalidParameters(fmt.Sprintf("unsupported url scheme %q, expected ws or wss", u.Scheme))
	}

	host := u.Hostname()
	for _, allowed := range p.AllowedHosts {
		if strings.EqualFold(host, allowed) {
			return nil
		}
	}
	if p.AllowUnlisted {
		return nil
	}
	return brokererr.InvalidParameters(fmt.Sprintf(
		"host %q is not in the allow-list and unlisted hosts require explicit confirmation", host))
}

// Registry is a concurrency-safe id->session table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	policy         AdmissionPolicy
	maxSessions    int
	commandTimeout time.Duration
	fetch          sourcemap.Fetcher
}

// New creates a registry bound to policy, with at most maxSessions live
// sessions at once.
func New(policy AdmissionPolicy, maxSessions int, commandTimeout time.Duration) *Registry {
	if maxSessions <= 0 {
		maxSessions = 32
	}
	return &Registry{
		sessions:       make(map[string]*session.Session),
		policy:         policy,
		maxSessions:    maxSessions,
		commandTimeout: commandTimeout,
		fetch:          sourcemap.DefaultFetcher,
	}
}

// Connect admits target per the registry's policy, dials it, and
// tracks the resulting session under a freshly generated id.
func (r *Registry) Connect(ctx context.Context, target, name string) (*session.Session, error) {
	if err := r.policy.check(target); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return nil, brokererr.MaxSessionsReached(r.maxSessions)
	}
	r.mu.Unlock()

	id := uuid.New().String()
	sess, err := session.New(ctx, id, name, target, r.commandTimeout, r.fetch)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		sess.Disconnect()
		return nil, brokererr.MaxSessionsReached(r.maxSessions)
	}
	r.sessions[id] = sess
	r.mu.Unlock()

	go r.reapWhenStopped(id, sess)

	return sess, nil
}

func (r *Registry) reapWhenStopped(id string, sess *session.Session) {
	<-sess.Stopped()
	r.mu.Lock()
	if current, ok := r.sessions[id]; ok && current == sess {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, brokererr.SessionNotFound(id)
	}
	return sess, nil
}

// List returns a summary of every live session.
func (r *Registry) List() []types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.Info())
	}
	return out
}

// Disconnect removes and closes a session by id.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return brokererr.SessionNotFound(id)
	}
	return sess.Disconnect()
}

// Close disconnects every tracked session, e.g. on process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Disconnect()
	}
}
