package session

import (
	"strings"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// gate is the set of states an operation may run in. Passing it a
// session's current state either lets the caller through or produces
// the SESSION_INVALID_STATE error the command surface reports.
type gate []types.SessionState

var (
	gateAnyLive   = gate{types.SessionConnecting, types.SessionConnected, types.SessionPaused, types.SessionRunning}
	gatePaused    = gate{types.SessionPaused}
	gateNotPaused = gate{types.SessionConnected, types.SessionRunning}
)

func (g gate) allows(s types.SessionState) bool {
	for _, allowed := range g {
		if allowed == s {
			return true
		}
	}
	return false
}

func (s *Session) requireState(g gate) *brokererr.Error {
	s.mu.Lock()
	current := s.state
	s.mu.Unlock()

	if current == types.SessionDisconnected {
		return brokererr.SessionInvalidState(s.id, string(current), "any non-terminal state")
	}
	if !g.allows(current) {
		return brokererr.SessionInvalidState(s.id, string(current), describeGate(g))
	}
	return nil
}

func describeGate(g gate) string {
	names := make([]string, len(g))
	for i, s := range g {
		names[i] = string(s)
	}
	return strings.Join(names, " or ")
}
