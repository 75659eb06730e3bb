// Package broker implements the typed command surface described by the
// debug broker's external interface: one method per operation,
// independent of whatever outer transport (MCP, or a future direct
// RPC surface) ends up calling it.
package broker

import (
	"context"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/internal/registry"
	"github.com/ctagard/inspector-broker/internal/session"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// Broker dispatches typed commands to the session registry. It holds
// no state of its own beyond the registry reference.
type Broker struct {
	registry *registry.Registry
}

// New wraps reg as a command surface.
func New(reg *registry.Registry) *Broker {
	return &Broker{registry: reg}
}

// ConnectSession dials target and admits it as a new session.
func (b *Broker) ConnectSession(ctx context.Context, target, name string) (types.Session, error) {
	sess, err := b.registry.Connect(ctx, target, name)
	if err != nil {
		return types.Session{}, err
	}
	return sess.Info(), nil
}

// DisconnectSession tears down sessionID's connection.
func (b *Broker) DisconnectSession(sessionID string) error {
	return b.registry.Disconnect(sessionID)
}

// ListSessions returns every live session's summary.
func (b *Broker) ListSessions() []types.Session {
	return b.registry.List()
}

// GetSession returns one session's summary.
func (b *Broker) GetSession(sessionID string) (types.Session, error) {
	sess, err := b.registry.Get(sessionID)
	if err != nil {
		return types.Session{}, err
	}
	return sess.Info(), nil
}

func (b *Broker) find(sessionID string) (*session.Session, error) {
	return b.registry.Get(sessionID)
}

// SetBreakpoint sets a breakpoint at scriptURL:line[:column], optionally
// conditional, and returns the resulting record. line and column are
// 0-based. Breakpoint de-duplication is not implemented: repeated calls
// with identical arguments create distinct breakpoints at the target.
func (b *Broker) SetBreakpoint(ctx context.Context, sessionID, scriptURL string, line, column int, condition string) (*types.BreakpointRecord, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	if scriptURL == "" {
		return nil, brokererr.InvalidParameters("scriptUrl is required")
	}
	return sess.SetBreakpoint(ctx, scriptURL, line, column, condition)
}

// RemoveBreakpoint removes a previously set breakpoint by id.
func (b *Broker) RemoveBreakpoint(ctx context.Context, sessionID, breakpointID string) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	return sess.RemoveBreakpoint(ctx, breakpointID)
}

// ListBreakpoints returns every breakpoint currently tracked by a
// session.
func (b *Broker) ListBreakpoints(sessionID string) ([]types.BreakpointRecord, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.ListBreakpoints(), nil
}

// ListScripts returns every script the session has observed.
func (b *Broker) ListScripts(sessionID string, includeInternal bool) ([]types.ScriptRecord, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.ListScripts(includeInternal), nil
}

// GetScriptSource returns the source text of a script, preferring its
// original (pre-bundled/transpiled) source when preferOriginal is set
// and the source map declares exactly one original source.
func (b *Broker) GetScriptSource(ctx context.Context, sessionID, scriptID string, preferOriginal bool) (string, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return "", err
	}
	return sess.GetScriptSource(ctx, scriptID, preferOriginal)
}

// GetOriginalLocation maps a generated position — line 1-based, column
// 0-based — to its original source position. An unknown session or
// script is an error; a script with no resolved source map, or no
// mapping for the requested position, reports HasSourceMap/an absent
// mapping rather than an error.
func (b *Broker) GetOriginalLocation(sessionID, scriptID string, line, column int) (*types.OriginalLocation, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetOriginalLocation(scriptID, line, column)
}

// GetCallStack returns the paused snapshot, source-map-enriched, with
// the async stack trace included unless includeAsync is false.
func (b *Broker) GetCallStack(sessionID string, includeAsync bool) (*types.PausedSnapshot, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetCallStack(includeAsync)
}

// GetScopeVariables resolves the variables in the scope chain entry at
// scopeIndex on the call frame identified by callFrameID.
func (b *Broker) GetScopeVariables(ctx context.Context, sessionID, callFrameID string, scopeIndex int) ([]types.Variable, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetScopeVariables(ctx, callFrameID, scopeIndex)
}

// SetVariableValue changes a paused call frame's local variable value.
func (b *Broker) SetVariableValue(ctx context.Context, sessionID, callFrameID string, scopeNumber int, name, newValueExpr string) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	if name == "" {
		return brokererr.InvalidParameters("name is required")
	}
	return sess.SetVariableValue(ctx, callFrameID, scopeNumber, name, newValueExpr)
}

// EvaluateExpression runs expression, either against a paused call
// frame (callFrameID non-empty) or in the target's global context.
func (b *Broker) EvaluateExpression(ctx context.Context, sessionID, callFrameID, expression string) (*types.EvaluateResult, error) {
	sess, err := b.find(sessionID)
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, brokererr.InvalidParameters("expression is required")
	}
	return sess.Evaluate(ctx, callFrameID, expression)
}

// Continue resumes a paused session.
func (b *Broker) Continue(ctx context.Context, sessionID string) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	return sess.Continue(ctx)
}

// Step performs a single step-over/into/out on a paused session.
func (b *Broker) Step(ctx context.Context, sessionID string, kind session.StepKind) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	return sess.Step(ctx, kind)
}

// Pause requests a running session suspend at its next opportunity.
func (b *Broker) Pause(ctx context.Context, sessionID string) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	return sess.Pause(ctx)
}

// SetPauseOnExceptions configures a session's exception-pausing mode.
func (b *Broker) SetPauseOnExceptions(ctx context.Context, sessionID string, mode session.PauseOnExceptionsMode) error {
	sess, err := b.find(sessionID)
	if err != nil {
		return err
	}
	return sess.SetPauseOnExceptions(ctx, mode)
}
