package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/internal/wire"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// SetBreakpoint issues Debugger.setBreakpointByUrl. line and column are
// 0-based, the inspector wire convention. Breakpoint de-duplication is
// intentionally not implemented: every call creates a new breakpoint at
// the target, even if an equivalent one already exists.
func (s *Session) SetBreakpoint(ctx context.Context, scriptURL string, line, column int, condition string) (*types.BreakpointRecord, error) {
	if err := s.requireState(gateAnyLive); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"lineNumber": line,
		"url":        scriptURL,
	}
	if column > 0 {
		params["columnNumber"] = column
	}
	if condition != "" {
		params["condition"] = condition
	}

	raw, err := s.call(ctx, wire.MethodDebuggerSetBreakpointByURL, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		BreakpointID string        `json:"breakpointId"`
		Locations    []cdpLocation `json:"locations"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, brokererr.ProtocolError("malformed setBreakpointByUrl response", err)
	}

	rec := &types.BreakpointRecord{
		ID:        resp.BreakpointID,
		ScriptURL: scriptURL,
		Line:      line,
		Column:    column,
		Condition: condition,
		Verified:  len(resp.Locations) > 0,
	}
	for _, loc := range resp.Locations {
		rec.ResolvedLocations = append(rec.ResolvedLocations, types.Location{
			ScriptID: loc.ScriptID,
			Line:     loc.LineNumber,
			Column:   loc.ColumnNumber,
		})
	}

	s.mu.Lock()
	s.breakpoints[rec.ID] = rec
	s.mu.Unlock()

	return rec, nil
}

// RemoveBreakpoint issues Debugger.removeBreakpoint. Once removed, a
// breakpoint id never reappears in ListBreakpoints.
func (s *Session) RemoveBreakpoint(ctx context.Context, breakpointID string) error {
	if err := s.requireState(gateAnyLive); err != nil {
		return err
	}

	s.mu.Lock()
	_, known := s.breakpoints[breakpointID]
	s.mu.Unlock()
	if !known {
		return brokererr.BreakpointNotFound(breakpointID)
	}

	if _, err := s.call(ctx, wire.MethodDebuggerRemoveBreakpoint, map[string]string{"breakpointId": breakpointID}); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.breakpoints, breakpointID)
	s.mu.Unlock()
	return nil
}

// ListBreakpoints returns every breakpoint currently tracked.
func (s *Session) ListBreakpoints() []types.BreakpointRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.BreakpointRecord, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		out = append(out, *bp)
	}
	return out
}

// ListScripts returns every script the session has observed via a
// scriptParsed event. includeInternal controls whether scripts with an
// empty url, a "node:" or "internal/" url, or a url containing
// "node_modules" are included.
func (s *Session) ListScripts(includeInternal bool) []types.ScriptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScriptRecord, 0, len(s.scripts))
	for _, sc := range s.scripts {
		if !includeInternal && isInternalScriptURL(sc.URL) {
			continue
		}
		out = append(out, *sc)
	}
	return out
}

func isInternalScriptURL(url string) bool {
	return url == "" ||
		strings.HasPrefix(url, "node:") ||
		strings.HasPrefix(url, "internal/") ||
		strings.Contains(url, "node_modules")
}

// GetScriptSource returns a script's source text. If preferOriginal is
// set and the script has a resolved source map with exactly one
// original source, that source's embedded content is returned instead.
func (s *Session) GetScriptSource(ctx context.Context, scriptID string, preferOriginal bool) (string, error) {
	if err := s.requireState(gateAnyLive); err != nil {
		return "", err
	}

	s.mu.Lock()
	_, known := s.scripts[scriptID]
	engine := s.sourceMaps[scriptID]
	s.mu.Unlock()
	if !known {
		return "", brokererr.ScriptNotFound(scriptID)
	}

	if preferOriginal && engine != nil && engine.Loaded() {
		sources := engine.Sources()
		if len(sources) == 1 {
			if content, ok := engine.SourceContent(sources[0]); ok {
				return content, nil
			}
		}
	}

	raw, err := s.call(ctx, wire.MethodDebuggerGetScriptSource, map[string]string{"scriptId": scriptID})
	if err != nil {
		return "", err
	}

	var resp struct {
		ScriptSource string `json:"scriptSource"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", brokererr.ProtocolError("malformed getScriptSource response", err)
	}
	return resp.ScriptSource, nil
}

// GetOriginalLocation maps a generated position in scriptID — line
// 1-based, column 0-based, per the get_original_location command
// contract — to its original source position, if the script has a
// resolved source map. The command surface's line is already in the
// source map's own numbering, so it is queried unconverted; the
// returned location's line is 1-based and its column is 0-based,
// matching the source map's native numbering. An unknown scriptID fails
// SCRIPT_NOT_FOUND; otherwise this succeeds: HasSourceMap and an empty
// Source are the caller's signal, not an error, when the script has no
// resolved map or no mapping exists for the requested position — the
// script remains debuggable either way.
func (s *Session) GetOriginalLocation(scriptID string, line, column int) (*types.OriginalLocation, error) {
	s.mu.Lock()
	_, known := s.scripts[scriptID]
	engine := s.sourceMaps[scriptID]
	s.mu.Unlock()
	if !known {
		return nil, brokererr.ScriptNotFound(scriptID)
	}
	if engine == nil || !engine.Loaded() {
		return &types.OriginalLocation{HasSourceMap: false}, nil
	}

	source, origLine, origCol, ok := engine.Original(line, column)
	if !ok {
		return &types.OriginalLocation{HasSourceMap: true}, nil
	}

	return &types.OriginalLocation{
		HasSourceMap: true,
		Source:       source,
		Line:         origLine,
		Column:       origCol,
	}, nil
}

// GetCallStack returns the current paused snapshot, with each frame
// enriched by an original location when its owning script has a
// resolved source map. When includeAsync is false, the async stack
// trace is omitted from the result. Requires PAUSED.
func (s *Session) GetCallStack(includeAsync bool) (*types.PausedSnapshot, error) {
	s.mu.Lock()
	if s.paused == nil {
		s.mu.Unlock()
		return nil, brokererr.SessionInvalidState(s.id, string(s.state), "PAUSED")
	}

	snapshot := *s.paused
	snapshot.CallFrames = make([]types.CallFrame, len(s.paused.CallFrames))
	copy(snapshot.CallFrames, s.paused.CallFrames)

	for i := range snapshot.CallFrames {
		frame := &snapshot.CallFrames[i]
		engine := s.sourceMaps[frame.ScriptID]
		if engine == nil || !engine.Loaded() {
			continue
		}
		source, origLine, origCol, ok := engine.Original(toSourceMapLine(frame.Line), frame.Column)
		if !ok {
			continue
		}
		frame.OriginalLocation = &types.OriginalLocation{
			HasSourceMap: true,
			Source:       source,
			Line:         origLine,
			Column:       origCol,
		}
	}
	s.mu.Unlock()

	if !includeAsync {
		snapshot.AsyncStackTrace = nil
	}
	return &snapshot, nil
}

// GetScopeVariables resolves the scope chain entry at scopeIndex on
// the paused call frame identified by callFrameID. Requires PAUSED.
func (s *Session) GetScopeVariables(ctx context.Context, callFrameID string, scopeIndex int) ([]types.Variable, error) {
	if err := s.requireState(gatePaused); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.paused == nil {
		s.mu.Unlock()
		return nil, brokererr.SessionInvalidState(s.id, string(s.state), "PAUSED")
	}
	var ref int
	frameFound, scopeInRange := false, false
	for _, frame := range s.paused.CallFrames {
		if frame.CallFrameID != callFrameID {
			continue
		}
		frameFound = true
		if scopeIndex >= 0 && scopeIndex < len(frame.Scopes) {
			ref = frame.Scopes[scopeIndex].VariablesReference
			scopeInRange = true
		}
		break
	}
	s.mu.Unlock()
	if !frameFound {
		return nil, brokererr.InvalidParameters(fmt.Sprintf("unknown call frame %q", callFrameID))
	}
	if !scopeInRange {
		return nil, brokererr.InvalidParameters(fmt.Sprintf("scope index %d out of range for call frame %q", scopeIndex, callFrameID))
	}

	objectID, ok := s.objectIDFor(ref)
	if !ok {
		return nil, brokererr.InvalidParameters(fmt.Sprintf("scope %d of call frame %q has no inspectable object", scopeIndex, callFrameID))
	}

	return s.resolveProperties(ctx, objectID)
}

func (s *Session) resolveProperties(ctx context.Context, objectID string) ([]types.Variable, error) {
	raw, err := s.call(ctx, wire.MethodRuntimeGetProperties, map[string]interface{}{
		"objectId":       objectID,
		"ownProperties":  true,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			Name  string          `json:"name"`
			Value cdpRemoteObject `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, brokererr.ProtocolError("malformed getProperties response", err)
	}

	vars := make([]types.Variable, 0, len(resp.Result))
	for _, prop := range resp.Result {
		v := types.Variable{
			Name:  prop.Name,
			Value: remoteObjectDisplay(prop.Value),
			Type:  prop.Value.Type,
		}
		if prop.Value.ObjectID != "" {
			v.VariablesReference = s.allocRef(prop.Value.ObjectID)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func remoteObjectDisplay(o cdpRemoteObject) string {
	if o.Description != "" {
		return o.Description
	}
	if len(o.Value) > 0 {
		return string(o.Value)
	}
	return o.Type
}

// SetVariableValue changes a call-frame-local variable's value. It is
// two-phase: newValueExpr is first evaluated on the frame with
// returnByValue=false, then the resulting remote object is passed as a
// CallArgument to Debugger.setVariableValue. If evaluation raises an
// exception, step two is skipped and the exception text is reported as
// a protocol error. Requires PAUSED.
func (s *Session) SetVariableValue(ctx context.Context, callFrameID string, scopeNumber int, name, newValueExpr string) error {
	if err := s.requireState(gatePaused); err != nil {
		return err
	}

	raw, err := s.call(ctx, wire.MethodDebuggerEvaluateOnCallFrame, map[string]interface{}{
		"callFrameId":   callFrameID,
		"expression":    newValueExpr,
		"returnByValue": false,
	})
	if err != nil {
		return err
	}

	var evaluated struct {
		Result           cdpRemoteObject `json:"result"`
		ExceptionDetails json.RawMessage `json:"exceptionDetails,omitempty"`
	}
	if err := json.Unmarshal(raw, &evaluated); err != nil {
		return brokererr.ProtocolError("malformed evaluateOnCallFrame response", err)
	}
	if len(evaluated.ExceptionDetails) > 0 {
		details := parseExceptionDetails(evaluated.ExceptionDetails)
		return brokererr.ProtocolError(fmt.Sprintf("newValueExpr %q raised an exception: %s", newValueExpr, details.Text), nil)
	}

	params := map[string]interface{}{
		"callFrameId":  callFrameID,
		"scopeNumber":  scopeNumber,
		"variableName": name,
		"newValue":     callArgument(evaluated.Result),
	}
	_, err = s.call(ctx, wire.MethodDebuggerSetVariableValue, params)
	return err
}

// callArgument projects an evaluated remote object into the shape
// Debugger.setVariableValue's newValue parameter requires: an objectId
// reference, an unserializable-value marker, or a plain value, in that
// preference order.
func callArgument(o cdpRemoteObject) map[string]interface{} {
	switch {
	case o.ObjectID != "":
		return map[string]interface{}{"objectId": o.ObjectID}
	case o.UnserializableValue != "":
		return map[string]interface{}{"unserializableValue": o.UnserializableValue}
	case len(o.Value) > 0:
		return map[string]interface{}{"value": o.Value}
	default:
		return map[string]interface{}{}
	}
}

// Evaluate runs expression either against a call frame (callFrameID
// non-empty; requires PAUSED) or globally (any non-terminal state).
func (s *Session) Evaluate(ctx context.Context, callFrameID, expression string) (*types.EvaluateResult, error) {
	if callFrameID != "" {
		if err := s.requireState(gatePaused); err != nil {
			return nil, err
		}
		raw, err := s.call(ctx, wire.MethodDebuggerEvaluateOnCallFrame, map[string]interface{}{
			"callFrameId": callFrameID,
			"expression":  expression,
		})
		if err != nil {
			return nil, err
		}
		return s.parseEvaluateResponse(raw)
	}

	if err := s.requireState(gateAnyLive); err != nil {
		return nil, err
	}
	raw, err := s.call(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": expression,
	})
	if err != nil {
		return nil, err
	}
	return s.parseEvaluateResponse(raw)
}

func (s *Session) parseEvaluateResponse(raw json.RawMessage) (*types.EvaluateResult, error) {
	var resp struct {
		Result           cdpRemoteObject `json:"result"`
		ExceptionDetails json.RawMessage `json:"exceptionDetails,omitempty"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, brokererr.ProtocolError("malformed evaluate response", err)
	}

	out := &types.EvaluateResult{
		Result: remoteObjectDisplay(resp.Result),
		Type:   resp.Result.Type,
	}
	if resp.Result.ObjectID != "" {
		out.VariablesReference = s.allocRef(resp.Result.ObjectID)
	}
	if len(resp.ExceptionDetails) > 0 {
		out.Exception = true
		out.ExceptionDetails = parseExceptionDetails(resp.ExceptionDetails)
	}
	return out, nil
}

// parseExceptionDetails extracts the fields of a target-reported
// exceptionDetails object that the command surface exposes to callers.
func parseExceptionDetails(raw json.RawMessage) *types.ExceptionDetails {
	var d struct {
		Text         string `json:"text"`
		LineNumber   int    `json:"lineNumber"`
		ColumnNumber int    `json:"columnNumber"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return &types.ExceptionDetails{Text: string(raw)}
	}
	return &types.ExceptionDetails{Text: d.Text, Line: d.LineNumber, Column: d.ColumnNumber}
}

// Continue resumes execution. If the session is PAUSED, issues
// Debugger.resume. If it is CONNECTED — the target is blocked at its
// initial break-on-start, e.g. --inspect-brk, and has never yet been
// running — issues Runtime.runIfWaitingForDebugger and transitions to
// RUNNING. Any other state fails SESSION_INVALID_STATE.
func (s *Session) Continue(ctx context.Context) error {
	s.mu.Lock()
	current := s.state
	s.mu.Unlock()

	switch current {
	case types.SessionPaused:
		_, err := s.call(ctx, wire.MethodDebuggerResume, nil)
		return err
	case types.SessionConnected:
		if _, err := s.call(ctx, wire.MethodRuntimeRunIfWaitingForDebugger, nil); err != nil {
			return err
		}
		s.mu.Lock()
		if s.state == types.SessionConnected {
			s.state = types.SessionRunning
		}
		s.mu.Unlock()
		return nil
	default:
		return brokererr.SessionInvalidState(s.id, string(current), "PAUSED or CONNECTED")
	}
}

// StepKind names a step operation.
type StepKind string

const (
	StepOver StepKind = "over"
	StepInto StepKind = "into"
	StepOut  StepKind = "out"
)

// Step issues the step command matching kind. Requires PAUSED.
func (s *Session) Step(ctx context.Context, kind StepKind) error {
	if err := s.requireState(gatePaused); err != nil {
		return err
	}

	method := ""
	switch kind {
	case StepOver:
		method = wire.MethodDebuggerStepOver
	case StepInto:
		method = wire.MethodDebuggerStepInto
	case StepOut:
		method = wire.MethodDebuggerStepOut
	default:
		return brokererr.InvalidParameters(fmt.Sprintf("unknown step kind %q", kind))
	}

	_, err := s.call(ctx, method, nil)
	return err
}

// Pause requests the target suspend execution at its next opportunity.
// Requires CONNECTED or RUNNING; pausing an already-paused session is
// SESSION_INVALID_STATE rather than a silent re-issue of Debugger.pause.
func (s *Session) Pause(ctx context.Context) error {
	if err := s.requireState(gateNotPaused); err != nil {
		return err
	}
	_, err := s.call(ctx, wire.MethodDebuggerPause, nil)
	return err
}

// PauseOnExceptionsMode names Debugger.setPauseOnExceptions' state.
type PauseOnExceptionsMode string

const (
	PauseNone     PauseOnExceptionsMode = "none"
	PauseAll      PauseOnExceptionsMode = "all"
	PauseUncaught PauseOnExceptionsMode = "uncaught"
)

// SetPauseOnExceptions configures whether and how the target pauses on
// thrown exceptions. Allowed in any non-terminal state.
func (s *Session) SetPauseOnExceptions(ctx context.Context, mode PauseOnExceptionsMode) error {
	if err := s.requireState(gateAnyLive); err != nil {
		return err
	}
	_, err := s.call(ctx, wire.MethodDebuggerSetPauseOnException, map[string]string{"state": string(mode)})
	return err
}

// PausedSnapshot returns a copy of the current paused snapshot, or nil
// if the session is not paused. I3: PAUSED holds iff this is non-nil.
func (s *Session) PausedSnapshot() *types.PausedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused == nil {
		return nil
	}
	cp := *s.paused
	return &cp
}
