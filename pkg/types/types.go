// Package types defines the shared data model exchanged between the
// broker's internal components and its command surface.
//
// This package provides type definitions for:
//   - SessionState: the lifecycle states a Session moves through
//   - Session: a single controlled connection to a target inspector
//   - BreakpointRecord, ScriptRecord: entries tracked per session
//   - PausedSnapshot, CallFrame, Scope, Variable: state captured on pause
//
// These types are used throughout the codebase to maintain type safety
// and provide clear contracts between components.
package types

import "time"

// SessionState represents the state of a debug session.
type SessionState string

const (
	SessionConnecting   SessionState = "CONNECTING"
	SessionConnected    SessionState = "CONNECTED"
	SessionPaused       SessionState = "PAUSED"
	SessionRunning      SessionState = "RUNNING"
	SessionDisconnected SessionState = "DISCONNECTED"
)

// Session is the durable record of a controlled connection to a target
// inspector, as exposed by debug://sessions.
type Session struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	URL       string       `json:"url"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Location is a resolved (scriptId, line, column) triple, 0-based per
// the inspector wire convention.
type Location struct {
	ScriptID string `json:"scriptId"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// BreakpointRecord is a breakpoint set through set_breakpoint, keyed by
// the id the target inspector returned. Line/Column are the originally
// requested location; ResolvedLocations grows as breakpointResolved
// events arrive and never shrinks. There is no ignore_count field, and
// breakpoints are not de-duplicated (see SetBreakpoint in
// internal/broker).
type BreakpointRecord struct {
	ID                string     `json:"id"`
	ScriptURL         string     `json:"scriptUrl"`
	Line              int        `json:"line"`   // 0-based, requested
	Column            int        `json:"column,omitempty"`
	Condition         string     `json:"condition,omitempty"`
	Verified          bool       `json:"verified"`
	ResolvedLocations []Location `json:"resolvedLocations,omitempty"`
}

// ScriptRecord is a script the session has observed via a scriptParsed
// event, optionally carrying the source-map URL that event declared.
// HasSourceMap reports that a URL was declared, not that it resolved.
type ScriptRecord struct {
	ScriptID  string `json:"scriptId"`
	URL       string `json:"url"`
	HasSourceMap bool `json:"hasSourceMap"`
	SourceMap string `json:"sourceMapUrl,omitempty"`
}

// CallFrame is one frame of a paused call stack, together with the
// scope chain visible from it. OriginalLocation is attached by
// get_call_stack when the owning script has a resolved source map;
// it is absent otherwise.
type CallFrame struct {
	CallFrameID      string            `json:"callFrameId"`
	FunctionName     string            `json:"functionName"`
	ScriptID         string            `json:"scriptId"`
	URL              string            `json:"url"`
	Line             int               `json:"line"`   // 0-based
	Column           int               `json:"column"` // 0-based
	Scopes           []Scope           `json:"scopes"`
	OriginalLocation *OriginalLocation `json:"originalLocation,omitempty"`
}

// AsyncCallFrame is one frame of an async stack trace: a lighter frame
// shape than CallFrame, carrying no scope chain since it was never
// itself on the stack when execution paused.
type AsyncCallFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
}

// AsyncStackTrace is a captured chain of frames that led, via
// asynchronous continuation, to the point execution paused.
type AsyncStackTrace struct {
	Description string           `json:"description,omitempty"`
	CallFrames  []AsyncCallFrame `json:"callFrames"`
}

// Scope is one entry of a call frame's scope chain.
type Scope struct {
	Type               string `json:"type"` // "local", "closure", "global", "block", ...
	Name               string `json:"name,omitempty"`
	VariablesReference int    `json:"variablesReference"`
}

// Variable is a name/value pair belonging to a Scope or a complex
// value's own property list, addressed by VariablesReference for
// further expansion.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference,omitempty"`
}

// PausedSnapshot is the state captured the instant a session enters
// SessionPaused: the reason it paused, the full call stack (each frame
// carrying its own scope chain), the ids of any breakpoints that
// caused the pause, and the async stack trace leading to it, if the
// target reported one.
type PausedSnapshot struct {
	Reason          string           `json:"reason"`
	CallFrames      []CallFrame      `json:"callFrames"`
	Description     string           `json:"description,omitempty"`
	HitBreakpoints  []string         `json:"hitBreakpoints,omitempty"`
	AsyncStackTrace *AsyncStackTrace `json:"asyncStackTrace,omitempty"`
}

// OriginalLocation is the result of a generated->original source-map
// query. HasSourceMap is false when the script has no resolved source
// map at all; Source is empty and Line/Column are zero when the script
// has a map but it has no entry for the requested position. Neither
// case is an error: the script remains debuggable without a
// source-mapped projection either way. Line is 1-based, Column is
// 0-based, matching the source map's own native numbering.
type OriginalLocation struct {
	HasSourceMap bool   `json:"hasSourceMap"`
	Source       string `json:"source,omitempty"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
}

// EvaluateResult is the result of evaluating an expression in either a
// call-frame context or the global context. ExceptionDetails is
// present alongside Result whenever the target reported one; a raised
// exception is not itself an error return.
type EvaluateResult struct {
	Result             string            `json:"result"`
	Type               string            `json:"type,omitempty"`
	VariablesReference int               `json:"variablesReference,omitempty"`
	Exception          bool              `json:"exception,omitempty"`
	ExceptionDetails   *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

// ExceptionDetails describes an exception the target raised while
// evaluating an expression.
type ExceptionDetails struct {
	Text   string `json:"text"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}
