// Package brokererr provides structured error types for the debug
// broker. These errors include actionable hints that guide the calling
// LLM to correct course when a command fails.
package brokererr

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Code is a machine-readable error category, per the broker's command
// surface contract: every operation fails with exactly one of these.
type Code string

const (
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionInvalidState  Code = "SESSION_INVALID_STATE"
	CodeConnectionFailed     Code = "CONNECTION_FAILED"
	CodeProtocolError        Code = "PROTOCOL_ERROR"
	CodeInvalidParameters    Code = "INVALID_PARAMETERS"
	CodeTimeout              Code = "TIMEOUT"
	CodeBreakpointNotFound   Code = "BREAKPOINT_NOT_FOUND"
	CodeScriptNotFound       Code = "SCRIPT_NOT_FOUND"
	CodeSourceMapError       Code = "SOURCE_MAP_ERROR"
	CodeMaxSessionsReached   Code = "MAX_SESSIONS_REACHED"
)

// Error is a structured error carrying a machine-readable code, a
// human/LLM-readable message, an actionable hint, and optional
// context.
type Error struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Hint    string                 `json:"hint,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails attaches a key/value pair of additional context.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error that produced this one.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// SessionNotFound reports that sessionID does not name a live session.
func SessionNotFound(sessionID string) *Error {
	return &Error{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session %q not found", sessionID),
		Hint:    "Use list_sessions to see active sessions, or connect_session to create a new one.",
		Details: map[string]interface{}{"sessionId": sessionID},
	}
}

// SessionInvalidState reports that an operation was attempted while the
// session was in a state that does not permit it.
func SessionInvalidState(sessionID string, current, required string) *Error {
	return &Error{
		Code:    CodeSessionInvalidState,
		Message: fmt.Sprintf("session %q is %s, which does not permit this operation", sessionID, current),
		Hint:    fmt.Sprintf("This operation requires state %s.", required),
		Details: map[string]interface{}{"sessionId": sessionID, "state": current, "required": required},
	}
}

// ConnectionFailed reports that dialing or maintaining the WebSocket
// connection to the target failed.
func ConnectionFailed(target string, cause error) *Error {
	return &Error{
		Code:    CodeConnectionFailed,
		Message: fmt.Sprintf("could not connect to target %q", target),
		Hint:    "Verify the target is running with its inspector enabled and reachable at that url.",
		Details: map[string]interface{}{"url": target},
		Cause:   cause,
	}
}

// ProtocolError reports an error response from the target (including
// the synthetic one a command receives when the transport closes while
// it is outstanding), a reply of unexpected shape, or an expression
// that raised during set_variable_value's evaluate phase.
func ProtocolError(message string, cause error) *Error {
	return &Error{
		Code:    CodeProtocolError,
		Message: message,
		Cause:   cause,
	}
}

// InvalidParameters reports a missing or malformed command parameter.
func InvalidParameters(message string) *Error {
	return &Error{
		Code:    CodeInvalidParameters,
		Message: message,
	}
}

// Timeout reports that the target did not answer a command within its
// deadline.
func Timeout(command string, cause error) *Error {
	return &Error{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("command %q timed out waiting for the target", command),
		Hint:    "The target may be unresponsive or paused indefinitely elsewhere.",
		Cause:   cause,
	}
}

// BreakpointNotFound reports that a breakpoint id does not name a
// breakpoint tracked by the session.
func BreakpointNotFound(breakpointID string) *Error {
	return &Error{
		Code:    CodeBreakpointNotFound,
		Message: fmt.Sprintf("breakpoint %q not found", breakpointID),
		Details: map[string]interface{}{"breakpointId": breakpointID},
	}
}

// ScriptNotFound reports that a script id or url does not name a
// script the session has observed.
func ScriptNotFound(scriptRef string) *Error {
	return &Error{
		Code:    CodeScriptNotFound,
		Message: fmt.Sprintf("script %q not found", scriptRef),
		Hint:    "Use list_scripts to see scripts the target has parsed so far.",
		Details: map[string]interface{}{"script": scriptRef},
	}
}

// SourceMapError reports that a source-map query could not be
// satisfied — not a hard failure, but a query-level miss the caller
// asked to be told about explicitly.
func SourceMapError(message string, cause error) *Error {
	return &Error{
		Code:    CodeSourceMapError,
		Message: message,
		Cause:   cause,
	}
}

// MaxSessionsReached reports that the registry's concurrency cap would
// be exceeded by admitting another session.
func MaxSessionsReached(max int) *Error {
	return &Error{
		Code:    CodeMaxSessionsReached,
		Message: fmt.Sprintf("maximum of %d concurrent sessions already active", max),
		Hint:    "Disconnect an existing session before starting another.",
		Details: map[string]interface{}{"max": max},
	}
}

// As reports whether err is, or wraps, a *Error, matching stdlib
// errors.As conventions.
func As(err error) (*Error, bool) {
	var be *Error
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}
