package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/internal/session"
)

// Session management handlers

func (s *Server) handleConnectSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("url")
	if err != nil {
		return errResult(brokererr.InvalidParameters("url is required")), nil
	}
	name, _ := request.RequireString("name")

	info, err := s.broker.ConnectSession(ctx, target, name)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(info)
}

func (s *Server) handleDisconnectSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	if err := s.broker.DisconnectSession(sessionID); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"disconnected": sessionID})
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.broker.ListSessions())
}

// Inspection handlers

func (s *Server) handleListScripts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	includeInternal := request.GetBool("includeInternal", false)

	scripts, err := s.broker.ListScripts(sessionID, includeInternal)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(scripts)
}

func (s *Server) handleGetScriptSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	scriptID, err := request.RequireString("scriptId")
	if err != nil {
		return errResult(brokererr.InvalidParameters("scriptId is required")), nil
	}
	preferOriginal := request.GetBool("preferOriginal", false)

	source, err := s.broker.GetScriptSource(ctx, sessionID, scriptID, preferOriginal)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"source": source})
}

func (s *Server) handleGetOriginalLocation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	scriptID, err := request.RequireString("scriptId")
	if err != nil {
		return errResult(brokererr.InvalidParameters("scriptId is required")), nil
	}
	line, err := request.RequireFloat("line")
	if err != nil {
		return errResult(brokererr.InvalidParameters("line (1-based) is required")), nil
	}
	column := optionalInt(request, "column", 0)

	loc, err := s.broker.GetOriginalLocation(sessionID, scriptID, int(line), column)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(loc)
}

func (s *Server) handleGetCallStack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	includeAsync := request.GetBool("includeAsync", true)

	snapshot, err := s.broker.GetCallStack(sessionID, includeAsync)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(snapshot)
}

func (s *Server) handleGetScopeVariables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	callFrameID, err := request.RequireString("callFrameId")
	if err != nil {
		return errResult(brokererr.InvalidParameters("callFrameId is required")), nil
	}
	scopeIndex := optionalInt(request, "scopeIndex", 0)

	vars, err := s.broker.GetScopeVariables(ctx, sessionID, callFrameID, scopeIndex)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(vars)
}

func (s *Server) handleEvaluateExpression(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	expression, err := request.RequireString("expression")
	if err != nil {
		return errResult(brokererr.InvalidParameters("expression is required")), nil
	}
	callFrameID, _ := request.RequireString("callFrameId")

	result, err := s.broker.EvaluateExpression(ctx, sessionID, callFrameID, expression)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(result)
}

// Control handlers (registered only in full capability mode)

func (s *Server) handleSetBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	scriptURL, err := request.RequireString("scriptUrl")
	if err != nil {
		return errResult(brokererr.InvalidParameters("scriptUrl is required")), nil
	}
	line, err := request.RequireFloat("line")
	if err != nil {
		return errResult(brokererr.InvalidParameters("line is required")), nil
	}
	column := optionalInt(request, "column", 0)
	condition, _ := request.RequireString("condition")

	bp, err := s.broker.SetBreakpoint(ctx, sessionID, scriptURL, int(line), column, condition)
	if err != nil {
		return errResult(err), nil
	}
	return jsonResult(bp)
}

func (s *Server) handleRemoveBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	breakpointID, err := request.RequireString("breakpointId")
	if err != nil {
		return errResult(brokererr.InvalidParameters("breakpointId is required")), nil
	}

	if err := s.broker.RemoveBreakpoint(ctx, sessionID, breakpointID); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"removed": breakpointID})
}

func (s *Server) handleContinueExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	if err := s.broker.Continue(ctx, sessionID); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"resumed": sessionID})
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	kindStr, err := request.RequireString("type")
	if err != nil {
		return errResult(brokererr.InvalidParameters("type is required: 'over', 'into', or 'out'")), nil
	}

	var kind session.StepKind
	switch kindStr {
	case "over":
		kind = session.StepOver
	case "into":
		kind = session.StepInto
	case "out":
		kind = session.StepOut
	default:
		return errResult(brokererr.InvalidParameters("type must be 'over', 'into', or 'out'")), nil
	}

	if err := s.broker.Step(ctx, sessionID, kind); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"stepped": sessionID, "type": kindStr})
}

func (s *Server) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	if err := s.broker.Pause(ctx, sessionID); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"pausing": sessionID})
}

func (s *Server) handleSetVariableValue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	callFrameID, err := request.RequireString("callFrameId")
	if err != nil {
		return errResult(brokererr.InvalidParameters("callFrameId is required")), nil
	}
	scopeNumber, err := request.RequireFloat("scopeNumber")
	if err != nil {
		return errResult(brokererr.InvalidParameters("scopeNumber is required")), nil
	}
	name, err := request.RequireString("name")
	if err != nil {
		return errResult(brokererr.InvalidParameters("name is required")), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return errResult(brokererr.InvalidParameters("value is required")), nil
	}

	if err := s.broker.SetVariableValue(ctx, sessionID, callFrameID, int(scopeNumber), name, value); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"set": name})
}

func (s *Server) handleSetPauseOnExceptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(request)
	if err != nil {
		return errResult(err), nil
	}
	modeStr, err := request.RequireString("mode")
	if err != nil {
		return errResult(brokererr.InvalidParameters("mode is required: 'none', 'all', or 'uncaught'")), nil
	}

	mode := session.PauseOnExceptionsMode(modeStr)
	switch mode {
	case session.PauseNone, session.PauseAll, session.PauseUncaught:
	default:
		return errResult(brokererr.InvalidParameters("mode must be 'none', 'all', or 'uncaught'")), nil
	}

	if err := s.broker.SetPauseOnExceptions(ctx, sessionID, mode); err != nil {
		return errResult(err), nil
	}
	return jsonResult(map[string]interface{}{"mode": modeStr})
}

func requireSessionID(request mcp.CallToolRequest) (string, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return "", brokererr.InvalidParameters("sessionId is required. Use list_sessions to see active sessions, or connect_session to create one.")
	}
	return sessionID, nil
}

// optionalInt reads a numeric argument that RequireFloat would otherwise
// demand, falling back to def when the client omitted it.
func optionalInt(request mcp.CallToolRequest, name string, def int) int {
	v, err := request.RequireFloat(name)
	if err != nil {
		return def
	}
	return int(v)
}

func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
