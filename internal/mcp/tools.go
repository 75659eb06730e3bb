package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the command surface's tools, gating the
// control tools behind the configured capability mode.
func (s *Server) registerTools() {
	s.registerConnectSession()
	s.registerDisconnectSession()
	s.registerListSessions()

	s.registerListScripts()
	s.registerGetScriptSource()
	s.registerGetOriginalLocation()
	s.registerGetCallStack()
	s.registerGetScopeVariables()
	s.registerEvaluateExpression()

	if s.config.CanUseControlTools() {
		s.registerSetBreakpoint()
		s.registerRemoveBreakpoint()
		s.registerContinueExecution()
		s.registerStep()
		s.registerPause()
		s.registerSetVariableValue()
		s.registerSetPauseOnExceptions()
	}
}

func (s *Server) registerConnectSession() {
	tool := mcp.NewTool("connect_session",
		mcp.WithDescription("Connect to a target's WebSocket inspector endpoint and start a debug session. Returns sessionId needed for all other tools."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The target's ws:// or wss:// inspector URL, e.g. ws://127.0.0.1:9229/abcd-1234"),
		),
		mcp.WithString("name",
			mcp.Description("An optional human-readable name for the session"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleConnectSession)
}

func (s *Server) registerDisconnectSession() {
	tool := mcp.NewTool("disconnect_session",
		mcp.WithDescription("Disconnect a debug session and close its connection to the target."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
	)
	s.mcpServer.AddTool(tool, s.handleDisconnectSession)
}

func (s *Server) registerListSessions() {
	tool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active debug sessions."),
	)
	s.mcpServer.AddTool(tool, s.handleListSessions)
}

func (s *Server) registerListScripts() {
	tool := mcp.NewTool("list_scripts",
		mcp.WithDescription("List every script the target has parsed so far."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithBoolean("includeInternal", mcp.Description("Include scripts with no url, a node: or internal/ url, or a url containing node_modules (default: false)")),
	)
	s.mcpServer.AddTool(tool, s.handleListScripts)
}

func (s *Server) registerGetScriptSource() {
	tool := mcp.NewTool("get_script_source",
		mcp.WithDescription("Get a script's source text, or its original (pre-bundled) source when a resolved source map declares exactly one original source."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("scriptId", mcp.Required(), mcp.Description("The script ID, from list_scripts")),
		mcp.WithBoolean("preferOriginal", mcp.Description("Prefer the source-mapped original source when available (default: false)")),
	)
	s.mcpServer.AddTool(tool, s.handleGetScriptSource)
}

func (s *Server) registerGetOriginalLocation() {
	tool := mcp.NewTool("get_original_location",
		mcp.WithDescription("Map a generated (bundled/transpiled) position to its original source position using the script's source map."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("scriptId", mcp.Required(), mcp.Description("The script ID")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based generated line number")),
		mcp.WithNumber("column", mcp.Description("0-based generated column number")),
	)
	s.mcpServer.AddTool(tool, s.handleGetOriginalLocation)
}

func (s *Server) registerGetCallStack() {
	tool := mcp.NewTool("get_call_stack",
		mcp.WithDescription("Get the paused session's call stack, enriched with original source locations where available. Requires the session to be PAUSED."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithBoolean("includeAsync", mcp.Description("Include the async stack trace when the target reported one (default: true)")),
	)
	s.mcpServer.AddTool(tool, s.handleGetCallStack)
}

func (s *Server) registerGetScopeVariables() {
	tool := mcp.NewTool("get_scope_variables",
		mcp.WithDescription("Resolve the variables in a scope chain entry of a paused call frame. Requires the session to be PAUSED."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("callFrameId", mcp.Required(), mcp.Description("Call frame ID from get_call_stack")),
		mcp.WithNumber("scopeIndex", mcp.Description("Index into the call frame's scope chain (default: 0)")),
	)
	s.mcpServer.AddTool(tool, s.handleGetScopeVariables)
}

func (s *Server) registerEvaluateExpression() {
	tool := mcp.NewTool("evaluate_expression",
		mcp.WithDescription("Evaluate an expression, either against a paused call frame (pass callFrameId) or in the target's global context (omit callFrameId)."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("expression", mcp.Required(), mcp.Description("The expression to evaluate")),
		mcp.WithString("callFrameId", mcp.Description("Call frame ID from get_call_stack, for frame-local evaluation")),
	)
	s.mcpServer.AddTool(tool, s.handleEvaluateExpression)
}

func (s *Server) registerSetBreakpoint() {
	tool := mcp.NewTool("set_breakpoint",
		mcp.WithDescription("Set a breakpoint at a script url and line. Does not deduplicate: repeated calls create distinct breakpoints."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("scriptUrl", mcp.Required(), mcp.Description("The script's url, as seen in list_scripts")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line number")),
		mcp.WithNumber("column", mcp.Description("0-based column number")),
		mcp.WithString("condition", mcp.Description("Only pause when this expression is truthy")),
	)
	s.mcpServer.AddTool(tool, s.handleSetBreakpoint)
}

func (s *Server) registerRemoveBreakpoint() {
	tool := mcp.NewTool("remove_breakpoint",
		mcp.WithDescription("Remove a previously set breakpoint."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("breakpointId", mcp.Required(), mcp.Description("The breakpoint ID, from set_breakpoint")),
	)
	s.mcpServer.AddTool(tool, s.handleRemoveBreakpoint)
}

func (s *Server) registerContinueExecution() {
	tool := mcp.NewTool("continue_execution",
		mcp.WithDescription("Resume a paused session's execution."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
	)
	s.mcpServer.AddTool(tool, s.handleContinueExecution)
}

func (s *Server) registerStep() {
	tool := mcp.NewTool("step",
		mcp.WithDescription("Execute a single step. type='over' steps to the next line, 'into' enters a called function, 'out' exits the current function."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Step type: 'over', 'into', or 'out'")),
	)
	s.mcpServer.AddTool(tool, s.handleStep)
}

func (s *Server) registerPause() {
	tool := mcp.NewTool("pause",
		mcp.WithDescription("Request the target suspend at its next opportunity."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
	)
	s.mcpServer.AddTool(tool, s.handlePause)
}

func (s *Server) registerSetVariableValue() {
	tool := mcp.NewTool("set_variable_value",
		mcp.WithDescription("Modify a paused call frame's local variable. Requires the session to be PAUSED."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("callFrameId", mcp.Required(), mcp.Description("Call frame ID from get_call_stack")),
		mcp.WithNumber("scopeNumber", mcp.Required(), mcp.Description("Index of the scope in the call frame's scope chain")),
		mcp.WithString("name", mcp.Required(), mcp.Description("The variable name to modify")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The new value, as a JavaScript expression")),
	)
	s.mcpServer.AddTool(tool, s.handleSetVariableValue)
}

func (s *Server) registerSetPauseOnExceptions() {
	tool := mcp.NewTool("set_pause_on_exceptions",
		mcp.WithDescription("Configure whether and how the target pauses on thrown exceptions."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("The session ID")),
		mcp.WithString("mode", mcp.Required(), mcp.Description("One of 'none', 'all', or 'uncaught'")),
	)
	s.mcpServer.AddTool(tool, s.handleSetPauseOnExceptions)
}
