// Package mcp provides the Model Context Protocol (MCP) server
// implementation.
//
// This package exposes the debug broker's command surface through MCP
// tools that an AI assistant or other MCP client can call, plus two
// resources for polling session state without a tool round-trip:
//
// Session management:
//   - connect_session: dial a target inspector and start a session
//   - disconnect_session: tear down a session
//   - list_sessions: list active sessions
//
// Inspection:
//   - get_call_stack, get_scope_variables, get_script_source,
//     list_scripts, get_original_location, evaluate_expression
//
// Control (full mode only):
//   - set_breakpoint, remove_breakpoint, continue_execution, step,
//     pause, set_variable_value, set_pause_on_exceptions
//
// Resources:
//   - debug://sessions
//   - debug://sessions/{id}
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ctagard/inspector-broker/internal/broker"
	"github.com/ctagard/inspector-broker/internal/config"
	"github.com/ctagard/inspector-broker/internal/registry"
)

// Server wraps the MCP server with the debug broker's command surface.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
	broker    *broker.Broker
	config    *config.Config
}

// NewServer wires a session registry and broker per cfg and registers
// every tool and resource the command surface exposes.
func NewServer(cfg *config.Config) *Server {
	mcpServer := server.NewMCPServer(
		"inspector-broker",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithRecovery(),
	)

	reg := registry.New(cfg.AdmissionPolicy(), cfg.MaxSessions, cfg.CommandTimeout())
	b := broker.New(reg)

	s := &Server{
		mcpServer: mcpServer,
		registry:  reg,
		broker:    b,
		config:    cfg,
	}

	s.registerTools()
	s.registerResources()

	return s
}

// ServeStdio starts the server using the stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down every live session.
func (s *Server) Close() {
	s.registry.Close()
}

// Registry returns the underlying session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config {
	return s.config
}
