package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctagard/inspector-broker/internal/brokererr"
	"github.com/ctagard/inspector-broker/pkg/types"
)

// sessionDetail is the debug://sessions/{id} resource body: the
// session summary plus its breakpoints and, if paused, the enriched
// call stack.
type sessionDetail struct {
	types.Session
	Breakpoints []types.BreakpointRecord `json:"breakpoints"`
	CallStack   *types.PausedSnapshot    `json:"callStack,omitempty"`
}

// registerResources wires the two read-only resources that let a client
// poll session state without a tool round-trip.
func (s *Server) registerResources() {
	sessionsResource := mcp.NewResource(
		"debug://sessions",
		"Active debug sessions",
		mcp.WithResourceDescription("The summary of every currently active debug session."),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(sessionsResource, s.handleSessionsResource)

	sessionTemplate := mcp.NewResourceTemplate(
		"debug://sessions/{id}",
		"A single debug session",
		mcp.WithTemplateDescription("The summary of one debug session, addressed by id, with its breakpoints and, if paused, its call stack."),
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcpServer.AddResourceTemplate(sessionTemplate, s.handleSessionResource)
}

func (s *Server) handleSessionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.broker.ListSessions())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSessionResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(request.Params.URI, "debug://sessions/")
	if id == "" || id == request.Params.URI {
		return nil, brokererr.InvalidParameters("resource URI must be of the form debug://sessions/{id}")
	}

	info, err := s.broker.GetSession(id)
	if err != nil {
		return nil, err
	}
	breakpoints, err := s.broker.ListBreakpoints(id)
	if err != nil {
		return nil, err
	}
	detail := sessionDetail{Session: info, Breakpoints: breakpoints}
	if info.State == types.SessionPaused {
		if snapshot, err := s.broker.GetCallStack(id, true); err == nil {
			detail.CallStack = snapshot
		}
	}

	data, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
