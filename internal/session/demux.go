package session

import (
	"encoding/json"

	"github.com/ctagard/inspector-broker/internal/sourcemap"
	"github.com/ctagard/inspector-broker/pkg/types"
)

type cdpLocation struct {
	ScriptID     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

type cdpRemoteObject struct {
	Type                string          `json:"type"`
	Value               json.RawMessage `json:"value,omitempty"`
	UnserializableValue string          `json:"unserializableValue,omitempty"`
	Description         string          `json:"description,omitempty"`
	ObjectID            string          `json:"objectId,omitempty"`
}

type cdpScope struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Object cdpRemoteObject `json:"object"`
}

type cdpCallFrame struct {
	CallFrameID  string      `json:"callFrameId"`
	FunctionName string      `json:"functionName"`
	Location     cdpLocation `json:"location"`
	ScopeChain   []cdpScope  `json:"scopeChain"`
	URL          string      `json:"url"`
}

type cdpAsyncCallFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

type cdpAsyncStackTrace struct {
	Description string               `json:"description,omitempty"`
	CallFrames  []cdpAsyncCallFrame  `json:"callFrames"`
}

type pausedParams struct {
	CallFrames      []cdpCallFrame      `json:"callFrames"`
	Reason          string              `json:"reason"`
	Data            json.RawMessage     `json:"data,omitempty"`
	HitBreakpoints  []string            `json:"hitBreakpoints,omitempty"`
	AsyncStackTrace *cdpAsyncStackTrace `json:"asyncStackTrace,omitempty"`
}

func (s *Session) onPaused(raw json.RawMessage) {
	var p pausedParams
	if err := json.Unmarshal(raw, &p); err != nil {
		logWarn("malformed Debugger.paused event: %v", err)
		return
	}

	snapshot := &types.PausedSnapshot{
		Reason:         p.Reason,
		HitBreakpoints: p.HitBreakpoints,
	}
	if p.AsyncStackTrace != nil {
		async := &types.AsyncStackTrace{Description: p.AsyncStackTrace.Description}
		for _, acf := range p.AsyncStackTrace.CallFrames {
			async.CallFrames = append(async.CallFrames, types.AsyncCallFrame{
				FunctionName: acf.FunctionName,
				ScriptID:     acf.ScriptID,
				URL:          acf.URL,
				Line:         acf.LineNumber,
				Column:       acf.ColumnNumber,
			})
		}
		snapshot.AsyncStackTrace = async
	}

	for _, cf := range p.CallFrames {
		frame := types.CallFrame{
			CallFrameID:  cf.CallFrameID,
			FunctionName: cf.FunctionName,
			ScriptID:     cf.Location.ScriptID,
			URL:          cf.URL,
			Line:         cf.Location.LineNumber,
			Column:       cf.Location.ColumnNumber,
		}

		for _, sc := range cf.ScopeChain {
			ref := 0
			if sc.Object.ObjectID != "" {
				ref = s.allocRef(sc.Object.ObjectID)
			}
			frame.Scopes = append(frame.Scopes, types.Scope{
				Type:               sc.Type,
				Name:               sc.Name,
				VariablesReference: ref,
			})
		}

		snapshot.CallFrames = append(snapshot.CallFrames, frame)
	}

	s.mu.Lock()
	s.paused = snapshot
	s.state = types.SessionPaused
	s.mu.Unlock()
}

func (s *Session) onResumed() {
	s.mu.Lock()
	s.paused = nil
	if s.state != types.SessionDisconnected {
		s.state = types.SessionRunning
	}
	s.mu.Unlock()
}

type scriptParsedParams struct {
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	SourceMapURL string `json:"sourceMapURL"`
}

func (s *Session) onScriptParsed(raw json.RawMessage) {
	var p scriptParsedParams
	if err := json.Unmarshal(raw, &p); err != nil {
		logWarn("malformed Debugger.scriptParsed event: %v", err)
		return
	}

	rec := &types.ScriptRecord{
		ScriptID:  p.ScriptID,
		URL:       p.URL,
		HasSourceMap: p.SourceMapURL != "",
		SourceMap: p.SourceMapURL,
	}

	s.mu.Lock()
	s.scripts[p.ScriptID] = rec
	if p.URL != "" {
		s.scriptsByURL[p.URL] = rec
	}
	s.mu.Unlock()

	if p.SourceMapURL != "" {
		scriptID, scriptURL, sourceMapURL, fetch := p.ScriptID, p.URL, p.SourceMapURL, s.fetch
		go func() {
			engine := sourcemap.Load(scriptURL, sourceMapURL, fetch)
			s.mu.Lock()
			s.sourceMaps[scriptID] = engine
			s.mu.Unlock()
		}()
	}
}

type breakpointResolvedParams struct {
	BreakpointID string      `json:"breakpointId"`
	Location     cdpLocation `json:"location"`
}

func (s *Session) onBreakpointResolved(raw json.RawMessage) {
	var p breakpointResolvedParams
	if err := json.Unmarshal(raw, &p); err != nil {
		logWarn("malformed Debugger.breakpointResolved event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bp, ok := s.breakpoints[p.BreakpointID]; ok {
		bp.Verified = true
		bp.ResolvedLocations = append(bp.ResolvedLocations, types.Location{
			ScriptID: p.Location.ScriptID,
			Line:     p.Location.LineNumber,
			Column:   p.Location.ColumnNumber,
		})
	}
}
