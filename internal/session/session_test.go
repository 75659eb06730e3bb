package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctagard/inspector-broker/pkg/types"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type fakeRequest struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type fakeTarget struct {
	srv  *httptest.Server
	conn *websocket.Conn
	mu   sync.Mutex
}

func startFakeTarget(t *testing.T) *fakeTarget {
	t.Helper()
	ft := &fakeTarget{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ft.mu.Lock()
		ft.conn = conn
		ft.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req fakeRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			ft.respond(req.ID, map[string]interface{}{})
		}
	}))
	t.Cleanup(srv.Close)
	ft.srv = srv
	return ft
}

func (ft *fakeTarget) url() string {
	return "ws" + strings.TrimPrefix(ft.srv.URL, "http") + "/"
}

func (ft *fakeTarget) respond(id int, result interface{}) {
	data, _ := json.Marshal(map[string]interface{}{"id": id, "result": result})
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.conn != nil {
		ft.conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (ft *fakeTarget) event(method string, params interface{}) {
	data, _ := json.Marshal(map[string]interface{}{"method": method, "params": params})
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.conn != nil {
		ft.conn.WriteMessage(websocket.TextMessage, data)
	}
}

// TestNewEnablesDomainsAndConnects verifies I1: a new session reaches
// CONNECTED only after both Debugger.enable and Runtime.enable succeed.
func TestNewEnablesDomainsAndConnects(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-1", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != types.SessionConnected {
		t.Fatalf("expected CONNECTED, got %s", sess.State())
	}
	if sess.Info().ID != "sess-1" {
		t.Fatalf("expected session id to round-trip, got %q", sess.Info().ID)
	}
}

// TestSetBreakpointRejectedAfterDisconnect verifies the state gate
// refuses commands once a session has moved to DISCONNECTED.
func TestSetBreakpointRejectedAfterDisconnect(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-2", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// httptest does not track hijacked (upgraded) connections, so the
	// WebSocket is closed directly rather than via CloseClientConnections.
	target.mu.Lock()
	target.conn.Close()
	target.mu.Unlock()
	<-sess.Stopped()

	if sess.State() != types.SessionDisconnected {
		t.Fatalf("expected DISCONNECTED, got %s", sess.State())
	}

	if _, err := sess.SetBreakpoint(context.Background(), "https://example.test/app.js", 1, 0, ""); err == nil {
		t.Fatal("expected set_breakpoint to fail on a disconnected session")
	}
}

// TestGetCallStackRequiresPaused verifies get_call_stack reports an
// invalid-state error rather than a nil dereference when not paused.
func TestGetCallStackRequiresPaused(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-3", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := sess.GetCallStack(true); err == nil {
		t.Fatal("expected an error when not paused")
	}
}

// TestPausedSnapshotNilOutsidePause verifies I3: PausedSnapshot is
// non-nil exactly while the session is PAUSED.
func TestPausedSnapshotNilOutsidePause(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-4", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.PausedSnapshot() != nil {
		t.Fatal("expected a nil paused snapshot before any Debugger.paused event")
	}
}

// TestToSourceMapLineRoundTrips verifies the 0-based/1-based line
// conversion boundary is its own inverse.
func TestToSourceMapLineRoundTrips(t *testing.T) {
	for wireLine := 0; wireLine < 5; wireLine++ {
		smLine := toSourceMapLine(wireLine)
		if got := toWireLine(smLine); got != wireLine {
			t.Fatalf("round trip failed for wireLine=%d: got %d after converting through %d", wireLine, got, smLine)
		}
	}
}

// trivialSourceMap places its one segment at generated line 2 (one
// leading empty line-group), mapping to original line 1, column 0
// (lines 1-based, columns 0-based).
const trivialSourceMap = `{
  "version": 3,
  "sources": ["app.ts"],
  "sourcesContent": ["const x = 1;"],
  "names": [],
  "mappings": ";AAAA"
}`

func inlineSourceMapURL(json string) string {
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(json))
}

// TestGetOriginalLocationWithSourceMap pins the get_original_location
// boundary (I6): the command's line parameter is already in the source
// map's own numbering and is queried unconverted; the original line
// comes back 1-based and the column 0-based, exactly as the map
// reports them.
func TestGetOriginalLocationWithSourceMap(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-5", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target.event("Debugger.scriptParsed", map[string]interface{}{
		"scriptId":     "s-1",
		"url":          "https://example.test/app.js",
		"sourceMapURL": inlineSourceMapURL(trivialSourceMap),
	})

	var loc *types.OriginalLocation
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loc, err = sess.GetOriginalLocation("s-1", 2, 0)
		if err == nil && loc.HasSourceMap && loc.Source != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("unexpected get_original_location error: %v", err)
	}
	if !loc.HasSourceMap || loc.Source != "app.ts" || loc.Line != 1 || loc.Column != 0 {
		t.Fatalf("unexpected original location: %+v", loc)
	}
}

// TestGetOriginalLocationNoSourceMapIsNotAnError verifies get_original_location
// always succeeds: a script with no resolved source map reports
// HasSourceMap=false rather than failing.
func TestGetOriginalLocationNoSourceMapIsNotAnError(t *testing.T) {
	target := startFakeTarget(t)
	sess, err := New(context.Background(), "sess-6", "", target.url(), time.Second, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	target.event("Debugger.scriptParsed", map[string]interface{}{
		"scriptId": "s-1",
		"url":      "https://example.test/nomap.js",
	})

	var loc *types.OriginalLocation
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loc, err = sess.GetOriginalLocation("s-1", 1, 0)
		if err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("expected get_original_location to succeed without a source map, got error: %v", err)
	}
	if loc.HasSourceMap {
		t.Fatalf("expected HasSourceMap=false, got %+v", loc)
	}
}
