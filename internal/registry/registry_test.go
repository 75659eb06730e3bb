package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// startFakeTarget runs a minimal inspector that answers every request
// with an empty result, enough to satisfy Session.New's handshake.
func startFakeTarget(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID int `json:"id"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			resp, _ := json.Marshal(map[string]interface{}{
				"id":     req.ID,
				"result": map[string]interface{}{},
			})
			if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

// TestConnectRejectsDisallowedScheme verifies the admission policy
// rejects a non-ws(s) scheme before ever dialing.
func TestConnectRejectsDisallowedScheme(t *testing.T) {
	r := New(DefaultAdmissionPolicy(), 4, time.Second)
	_, err := r.Connect(context.Background(), "http://localhost:9229/", "")
	if err == nil {
		t.Fatal("expected an error for a non-websocket scheme")
	}
}

// TestConnectRejectsUnlistedHost verifies a host outside the allow-list
// is rejected unless AllowUnlisted is set.
func TestConnectRejectsUnlistedHost(t *testing.T) {
	r := New(DefaultAdmissionPolicy(), 4, time.Second)
	_, err := r.Connect(context.Background(), "ws://example.com:9229/", "")
	if err == nil {
		t.Fatal("expected an error for a host outside the allow-list")
	}
}

// TestConnectAndGet verifies a successfully connected session is
// registered and retrievable, and its id is populated.
func TestConnectAndGet(t *testing.T) {
	target := startFakeTarget(t)
	r := New(AdmissionPolicy{AllowUnlisted: true}, 4, time.Second)

	sess, err := r.Connect(context.Background(), target, "test session")
	if err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	info := sess.Info()
	if info.ID == "" {
		t.Fatal("expected a non-empty session id")
	}

	got, err := r.Get(info.ID)
	if err != nil {
		t.Fatalf("expected to find session %s: %v", info.ID, err)
	}
	if got != sess {
		t.Fatal("expected Get to return the same session instance")
	}
}

// TestGetUnknownSessionFails verifies looking up a nonexistent id
// reports SESSION_NOT_FOUND rather than a nil session.
func TestGetUnknownSessionFails(t *testing.T) {
	r := New(DefaultAdmissionPolicy(), 4, time.Second)
	if _, err := r.Get("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown session id")
	}
}

// TestMaxSessionsEnforced verifies the concurrency cap is honored.
func TestMaxSessionsEnforced(t *testing.T) {
	target := startFakeTarget(t)
	r := New(AdmissionPolicy{AllowUnlisted: true}, 1, time.Second)

	if _, err := r.Connect(context.Background(), target, ""); err != nil {
		t.Fatalf("unexpected error on first connect: %v", err)
	}
	if _, err := r.Connect(context.Background(), target, ""); err == nil {
		t.Fatal("expected the second connect to fail once the cap is reached")
	}
}

// TestDisconnectRemovesSession verifies Disconnect both closes the
// session and removes it from List.
func TestDisconnectRemovesSession(t *testing.T) {
	target := startFakeTarget(t)
	r := New(AdmissionPolicy{AllowUnlisted: true}, 4, time.Second)

	sess, err := r.Connect(context.Background(), target, "")
	if err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	if err := r.Disconnect(sess.Info().ID); err != nil {
		t.Fatalf("unexpected disconnect error: %v", err)
	}
	if len(r.List()) != 0 {
		t.Fatal("expected no sessions after disconnect")
	}
}

// TestConcurrentConnectIsSafe exercises the registry's map under
// concurrent connects.
func TestConcurrentConnectIsSafe(t *testing.T) {
	target := startFakeTarget(t)
	r := New(AdmissionPolicy{AllowUnlisted: true}, 20, time.Second)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := r.Connect(context.Background(), target, "")
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("unexpected error from concurrent connect: %v", err)
		}
	}
	if len(r.List()) != 10 {
		t.Fatalf("expected 10 sessions, got %d", len(r.List()))
	}
}
