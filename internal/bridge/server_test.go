package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rconctl/internal/auth"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/danmuck/rconctl/internal/testutil/rcontest"
	"github.com/danmuck/rconctl/internal/testutil/testlog"
)

func newClient(t *testing.T, srv *rcontest.Server) *rcon.Client {
	t.Helper()
	cfg := rcon.DefaultConfig()
	cfg.Session.RequestTimeout = 150 * time.Millisecond
	cfg.Session.ReconnectDelay.InitialDelay = time.Millisecond
	cfg.Session.ReconnectDelay.MaxDelay = time.Millisecond
	c := rcon.NewClient(cfg)
	t.Cleanup(func() { _ = c.Close() })
	if srv != nil {
		if err := c.Configure(srv.Host(), srv.Port(), "pw"); err != nil {
			t.Fatalf("configure: %v", err)
		}
	}
	return c
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/exec", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func TestExecRelaysCommandAndStripsColors(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{
		Password: "pw",
		Handler: func(cmd string) ([]string, bool) {
			return []string{"§aThere are §c0§a players online: " + cmd}, true
		},
	})
	s := New("bridge-a", newClient(t, srv), Options{StripColors: true})

	rec, out := post(t, s.Handler(), `{"command":"list"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if out["output"] != "There are 0 players online: list" {
		t.Fatalf("unexpected output %v", out["output"])
	}
	if out["success"] != true {
		t.Fatalf("unexpected success %v", out["success"])
	}
}

func TestExecRejectsEmptyCommand(t *testing.T) {
	testlog.Start(t)
	s := New("bridge-a", newClient(t, nil), Options{})
	rec, out := post(t, s.Handler(), `{"command":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if out["kind"] != "invalid" {
		t.Fatalf("unexpected kind %v", out["kind"])
	}
}

func TestExecMapsFailureKinds(t *testing.T) {
	testlog.Start(t)
	unconfigured := New("bridge-a", newClient(t, nil), Options{})
	rec, out := post(t, unconfigured.Handler(), `{"command":"list"}`)
	if rec.Code != http.StatusServiceUnavailable || out["kind"] != "not_configured" {
		t.Fatalf("unconfigured: status=%d out=%v", rec.Code, out)
	}

	srv := rcontest.Start(t, rcontest.Options{
		Password: "pw",
		Handler:  func(string) ([]string, bool) { return nil, false },
	})
	silent := New("bridge-b", newClient(t, srv), Options{})
	rec, out = post(t, silent.Handler(), `{"command":"list"}`)
	if rec.Code != http.StatusGatewayTimeout || out["kind"] != "timeout" {
		t.Fatalf("timeout: status=%d out=%v", rec.Code, out)
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := New("bridge-a", newClient(t, nil), Options{CorsOrigins: []string{" ", "http://example.test"}})

	for path, want := range map[string]int{
		"/health":  http.StatusOK,
		"/ready":   http.StatusServiceUnavailable,
		"/metrics": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s status=%d want %d", path, rec.Code, want)
		}
	}

	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})
	ready := New("bridge-b", newClient(t, srv), Options{})
	rec := httptest.NewRecorder()
	ready.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"ready"`) {
		t.Fatalf("ready: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestNormalizeOrigins(t *testing.T) {
	testlog.Start(t)
	if got := normalizeOrigins(nil); len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins %v", got)
	}
	if got := normalizeOrigins([]string{" http://a ", ""}); len(got) != 1 || got[0] != "http://a" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func TestExecRequiresBearerTokenWhenConfigured(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})
	s := New("bridge-a", newClient(t, srv), Options{Auth: auth.StaticToken{Token: "t0k"}})

	req := httptest.NewRequest(http.MethodPost, "/v1/exec", strings.NewReader(`{"command":"list"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if len(srv.Commands()) != 0 {
		t.Fatalf("unauthorized request reached the server: %v", srv.Commands())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/exec", strings.NewReader(`{"command":"list"}`))
	req.Header.Set("Authorization", "Bearer t0k")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health should stay open, got %d", rec.Code)
	}
}

func TestExecRecoversAfterServerRestart(t *testing.T) {
	testlog.Start(t)
	srv := rcontest.Start(t, rcontest.Options{Password: "pw"})
	addr := srv.Addr()
	client := newClient(t, srv)
	s := New("bridge-a", client, Options{})

	if rec, _ := post(t, s.Handler(), `{"command":"list"}`); rec.Code != http.StatusOK {
		t.Fatalf("first exec status=%d", rec.Code)
	}

	srv.Close()
	deadline := time.Now().Add(2 * time.Second)
	for client.State() != rcon.StateDisconnected {
		if time.Now().After(deadline) {
			t.Fatalf("client never noticed the drop, state=%s", client.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec, out := post(t, s.Handler(), `{"command":"list"}`); rec.Code != http.StatusBadGateway || out["kind"] != "not_connected" {
		t.Fatalf("while down: status=%d out=%v", rec.Code, out)
	}
	if rec, out := post(t, s.Handler(), `{"command":"list"}`); rec.Code != http.StatusServiceUnavailable || out["kind"] != "not_configured" {
		t.Fatalf("still down: status=%d out=%v", rec.Code, out)
	}

	restarted := rcontest.Start(t, rcontest.Options{Addr: addr, Password: "pw"})
	for i := 0; i < 3; i++ {
		rec, out := post(t, s.Handler(), `{"command":"list"}`)
		if rec.Code != http.StatusOK || out["output"] != "list" {
			t.Fatalf("after restart exec %d: status=%d out=%v", i, rec.Code, out)
		}
	}
	if restarted.Accepted() != 1 {
		t.Fatalf("expected one reconnect, accepted=%d", restarted.Accepted())
	}
}
