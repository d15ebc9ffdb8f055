package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"devpulse/internal/config"
	"devpulse/internal/db"
	"devpulse/internal/engine"
	"devpulse/internal/migrate"
	"devpulse/internal/server"
)

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

	handler, err := server.New(server.Config{
		Engine:   eng,
		BasePath: "/api",
		Auth:     server.AuthConfig{AllowHeaderIdentity: true},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		handler.Close()
		conn.Close()
	})

	return testServer{
		baseURL: "http://" + ln.Addr().String(),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// doJSON issues a request with the given workspace identity header and
// returns the status code and raw body.
func (ts testServer) doJSON(t *testing.T, method, path, userID string, body any) (int, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.baseURL+path, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func TestHealthNeedsNoIdentity(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.doJSON(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health status = %d, want 200", status)
	}
}

func TestLoginReportsNewUserOnce(t *testing.T) {
	ts := newTestServer(t)

	status, raw := ts.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dana@x.com"})
	if status != http.StatusOK {
		t.Fatalf("login status = %d, body %s", status, raw)
	}
	var first struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		IsNewUser bool   `json:"isNewUser"`
	}
	if err := json.Unmarshal(raw, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !first.IsNewUser || first.Name != "dana" {
		t.Fatalf("unexpected first login: %s", raw)
	}

	status, raw = ts.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dana@x.com"})
	if status != http.StatusOK {
		t.Fatalf("second login status = %d", status)
	}
	// The flag is omitted for a returning developer, not reported false.
	if bytes.Contains(raw, []byte("isNewUser")) {
		t.Fatalf("second login still flags a new user: %s", raw)
	}
}

func TestScopedEndpointsRejectMissingIdentity(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/metrics", "/api/sprints", "/api/debt", "/api/pr/volume", "/api/flow/wip"} {
		status, raw := ts.doJSON(t, http.MethodGet, path, "", nil)
		if status != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, status)
		}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("decode %s error: %v (%s)", path, err, raw)
		}
		if envelope.Error.Code != "unauthorized" {
			t.Fatalf("%s error code = %q, want unauthorized", path, envelope.Error.Code)
		}
	}
}

func TestBottlenecksNeedNoIdentity(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.doJSON(t, http.MethodGet, "/api/flow/bottlenecks", "", nil)
	if status != http.StatusOK {
		t.Fatalf("bottlenecks status = %d, want 200", status)
	}
}

func TestDebtIsolationAcrossWorkspaces(t *testing.T) {
	ts := newTestServer(t)

	status, raw := ts.doJSON(t, http.MethodPost, "/api/debt", "team-a", map[string]any{
		"title": "flaky pipeline", "priority": "high",
	})
	if status != http.StatusCreated {
		t.Fatalf("create debt status = %d, body %s", status, raw)
	}
	var item struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		t.Fatalf("decode: %v", err)
	}

	status, raw = ts.doJSON(t, http.MethodGet, "/api/debt", "team-b", nil)
	if status != http.StatusOK {
		t.Fatalf("list debt status = %d", status)
	}
	var foreign []json.RawMessage
	if err := json.Unmarshal(raw, &foreign); err != nil {
		t.Fatalf("decode list: %v (%s)", err, raw)
	}
	if len(foreign) != 0 {
		t.Fatalf("team-b sees team-a's debt: %s", raw)
	}

	// Resolving another workspace's item looks like a missing item.
	status, _ = ts.doJSON(t, http.MethodPut, "/api/debt/"+item.ID+"/resolve", "team-b", nil)
	if status != http.StatusNotFound {
		t.Fatalf("cross-workspace resolve status = %d, want 404", status)
	}

	status, raw = ts.doJSON(t, http.MethodPut, "/api/debt/"+item.ID+"/resolve", "team-a", nil)
	if status != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", status, raw)
	}
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != "Debt resolved" {
		t.Fatalf("message = %q, want %q", msg.Message, "Debt resolved")
	}
}

func TestTaskOnForeignSprintForbidden(t *testing.T) {
	ts := newTestServer(t)

	status, raw := ts.doJSON(t, http.MethodPost, "/api/sprints", "team-a", map[string]string{
		"name": "Sprint 1", "start_date": "2024-02-01", "end_date": "2024-02-14",
	})
	if status != http.StatusCreated {
		t.Fatalf("create sprint status = %d, body %s", status, raw)
	}
	var sprint struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &sprint); err != nil {
		t.Fatalf("decode: %v", err)
	}

	foreignStatus, foreignBody := ts.doJSON(t, http.MethodPost, "/api/sprints/"+sprint.ID+"/tasks", "team-b", map[string]any{
		"title": "hijack",
	})
	if foreignStatus != http.StatusForbidden {
		t.Fatalf("foreign sprint task status = %d, want 403", foreignStatus)
	}

	// A nonexistent sprint gets the identical response, so another
	// workspace cannot probe which ids exist.
	missingStatus, missingBody := ts.doJSON(t, http.MethodPost, "/api/sprints/missing/tasks", "team-b", map[string]any{
		"title": "nowhere",
	})
	if missingStatus != http.StatusForbidden {
		t.Fatalf("missing sprint task status = %d, want 403", missingStatus)
	}
	if !bytes.Equal(foreignBody, missingBody) {
		t.Fatalf("foreign and missing sprints are distinguishable:\n%s\n%s", foreignBody, missingBody)
	}
}

func TestMetricsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	status, raw := ts.doJSON(t, http.MethodGet, "/api/metrics", "team-a", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	var m struct {
		DeploymentFrequency int     `json:"deployment_frequency"`
		ChangeFailureRate   float64 `json:"change_failure_rate"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode: %v (%s)", err, raw)
	}
	if m.DeploymentFrequency != 0 || m.ChangeFailureRate != 0 {
		t.Fatalf("fresh workspace metrics not zero: %s", raw)
	}

	status, raw = ts.doJSON(t, http.MethodPost, "/api/metrics/deployments", "team-a", map[string]any{})
	if status != http.StatusCreated {
		t.Fatalf("record deployment status = %d, body %s", status, raw)
	}
	var rec struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Message != "Deployment recorded" || rec.ID == "" {
		t.Fatalf("unexpected response: %s", raw)
	}

	status, raw = ts.doJSON(t, http.MethodGet, "/api/metrics", "team-a", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.DeploymentFrequency != 1 {
		t.Fatalf("deployment_frequency = %d, want 1", m.DeploymentFrequency)
	}
}

func TestIncidentValidation(t *testing.T) {
	ts := newTestServer(t)

	status, raw := ts.doJSON(t, http.MethodPost, "/api/metrics/incidents", "team-a", map[string]any{})
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		t.Fatalf("empty incident status = %d, body %s", status, raw)
	}

	status, raw = ts.doJSON(t, http.MethodPost, "/api/metrics/incidents", "team-a", map[string]any{
		"description": "checkout down",
	})
	if status != http.StatusCreated {
		t.Fatalf("incident status = %d, body %s", status, raw)
	}
	if !bytes.Contains(raw, []byte("Incident reported")) {
		t.Fatalf("unexpected response: %s", raw)
	}
}

func TestCloseStopsWebhookDispatcher(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if _, err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	srv, err := server.New(server.Config{
		Engine: engine.New(conn),
		Auth:   server.AuthConfig{AllowHeaderIdentity: true},
		Webhooks: []config.WebhookConfig{
			{URL: "http://127.0.0.1:1/unreachable"},
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	// Close blocks until the dispatch loop exits; a hung goroutine shows
	// up here as a timeout.
	closed := make(chan struct{})
	go func() {
		srv.Close()
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the webhook dispatcher")
	}
}

func TestRecentEvents(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		status, _ := ts.doJSON(t, http.MethodPost, "/api/debt", "team-a", map[string]any{
			"title": fmt.Sprintf("debt %d", i),
		})
		if status != http.StatusCreated {
			t.Fatalf("create debt status = %d", status)
		}
	}

	status, raw := ts.doJSON(t, http.MethodGet, "/api/events/recent?limit=2", "team-a", nil)
	if status != http.StatusOK {
		t.Fatalf("events status = %d, body %s", status, raw)
	}
	var events []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		t.Fatalf("decode: %v (%s)", err, raw)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Type != "debt.created" {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	}

	// Another workspace's audit trail stays empty.
	status, raw = ts.doJSON(t, http.MethodGet, "/api/events/recent", "team-b", nil)
	if status != http.StatusOK {
		t.Fatalf("events status = %d", status)
	}
	var foreign []json.RawMessage
	if err := json.Unmarshal(raw, &foreign); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(foreign) != 0 {
		t.Fatalf("team-b sees team-a's events: %s", raw)
	}
}
