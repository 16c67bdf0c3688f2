package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipali/pipali/internal/audit"
	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/confirm"
	"github.com/pipali/pipali/internal/sandbox"
	"github.com/pipali/pipali/internal/shell"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	store := config.NewStore(dir)
	cfg := config.DefaultSandboxConfig()
	adapter := sandbox.New(cfg)
	gateway := confirm.NewGateway()
	trail, err := audit.NewTrail(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { trail.Close() })
	gateway.SetRecorder(trail)
	engine := shell.NewEngine(adapter, confirm.NewCommandGate(gateway), trail)
	srv := NewServer(store, adapter, gateway, engine, trail)

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	var body map[string]any
	status := getJSON(t, ts.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListAndRespond(t *testing.T) {
	srv, ts := newTestServer(t)

	done := make(chan confirm.Outcome, 1)
	go func() {
		done <- srv.gateway.Request(context.Background(), "conv-1", confirm.Request{
			Message:   "run it?",
			Operation: "execute_command",
			Options:   confirm.ApproveDenyOptions(),
		})
	}()

	// Wait until the request is registered.
	var pending []confirm.Request
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		getJSON(t, ts.URL+"/api/confirmations/conv-1", &pending)
		if len(pending) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, pending, 1)

	payload, _ := json.Marshal(map[string]string{"option_id": "approve"})
	resp, err := http.Post(ts.URL+"/api/confirmations/"+pending[0].ID+"/respond", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	outcome := <-done
	assert.True(t, outcome.Approved)

	// Second response is a no-op and reports not-found.
	resp, err = http.Post(ts.URL+"/api/confirmations/"+pending[0].ID+"/respond", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDismissEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)

	done := make(chan confirm.Outcome, 1)
	go func() {
		done <- srv.gateway.Request(context.Background(), "conv-1", confirm.Request{
			Message: "x", Operation: "execute_command", Options: confirm.ApproveDenyOptions(),
		})
	}()

	var pending []confirm.Request
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		getJSON(t, ts.URL+"/api/confirmations/conv-1", &pending)
		if len(pending) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, pending, 1)

	resp, err := http.Post(ts.URL+"/api/confirmations/"+pending[0].ID+"/dismiss", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	outcome := <-done
	assert.False(t, outcome.Approved)
}

func TestExecuteEndpointValidation(t *testing.T) {
	_, ts := newTestServer(t)

	payload, _ := json.Marshal(shell.Request{Command: ""})
	resp, err := http.Post(ts.URL+"/api/contexts/conv-1/execute", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result shell.ToolResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Contains(t, result.Compiled, "empty command")
}

func TestStopEndpointDrains(t *testing.T) {
	srv, ts := newTestServer(t)

	done := make(chan confirm.Outcome, 1)
	go func() {
		done <- srv.gateway.Request(context.Background(), "conv-1", confirm.Request{
			Message: "x", Operation: "execute_command", Options: confirm.ApproveDenyOptions(),
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(srv.gateway.ListPending("conv-1")) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/contexts/conv-1/stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body["drained"])

	outcome := <-done
	assert.False(t, outcome.Approved)
}

func TestRecentExecutionsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	// A rejected request is still recorded.
	payload, _ := json.Marshal(shell.Request{Command: ""})
	resp, err := http.Post(ts.URL+"/api/contexts/conv-1/execute", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()

	var rows []audit.ExecutionRow
	status := getJSON(t, ts.URL+"/api/audit/executions?limit=10", &rows)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, rows, 1)
	assert.Equal(t, "conv-1", rows[0].ContextKey)
}

func TestSandboxSettingsRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t)

	var cfg config.SandboxConfig
	status := getJSON(t, ts.URL+"/api/users/alice/sandbox", &cfg)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, cfg.Enabled)

	// Disable via PUT; the adapter must reload before the reply.
	enabled := false
	payload, _ := json.Marshal(config.Update{Enabled: &enabled})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/users/alice/sandbox", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.False(t, srv.adapter.Active())

	var updated config.SandboxConfig
	getJSON(t, ts.URL+"/api/users/alice/sandbox", &updated)
	assert.False(t, updated.Enabled)
}
