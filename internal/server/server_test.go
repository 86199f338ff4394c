package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/mcp"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdSleeper blocks every step until the context is cancelled, keeping a
// run in flight for conflict tests.
func holdSleeper(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestServer(t *testing.T, sleep campaign.Sleeper) (*httptest.Server, *campaign.Orchestrator) {
	t.Helper()
	cfg := campaign.DefaultConfig()
	cfg.Timings = campaign.Timings{}
	o := campaign.NewOrchestrator(cfg)
	if sleep != nil {
		o.SetSleeper(sleep)
	}
	t.Cleanup(o.Close)

	srv := New(Config{Cluster: o, Version: "test"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, o
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var env APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Error
}

func TestStartBuild_Accepted(t *testing.T) {
	ts, o := newTestServer(t, nil)

	resp := post(t, ts.URL+"/v1/build", `{"requirement":"Build a custom CRM"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var st runStatus
	decodeData(t, resp, &st)
	assert.NotEmpty(t, st.RunID)

	o.Wait()
	snap := o.Snapshot()
	assert.Equal(t, campaign.PhaseComplete, snap.Phase)
	assert.Equal(t, 1, snap.Metrics.ToolsGenerated)
}

func TestStartBuild_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/v1/build", `{"requirement":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidInput, decodeError(t, resp).Code)

	resp = post(t, ts.URL+"/v1/build", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/v1/build", `{"requirement":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartBuild_Conflict(t *testing.T) {
	ts, o := newTestServer(t, holdSleeper)

	resp := post(t, ts.URL+"/v1/build", `{"requirement":"first"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = post(t, ts.URL+"/v1/build", `{"requirement":"second"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrCodeConflict, decodeError(t, resp).Code)

	resp = post(t, ts.URL+"/v1/build/stop", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st runStatus
	decodeData(t, resp, &st)
	assert.Equal(t, campaign.PhaseStopped, st.Phase)
	assert.False(t, st.Running)
	o.Wait()
}

func TestSubmitIntent(t *testing.T) {
	ts, o := newTestServer(t, nil)

	resp := post(t, ts.URL+"/v1/intent", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/v1/intent", `{"prompt":"create a file"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	o.Wait()

	res := o.Snapshot().IntentResult
	require.NotNil(t, res)
	assert.Equal(t, "create a file", res.Prompt)
}

func TestSnapshotAndServers(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/v1/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap campaign.Snapshot
	decodeData(t, resp, &snap)
	assert.Equal(t, campaign.PhaseIdle, snap.Phase)
	assert.Len(t, snap.Agents, 10)
	assert.Len(t, snap.MCPServers, 3)

	resp2, err := http.Get(ts.URL + "/v1/servers")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var servers []mcp.Server
	decodeData(t, resp2, &servers)
	assert.Equal(t, mcp.Catalog(), servers)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeData(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/v1/build")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStream(t *testing.T) {
	ts, o := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first streamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, campaign.PhaseIdle, first.Snapshot.Phase)

	require.NoError(t, o.Start("Build a todo app"))
	for {
		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Snapshot != nil && msg.Snapshot.Phase == campaign.PhaseComplete {
			assert.Equal(t, campaign.TotalLines, msg.Snapshot.Metrics.LinesProcessed)
			break
		}
	}
	o.Wait()
}
