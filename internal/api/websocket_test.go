package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
	"github.com/hiroag/irhub-core/internal/infrastructure/logging"
	"github.com/hiroag/irhub-core/internal/pipeline"
)

type mockGraph struct {
	syncedFor  string
	reportedBy string
	devices    map[string]map[string]any
}

func (m *mockGraph) RequestSync(_ context.Context, agentUserID string) error {
	m.syncedFor = agentUserID
	return nil
}

func (m *mockGraph) ReportState(_ context.Context, agentUserID string, devices map[string]map[string]any) error {
	m.reportedBy = agentUserID
	m.devices = devices
	return nil
}

// newFullServer builds a Server with the graph relay wired and returns both
// the instance and a listening test server.
func newFullServer(t *testing.T, graph GraphRelay) (*Server, *httptest.Server) {
	t.Helper()

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	s, err := New(Deps{
		WS:      config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 60},
		Logger:  logger,
		Devices: &mockDirectory{},
		States:  &mockStates{},
		Queue:   &mockSink{},
		Tokens:  &mockTokens{users: map[string]string{"tok-alice": "alice"}},
		Graph:   graph,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestRequestSyncEndpoint(t *testing.T) {
	graph := &mockGraph{}
	_, srv := newFullServer(t, graph)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/requestsync", nil)
	req.Header.Set("Authorization", "Bearer tok-alice")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "OK" {
		t.Errorf("status field = %v", body["status"])
	}
	if graph.syncedFor != "alice" {
		t.Errorf("synced for %q, want alice", graph.syncedFor)
	}
}

func TestReportStateEndpoint(t *testing.T) {
	graph := &mockGraph{}
	_, srv := newFullServer(t, graph)

	payload := map[string]any{
		"devices": map[string]any{"tv-living": map[string]any{"on": true}},
	}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/reportstate", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer tok-alice")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if graph.reportedBy != "alice" {
		t.Errorf("reported by %q, want alice", graph.reportedBy)
	}
	if _, ok := graph.devices["tv-living"]; !ok {
		t.Errorf("devices = %v", graph.devices)
	}
}

func TestReportState_RequiresDevices(t *testing.T) {
	_, srv := newFullServer(t, &mockGraph{})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/reportstate", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer tok-alice")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	_, srv := newFullServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebSocket_BroadcastsExecutionEvents(t *testing.T) {
	s, srv := newFullServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=tok-alice"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Wait for the hub to register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.hub.Notify(pipeline.Event{
		AliasID:  "tv-living",
		Phase:    pipeline.PhaseAcknowledged,
		Commands: 1,
	})

	//nolint:errcheck // Deadline best-effort; read error below surfaces stalls
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}

	var msg wsEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if msg.Type != "execution" {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.Payload.AliasID != "tv-living" || msg.Payload.Phase != pipeline.PhaseAcknowledged {
		t.Errorf("payload = %+v", msg.Payload)
	}
}
