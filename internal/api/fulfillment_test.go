package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hiroag/irhub-core/internal/auth"
	"github.com/hiroag/irhub-core/internal/infrastructure/config"
	"github.com/hiroag/irhub-core/internal/infrastructure/logging"
	"github.com/hiroag/irhub-core/internal/queue"
	"github.com/hiroag/irhub-core/internal/registry"
)

type mockDirectory struct {
	devices map[string][]registry.OwnedDevice
	err     error
}

func (m *mockDirectory) ListForUser(_ context.Context, userID string) ([]registry.OwnedDevice, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.devices[userID], nil
}

type mockStates struct {
	states map[string]map[string]any
}

func (m *mockStates) Get(_ context.Context, aliasID string) (map[string]any, error) {
	if s, ok := m.states[aliasID]; ok {
		return s, nil
	}
	return map[string]any{}, nil
}

func (m *mockStates) Merge(_ context.Context, _ string, _ map[string]any) error {
	return nil
}

type mockSink struct {
	sets    map[string][]queue.Command
	failFor string
}

func (m *mockSink) Set(aliasID string, commands []queue.Command) error {
	if aliasID == m.failFor {
		return errors.New("broker unavailable")
	}
	if m.sets == nil {
		m.sets = make(map[string][]queue.Command)
	}
	m.sets[aliasID] = commands
	return nil
}

type mockTokens struct {
	users map[string]string // access token -> user id
	code  string
	pair  *auth.TokenPair
	err   error
}

func (m *mockTokens) Authorize(_ context.Context, _, _, _ string) (string, error) {
	return m.code, m.err
}

func (m *mockTokens) Exchange(_ context.Context, _, _, _, _ string) (*auth.TokenPair, error) {
	return m.pair, m.err
}

func (m *mockTokens) Refresh(_ context.Context, _, _, _ string) (*auth.TokenPair, error) {
	return m.pair, m.err
}

func (m *mockTokens) Authenticate(_ context.Context, accessToken string) (string, error) {
	if userID, ok := m.users[accessToken]; ok {
		return userID, nil
	}
	return "", auth.ErrTokenInvalid
}

type testDeps struct {
	directory *mockDirectory
	states    *mockStates
	sink      *mockSink
	tokens    *mockTokens
}

func newTestServer(t *testing.T, d testDeps) *httptest.Server {
	t.Helper()

	if d.directory == nil {
		d.directory = &mockDirectory{}
	}
	if d.states == nil {
		d.states = &mockStates{}
	}
	if d.sink == nil {
		d.sink = &mockSink{}
	}
	if d.tokens == nil {
		d.tokens = &mockTokens{users: map[string]string{"tok-alice": "alice"}}
	}

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	s, err := New(Deps{
		Logger:  logger,
		Devices: d.directory,
		States:  d.states,
		Queue:   d.sink,
		Tokens:  d.tokens,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func postIntent(t *testing.T, srv *httptest.Server, token string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/fulfillment", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestFulfillment_RequiresBearer(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postIntent(t, srv, "", map[string]any{"requestId": "r1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	resp2 := postIntent(t, srv, "tok-unknown", map[string]any{"requestId": "r1"})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp2.StatusCode)
	}
}

func TestFulfillment_MissingInputs(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postIntent(t, srv, "tok-alice", map[string]any{"requestId": "r1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSync(t *testing.T) {
	directory := &mockDirectory{devices: map[string][]registry.OwnedDevice{
		"alice": {
			{
				ID:   "tv-living",
				Name: "Living Room TV",
				Device: registry.Device{
					ID:              "d1",
					Type:            "action.devices.types.TV",
					Manufacturer:    "Acme",
					Model:           "TV-900",
					Name:            "Acme Smart TV",
					Traits:          []string{"action.devices.traits.OnOff"},
					WillReportState: false,
				},
			},
			{
				ID:     "fan-bedroom",
				Name:   "Bedroom Fan",
				Device: registry.Device{ID: "d2", Type: "action.devices.types.FAN"},
			},
		},
	}}
	srv := newTestServer(t, testDeps{directory: directory})

	resp := postIntent(t, srv, "tok-alice", map[string]any{
		"requestId": "r-sync",
		"inputs":    []map[string]any{{"intent": IntentSync}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["requestId"] != "r-sync" {
		t.Errorf("requestId = %v", body["requestId"])
	}
	payload := body["payload"].(map[string]any)
	if payload["agentUserId"] != "alice" {
		t.Errorf("agentUserId = %v", payload["agentUserId"])
	}

	devices := payload["devices"].([]any)
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}

	first := devices[0].(map[string]any)
	if first["id"] != "tv-living" {
		t.Errorf("device id = %v", first["id"])
	}
	name := first["name"].(map[string]any)
	if name["name"] != "Acme Smart TV" {
		t.Errorf("name = %v", name["name"])
	}
	nicknames := name["nicknames"].([]any)
	if len(nicknames) != 1 || nicknames[0] != "Living Room TV" {
		t.Errorf("nicknames = %v", nicknames)
	}
	info := first["deviceInfo"].(map[string]any)
	if info["manufacturer"] != "Acme" || info["model"] != "TV-900" {
		t.Errorf("deviceInfo = %v", info)
	}

	// Nameless device falls back to its canonical ID.
	second := devices[1].(map[string]any)
	secondName := second["name"].(map[string]any)
	if secondName["name"] != "d2" {
		t.Errorf("fallback name = %v", secondName["name"])
	}
	if _, ok := second["traits"].([]any); !ok {
		t.Error("traits missing on device without traits")
	}
}

func TestSync_NameFallbackManufacturerModel(t *testing.T) {
	got := buildSyncDevice(registry.OwnedDevice{
		ID:     "ac-study",
		Name:   "Study AC",
		Device: registry.Device{ID: "d3", Manufacturer: "Coolco", Model: "X2"},
	})
	if got.Name.Name != "Coolco X2" {
		t.Errorf("name = %q, want %q", got.Name.Name, "Coolco X2")
	}
	if got.Name.DefaultNames[0] != "Coolco X2" {
		t.Errorf("defaultNames = %v", got.Name.DefaultNames)
	}
}

func TestQuery(t *testing.T) {
	states := &mockStates{states: map[string]map[string]any{
		"tv-living": {"on": true, "brightness": float64(70)},
	}}
	srv := newTestServer(t, testDeps{states: states})

	resp := postIntent(t, srv, "tok-alice", map[string]any{
		"requestId": "r-query",
		"inputs": []map[string]any{{
			"intent": IntentQuery,
			"payload": map[string]any{
				"devices": []map[string]any{{"id": "tv-living"}, {"id": "fan-bedroom"}},
			},
		}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	devices := body["payload"].(map[string]any)["devices"].(map[string]any)
	tv := devices["tv-living"].(map[string]any)
	if tv["on"] != true {
		t.Errorf("tv state = %v", tv)
	}

	// Unknown device yields an empty state map, not an error.
	fan, ok := devices["fan-bedroom"].(map[string]any)
	if !ok || len(fan) != 0 {
		t.Errorf("fan state = %v, want empty map", devices["fan-bedroom"])
	}
}

func TestExecute(t *testing.T) {
	sink := &mockSink{}
	srv := newTestServer(t, testDeps{sink: sink})

	resp := postIntent(t, srv, "tok-alice", map[string]any{
		"requestId": "r-exec",
		"inputs": []map[string]any{{
			"intent": IntentExecute,
			"payload": map[string]any{
				"commands": []map[string]any{{
					"devices": []map[string]any{{"id": "tv-living"}, {"id": "tv-kitchen"}},
					"execution": []map[string]any{{
						"command": "action.devices.commands.OnOff",
						"params":  map[string]any{"on": true},
					}},
				}},
			},
		}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	commands := body["payload"].(map[string]any)["commands"].([]any)
	if len(commands) != 2 {
		t.Fatalf("commands = %d, want 2", len(commands))
	}
	for _, c := range commands {
		entry := c.(map[string]any)
		if entry["status"] != "SUCCESS" {
			t.Errorf("status = %v, want SUCCESS", entry["status"])
		}
	}

	// Both devices received the same batch.
	if len(sink.sets) != 2 {
		t.Fatalf("enqueued %d devices, want 2", len(sink.sets))
	}
	batch := sink.sets["tv-living"]
	if len(batch) != 1 || batch[0].Command != "action.devices.commands.OnOff" {
		t.Errorf("batch = %+v", batch)
	}
	if on, _ := batch[0].Params["on"].(bool); !on {
		t.Errorf("params = %v", batch[0].Params)
	}
}

func TestExecute_EnqueueFailure(t *testing.T) {
	sink := &mockSink{failFor: "tv-broken"}
	srv := newTestServer(t, testDeps{sink: sink})

	resp := postIntent(t, srv, "tok-alice", map[string]any{
		"requestId": "r-exec",
		"inputs": []map[string]any{{
			"intent": IntentExecute,
			"payload": map[string]any{
				"commands": []map[string]any{{
					"devices": []map[string]any{{"id": "tv-broken"}, {"id": "tv-living"}},
					"execution": []map[string]any{{
						"command": "action.devices.commands.OnOff",
						"params":  map[string]any{"on": false},
					}},
				}},
			},
		}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	commands := body["payload"].(map[string]any)["commands"].([]any)
	statuses := map[string]string{}
	for _, c := range commands {
		entry := c.(map[string]any)
		ids := entry["ids"].([]any)
		statuses[ids[0].(string)] = entry["status"].(string)
	}
	if statuses["tv-broken"] != "ERROR" {
		t.Errorf("tv-broken status = %q, want ERROR", statuses["tv-broken"])
	}
	if statuses["tv-living"] != "SUCCESS" {
		t.Errorf("tv-living status = %q, want SUCCESS", statuses["tv-living"])
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp, err := srv.Client().Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}
