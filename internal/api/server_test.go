package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattlunn/karen-sub001/internal/capability"
	"github.com/mattlunn/karen-sub001/internal/event"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/config"
	"github.com/mattlunn/karen-sub001/internal/infrastructure/logging"
	"github.com/mattlunn/karen-sub001/internal/presence"
	"github.com/mattlunn/karen-sub001/internal/queue"
)

// commandRecorder captures provider command writes.
type commandRecorder struct {
	mu     sync.Mutex
	writes []string
}

func (c *commandRecorder) Write(_ context.Context, subjectID, property string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, fmt.Sprintf("%s/%s=%g", subjectID, property, value))
	return nil
}

// testCapabilities is the capability catalogue the test server exposes.
var testCapabilities = map[string][]capability.PropertyDescriptor{
	"light": {
		{Name: "on", Kind: capability.KindBool, StorageKey: "on", Writeable: true},
		{Name: "brightness", Kind: capability.KindNumber, StorageKey: "brightness", Writeable: true},
		{Name: "power", Kind: capability.KindNumber, StorageKey: "power", Writeable: false},
	},
}

// newTestServer builds a server over in-memory SQLite with the router
// mounted on httptest. The returned recorder captures commands issued
// through the "mqtt" provider.
func newTestServer(t *testing.T) (*Server, *httptest.Server, *commandRecorder) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE events (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			property_key TEXT NOT NULL,
			value REAL NOT NULL DEFAULT 0,
			start_at INTEGER NOT NULL,
			end_at INTEGER
		) STRICT;
		CREATE TABLE stays (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			arrival INTEGER,
			departure INTEGER,
			eta INTEGER,
			created_at INTEGER NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	store := event.NewStore(event.NewSQLiteRepository(db))
	tracker := presence.NewTracker(
		presence.NewSQLiteRepository(db), queue.New(), store, 90*time.Minute)

	recorder := &commandRecorder{}
	registry := capability.NewRegistry()
	registry.Register("mqtt", capability.HandlerSet{"light": recorder})

	server, err := New(Deps{
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:       logging.Default(),
		Store:        store,
		Tracker:      tracker,
		Registry:     registry,
		Capabilities: testCapabilities,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(server.buildRouter())
	t.Cleanup(func() {
		ts.Close()
		db.Close()
	})
	return server, ts, recorder
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	_, ts, _ := newTestServer(t)

	var body map[string]any
	if status := getJSON(t, ts.URL+"/api/v1/health", &body); status != http.StatusOK {
		t.Fatalf("health status = %d, want 200", status)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
}

func TestStateRoundTrip(t *testing.T) {
	_, ts, _ := newTestServer(t)
	url := ts.URL + "/api/v1/subjects/thermo/properties/temperature"

	resp := doJSON(t, http.MethodPut, url+"/state", map[string]any{"value": 19.5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT state status = %d, want 204", resp.StatusCode)
	}

	var state stateResponse
	if status := getJSON(t, url+"/state", &state); status != http.StatusOK {
		t.Fatalf("GET state status = %d, want 200", status)
	}
	if state.Value != 19.5 || !state.Open {
		t.Errorf("state = %+v, want open interval with value 19.5", state)
	}
}

func TestStateNotFound(t *testing.T) {
	_, ts, _ := newTestServer(t)

	if status := getJSON(t, ts.URL+"/api/v1/subjects/x/properties/y/state", nil); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestStateRejectsStringValue(t *testing.T) {
	_, ts, _ := newTestServer(t)
	url := ts.URL + "/api/v1/subjects/thermo/properties/temperature/state"

	resp := doJSON(t, http.MethodPut, url, map[string]any{"value": "high"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/subjects/light/properties/on"

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPut, base+"/state", map[string]any{"value": true, "timestamp": at})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPut, base+"/state", map[string]any{"value": false, "timestamp": at.Add(5 * time.Minute)})
	resp.Body.Close()

	query := fmt.Sprintf("?start=%s&end=%s&expectGaps=true",
		at.Add(-time.Hour).Format(time.RFC3339), at.Add(time.Hour).Format(time.RFC3339))

	var body struct {
		Intervals []event.Interval `json:"intervals"`
	}
	if status := getJSON(t, base+"/history"+query, &body); status != http.StatusOK {
		t.Fatalf("history status = %d, want 200", status)
	}
	if len(body.Intervals) != 1 {
		t.Fatalf("interval count = %d, want 1", len(body.Intervals))
	}
	if body.Intervals[0].End == nil {
		t.Error("interval not closed in history response")
	}
}

func TestHistoryRequiresWindow(t *testing.T) {
	_, ts, _ := newTestServer(t)

	if status := getJSON(t, ts.URL+"/api/v1/subjects/x/properties/y/history", nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/subjects/thermo/properties/temperature"

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resp := doJSON(t, http.MethodPut, base+"/state", map[string]any{"value": 18.0, "timestamp": at})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPut, base+"/state", map[string]any{"value": 22.0, "timestamp": at.Add(30 * time.Minute)})
	resp.Body.Close()

	query := fmt.Sprintf("?start=%s&end=%s&bucket=1h",
		at.Format(time.RFC3339), at.Add(2*time.Hour).Format(time.RFC3339))

	var body struct {
		Buckets []bucketResponse `json:"buckets"`
	}
	if status := getJSON(t, base+"/aggregate"+query, &body); status != http.StatusOK {
		t.Fatalf("aggregate status = %d, want 200", status)
	}
	if len(body.Buckets) != 2 {
		t.Fatalf("bucket count = %d, want 2", len(body.Buckets))
	}
	first := body.Buckets[0]
	if first.Min == nil || *first.Min != 18.0 {
		t.Errorf("first bucket Min = %v, want 18", first.Min)
	}
	if first.Max == nil || *first.Max != 22.0 {
		t.Errorf("first bucket Max = %v, want 22", first.Max)
	}
}

// TestCommandEndpoint verifies a command reaches the provider handler and
// records nothing: state appears only once the device reports back.
func TestCommandEndpoint(t *testing.T) {
	_, ts, commands := newTestServer(t)
	base := ts.URL + "/api/v1/subjects/lamp/properties/brightness"

	resp := doJSON(t, http.MethodPost, base+"/command", map[string]any{
		"provider":   "mqtt",
		"capability": "light",
		"value":      80.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("command status = %d, want 202", resp.StatusCode)
	}

	commands.mu.Lock()
	writes := append([]string(nil), commands.writes...)
	commands.mu.Unlock()
	if len(writes) != 1 || writes[0] != "lamp/brightness=80" {
		t.Errorf("provider writes = %v, want [lamp/brightness=80]", writes)
	}

	if status := getJSON(t, base+"/state", nil); status != http.StatusNotFound {
		t.Errorf("state status after command = %d, want 404 (nothing recorded)", status)
	}
}

func TestCommandRejectsReadOnlyProperty(t *testing.T) {
	_, ts, commands := newTestServer(t)
	url := ts.URL + "/api/v1/subjects/lamp/properties/power/command"

	resp := doJSON(t, http.MethodPost, url, map[string]any{
		"provider":   "mqtt",
		"capability": "light",
		"value":      1.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("command status = %d, want 400", resp.StatusCode)
	}
	if len(commands.writes) != 0 {
		t.Errorf("provider writes = %v, want none", commands.writes)
	}
}

func TestCommandUnknownProviderOrCapability(t *testing.T) {
	_, ts, _ := newTestServer(t)
	url := ts.URL + "/api/v1/subjects/lamp/properties/on/command"

	resp := doJSON(t, http.MethodPost, url, map[string]any{
		"provider": "zigbee", "capability": "light", "value": 1.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, url, map[string]any{
		"provider": "mqtt", "capability": "siren", "value": 1.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown capability status = %d, want 400", resp.StatusCode)
	}
}

func TestCommandUnknownProperty(t *testing.T) {
	_, ts, _ := newTestServer(t)
	url := ts.URL + "/api/v1/subjects/lamp/properties/hue/command"

	resp := doJSON(t, http.MethodPost, url, map[string]any{
		"provider": "mqtt", "capability": "light", "value": 1.0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("command status = %d, want 404", resp.StatusCode)
	}
}

// TestWebSocketPathConfigurable verifies the WS route follows the
// configured path rather than a hardcoded one.
func TestWebSocketPathConfigurable(t *testing.T) {
	server := &Server{
		wsCfg:  config.WebSocketConfig{Path: "/stream"},
		logger: logging.Default(),
	}
	ts := httptest.NewServer(server.buildRouter())
	defer ts.Close()

	// A plain GET is rejected by the upgrader, not by the router.
	if status := getJSON(t, ts.URL+"/api/v1/stream", nil); status == http.StatusNotFound {
		t.Error("configured websocket path not routed")
	}
	if status := getJSON(t, ts.URL+"/api/v1/ws", nil); status != http.StatusNotFound {
		t.Errorf("default path status = %d, want 404 when a custom path is set", status)
	}
}

func TestPresenceLifecycle(t *testing.T) {
	_, ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/presence/alice"

	var status presenceResponse
	if code := getJSON(t, base+"/", &status); code != http.StatusOK {
		t.Fatalf("presence status = %d, want 200", code)
	}
	if status.Home {
		t.Error("new user reported home")
	}

	resp := doJSON(t, http.MethodPost, base+"/arrive", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("arrive status = %d, want 200", resp.StatusCode)
	}

	// Arriving twice conflicts.
	resp = doJSON(t, http.MethodPost, base+"/arrive", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second arrive status = %d, want 409", resp.StatusCode)
	}

	if code := getJSON(t, base+"/", &status); code != http.StatusOK {
		t.Fatalf("presence status = %d, want 200", code)
	}
	if !status.Home || status.Stay == nil {
		t.Errorf("presence = %+v, want home with stay", status)
	}

	resp = doJSON(t, http.MethodPost, base+"/depart", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("depart status = %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/depart", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second depart status = %d, want 409", resp.StatusCode)
	}
}

func TestRecordETAEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)
	base := ts.URL + "/api/v1/presence/alice"

	resp := doJSON(t, http.MethodPost, base+"/eta", map[string]any{
		"eta": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("eta status = %d, want 201", resp.StatusCode)
	}

	var stay presence.Stay
	if err := json.NewDecoder(resp.Body).Decode(&stay); err != nil {
		t.Fatalf("decoding stay: %v", err)
	}
	if stay.ETA == nil {
		t.Error("created stay has no eta")
	}
	if stay.UserID == nil || *stay.UserID != "alice" {
		t.Errorf("stay UserID = %v, want alice", stay.UserID)
	}
}
