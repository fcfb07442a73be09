package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"topoviz/internal/layout"
	"topoviz/internal/positions"
	"topoviz/internal/pubsub"
	"topoviz/internal/topo"
	"topoviz/internal/viewstate"
)

type fakeSource struct {
	mu           sync.Mutex
	snap         topo.Snapshot
	fetchErr     error
	discoveryErr error
	pingErr      error
}

func (f *fakeSource) Fetch(context.Context) (topo.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return topo.Snapshot{}, f.fetchErr
	}
	return f.snap, nil
}

func (f *fakeSource) RunDiscovery(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoveryErr
}

func (f *fakeSource) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func strptr(s string) *string { return &s }

func testSnapshot() topo.Snapshot {
	return topo.Snapshot{
		Nodes: []topo.Node{
			{ID: 1, Hostname: "spine-01", IPAddress: "10.0.0.1", DeviceType: "spine", LocationName: strptr("DC1"), Status: topo.StatusUp},
			{ID: 2, Hostname: "leaf-01", IPAddress: "10.0.0.2", DeviceType: "leaf", LocationName: strptr("DC1"), Status: topo.StatusDown},
		},
		Edges: []topo.Edge{
			{ID: 10, Source: 1, Target: 2, LinkType: topo.LinkLLDP},
		},
	}
}

type testEnv struct {
	handler   *Handler
	refresher *viewstate.Refresher
	src       *fakeSource
	store     *positions.Store
	broker    *pubsub.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	src := &fakeSource{snap: testSnapshot()}
	store := positions.NewStore()
	engine := layout.NewEngine(layout.DefaultPresets())
	broker := pubsub.NewBroker()
	t.Cleanup(broker.Close)

	log := NewLogger("error")
	refresher := viewstate.New(log, src, engine, store, broker, nil, viewstate.Options{PollInterval: time.Hour})
	if err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	sessions := viewstate.NewSessions(log, store, refresher, nil, time.Hour)

	return &testEnv{
		handler:   NewHandler(log, refresher, sessions, broker, nil),
		refresher: refresher,
		src:       src,
		store:     store,
		broker:    broker,
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got: %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestReadyZ_OK(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReadyZ_SourceDown(t *testing.T) {
	env := newTestEnv(t)
	env.src.mu.Lock()
	env.src.pingErr = errors.New("connection refused")
	env.src.mu.Unlock()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "source_unavailable" {
		t.Fatalf("expected source_unavailable, got %q", code)
	}
}

func TestGetScene_OK(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/topology/scene", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if body["state"] != "ok" {
		t.Fatalf("expected state ok, got %v", body["state"])
	}
	nodes, ok := body["nodes"].([]any)
	if !ok || len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %v", body["nodes"])
	}
	edges, ok := body["edges"].([]any)
	if !ok || len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %v", body["edges"])
	}
}

func TestGetScene_SearchFades(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/topology/scene?q=leaf", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if body["query"] != "leaf" {
		t.Fatalf("expected query leaf, got %v", body["query"])
	}
	nodes := body["nodes"].([]any)
	opacities := map[string]float64{}
	for _, raw := range nodes {
		n := raw.(map[string]any)
		opacities[n["hostname"].(string)] = n["opacity"].(float64)
	}
	if opacities["spine-01"] != 0.15 {
		t.Fatalf("expected spine-01 faded, got %v", opacities["spine-01"])
	}
	if opacities["leaf-01"] != 1.0 {
		t.Fatalf("expected leaf-01 full, got %v", opacities["leaf-01"])
	}
}

func TestGetScene_ErrorState(t *testing.T) {
	env := newTestEnv(t)
	env.src.mu.Lock()
	env.src.fetchErr = errors.New("upstream gone")
	env.src.mu.Unlock()
	_ = env.refresher.Refresh(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/topology/scene", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if body["state"] != "error" {
		t.Fatalf("expected state error, got %v", body["state"])
	}
	if nodes := body["nodes"].([]any); len(nodes) != 0 {
		t.Fatalf("error scene must not carry stale nodes, got %v", nodes)
	}
}

func TestGetScene_EmptyState(t *testing.T) {
	env := newTestEnv(t)
	env.src.mu.Lock()
	env.src.snap = topo.Snapshot{}
	env.src.mu.Unlock()
	if err := env.refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/topology/scene", nil)
	env.handler.Router().ServeHTTP(rr, req)

	body := decodeBody(t, rr)
	if body["state"] != "empty" {
		t.Fatalf("expected state empty, got %v", body["state"])
	}
}

func TestRefresh_Accepted(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/topology/refresh", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "refresh_scheduled" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestDiscoveryRun_OK(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery/run", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDiscoveryRun_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.src.mu.Lock()
	env.src.discoveryErr = errors.New("discovery busy")
	env.src.mu.Unlock()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery/run", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "discovery_failed" {
		t.Fatalf("expected discovery_failed, got %q", code)
	}

	// The trigger failure must not disturb the rendered scene.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/topology/scene", nil)
	env.handler.Router().ServeHTTP(rr, req)
	if body := decodeBody(t, rr); body["state"] != "ok" {
		t.Fatalf("expected scene still ok, got %v", body["state"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	env.handler.Router().ServeHTTP(rr, req)

	// The handler is wired without a registry here; it must still answer.
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without registry, got %d", rr.Code)
	}
}

func createSession(t *testing.T, env *testEnv) string {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", nil)
	env.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("expected session id in body, got %v", body)
	}
	if body["zoom"] != 1.0 {
		t.Fatalf("expected identity zoom, got %v", body["zoom"])
	}
	return id
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/", nil)
	env.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["mode"] != "idle" {
		t.Fatalf("expected idle mode, got %v", body["mode"])
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id+"/", nil)
	env.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/", nil)
	env.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "not_found" {
		t.Fatalf("expected not_found, got %q", code)
	}
}

func TestSession_GetUnknown(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope/", nil)
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPointer_DragFlow(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	env.store.Set(1, layout.Position{X: 100, Y: 100})

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/pointer", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		env.handler.Router().ServeHTTP(rr, req)
		return rr
	}

	rr := post(`{"type":"down","x":105,"y":103}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["mode"] != "dragging" {
		t.Fatalf("expected dragging, got %v", body["mode"])
	}

	rr = post(`{"type":"move","x":110,"y":103}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	p, ok := env.store.Get(1)
	if !ok {
		t.Fatal("node position missing after drag")
	}
	if p.X != 105 || p.Y != 100 {
		t.Fatalf("expected node at (105,100), got (%v,%v)", p.X, p.Y)
	}

	rr = post(`{"type":"up","x":110,"y":103}`)
	body := decodeBody(t, rr)
	if body["mode"] != "idle" {
		t.Fatalf("expected idle after up, got %v", body["mode"])
	}
	if _, has := body["navigate_to"]; has {
		t.Fatalf("drag must not navigate, got %v", body)
	}
}

func TestPointer_ClickNavigates(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	env.store.Set(2, layout.Position{X: 40, Y: 40})

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/pointer", strings.NewReader(body))
		env.handler.Router().ServeHTTP(rr, req)
		return rr
	}

	post(`{"type":"down","x":40,"y":40}`)
	rr := post(`{"type":"up","x":40,"y":40}`)

	body := decodeBody(t, rr)
	if body["navigate_to"] != 2.0 {
		t.Fatalf("expected navigate_to 2, got %v", body["navigate_to"])
	}
}

func TestPointer_InvalidType(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/pointer", strings.NewReader(`{"type":"hover","x":0,"y":0}`))
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %q", code)
	}
}

func TestPointer_UnknownField(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/pointer", strings.NewReader(`{"type":"down","x":0,"y":0,"button":1}`))
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown field, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestZoom_Delta(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/zoom", strings.NewReader(`{"delta":100}`))
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	zoom := body["zoom"].(float64)
	if zoom < 0.899 || zoom > 0.901 {
		t.Fatalf("expected zoom near 0.9, got %v", zoom)
	}
}

func TestZoom_Action(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/zoom", strings.NewReader(`{"action":"reset"}`))
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["zoom"] != 1.0 {
		t.Fatalf("expected zoom 1 after reset, got %v", body["zoom"])
	}
}

func TestZoom_RequiresExactlyOne(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	for _, body := range []string{`{}`, `{"delta":100,"action":"reset"}`} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/zoom", strings.NewReader(body))
		env.handler.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestZoom_InvalidAction(t *testing.T) {
	env := newTestEnv(t)
	id := createSession(t, env)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/zoom", strings.NewReader(`{"action":"spin"}`))
	env.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStream_DeliversSceneUpdate(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(env.handler.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/topology/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	// The initial refresh already published, so the subscription replays it.
	reader := bufio.NewReader(resp.Body)
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}

	if event != "scene_updated" {
		t.Fatalf("expected scene_updated event, got %q", event)
	}
	var update map[string]any
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if update["state"] != "ok" || update["nodes"] != 2.0 {
		t.Fatalf("unexpected update payload: %v", update)
	}
}
