package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
	"github.com/azybler/roadnet/pkg/rules"
)

// mockAnalyzer implements Analyzer for testing.
type mockAnalyzer struct {
	od     *routing.ODResult
	areas  *routing.ServiceAreaResult
	routes []routing.Route
	freq   *routing.FrequencyResult
	err    error

	k    int
	drop float64
	got  []routing.QueryPoint
}

func (m *mockAnalyzer) ODCostMatrix(ctx context.Context, origins, destinations []routing.QueryPoint, opts ...routing.ODOption) (*routing.ODResult, error) {
	m.got = origins
	return m.od, m.err
}

func (m *mockAnalyzer) ServiceArea(ctx context.Context, origins []routing.QueryPoint, breaks []float64) (*routing.ServiceAreaResult, error) {
	return m.areas, m.err
}

func (m *mockAnalyzer) Routes(ctx context.Context, origins, destinations []routing.QueryPoint) ([]routing.Route, error) {
	return m.routes, m.err
}

func (m *mockAnalyzer) KRoutes(ctx context.Context, origins, destinations []routing.QueryPoint, k int, dropMiddlePercent float64) ([]routing.Route, error) {
	m.k, m.drop = k, dropMiddlePercent
	return m.routes, m.err
}

func (m *mockAnalyzer) RouteFrequencies(ctx context.Context, origins, destinations []routing.QueryPoint) (*routing.FrequencyResult, error) {
	return m.freq, m.err
}

func (m *mockAnalyzer) Rules() rules.Rules { return rules.MustNew(rules.Meters) }

func (m *mockAnalyzer) Stats() routing.Stats {
	return routing.Stats{Nodes: 4, Edges: 4, Arcs: 4, Metric: rules.Meters}
}

func (m *mockAnalyzer) Diagnostics() []network.Diagnostic {
	return []network.Diagnostic{{Code: network.CodeNotDirected, Message: "not directed"}}
}

const pairBody = `{"origins":[{"id":"a","coordinates":[0,0]}],"destinations":[{"coordinates":[20,0]}]}`

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestHandleOD_Success(t *testing.T) {
	mock := &mockAnalyzer{
		od: &routing.ODResult{
			Metric: rules.Meters,
			Rows: []routing.ODRow{
				{Origin: "a", Destination: "0", Cost: 20},
				{Origin: "a", Destination: "1", Cost: math.NaN()},
			},
			MissingByOrigin:      map[string]int{"a": 1},
			MissingByDestination: map[string]int{"0": 0, "1": 1},
		},
	}
	h := NewHandlers(mock, HandlerOptions{})

	w := post(h.HandleOD, "/api/v1/od", pairBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp ODResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("Rows length = %d, want 2", len(resp.Rows))
	}
	if resp.Rows[0].Cost == nil || *resp.Rows[0].Cost != 20 {
		t.Errorf("Rows[0].Cost = %v, want 20", resp.Rows[0].Cost)
	}
	if resp.Rows[1].Cost != nil {
		t.Errorf("Rows[1].Cost = %v, want null", *resp.Rows[1].Cost)
	}
	if resp.MissingRows != 1 {
		t.Errorf("MissingRows = %d, want 1", resp.MissingRows)
	}
	if len(mock.got) != 1 || mock.got[0].ID != "a" || mock.got[0].Point != (orb.Point{0, 0}) {
		t.Errorf("origins passed = %+v", mock.got)
	}
}

func TestHandleOD_InvalidJSON(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{})

	w := post(h.HandleOD, "/api/v1/od", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleOD_MissingContentType(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{})

	req := httptest.NewRequest("POST", "/api/v1/od", strings.NewReader(pairBody))
	w := httptest.NewRecorder()
	h.HandleOD(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func TestHandleOD_BodyTooLarge(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{MaxBody: 16})

	w := post(h.HandleOD, "/api/v1/od", pairBody)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestHandleOD_Validation(t *testing.T) {
	tests := []struct {
		name      string
		space     geo.Space
		body      string
		wantField string
	}{
		{"no origins", geo.Planar, `{"origins":[],"destinations":[{"coordinates":[0,0]}]}`, "origins"},
		{"no destinations", geo.Planar, `{"origins":[{"coordinates":[0,0]}]}`, "destinations"},
		{"latitude out of range", geo.Spherical, `{"origins":[{"coordinates":[10,91]}],"destinations":[{"coordinates":[0,0]}]}`, "origins[0]"},
		{"unknown field", geo.Planar, `{"origins":[{"coordinates":[0,0]}],"destinations":[{"coordinates":[0,0]}],"x":1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockAnalyzer{}, HandlerOptions{Space: tt.space})
			w := post(h.HandleOD, "/api/v1/od", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Field != tt.wantField {
				t.Errorf("field = %q, want %q", resp.Field, tt.wantField)
			}
		})
	}
}

func TestHandleOD_PlanarAllowsLargeCoordinates(t *testing.T) {
	mock := &mockAnalyzer{od: &routing.ODResult{Metric: rules.Meters}}
	h := NewHandlers(mock, HandlerOptions{Space: geo.Planar})

	body := `{"origins":[{"coordinates":[597000,6643000]}],"destinations":[{"coordinates":[598000,6644000]}]}`
	w := post(h.HandleOD, "/api/v1/od", body)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
}

func TestHandleOD_TooManyPoints(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{MaxPoints: 1})

	body := `{"origins":[{"coordinates":[0,0]},{"coordinates":[1,0]}],"destinations":[{"coordinates":[0,0]}]}`
	w := post(h.HandleOD, "/api/v1/od", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", &network.ConfigError{Field: "breaks", Reason: "bad"}, http.StatusBadRequest},
		{"rules", rules.ErrInvalid, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"other", routing.ErrNegativeCost, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockAnalyzer{err: tt.err}, HandlerOptions{})
			w := post(h.HandleServiceArea, "/api/v1/service-area", `{"origins":[{"coordinates":[0,0]}],"breaks":[10]}`)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleRoutes_KRoutes(t *testing.T) {
	mock := &mockAnalyzer{routes: []routing.Route{
		{Origin: "a", Destination: "0", Rank: 1, Cost: 20, EdgeIDs: []int{0, 1}, Geometry: orb.MultiLineString{{{0, 0}, {10, 0}}, {{10, 0}, {20, 0}}}},
		{Origin: "a", Destination: "0", Rank: 2, Cost: 28, EdgeIDs: []int{2, 3}},
	}}
	h := NewHandlers(mock, HandlerOptions{})

	body := `{"origins":[{"id":"a","coordinates":[0,0]}],"destinations":[{"coordinates":[20,0]}],"k":2,"drop_middle_percent":50}`
	w := post(h.HandleRoutes, "/api/v1/routes", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if mock.k != 2 || mock.drop != 50 {
		t.Errorf("KRoutes called with k=%d drop=%v, want 2 and 50", mock.k, mock.drop)
	}

	var resp RoutesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Routes) != 2 || resp.Routes[1].Rank != 2 {
		t.Fatalf("routes = %+v", resp.Routes)
	}
	if resp.Routes[0].Geometry == nil || resp.Routes[0].Geometry.Type != "MultiLineString" {
		t.Errorf("route geometry = %+v, want MultiLineString", resp.Routes[0].Geometry)
	}
	if resp.Metric != rules.Meters {
		t.Errorf("metric = %q, want meters", resp.Metric)
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, HandlerOptions{})

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Nodes != 4 {
		t.Errorf("Nodes = %d, want 4", resp.Nodes)
	}
	if len(resp.Diagnostics) != 1 || resp.Diagnostics[0].Code != network.CodeNotDirected {
		t.Errorf("Diagnostics = %+v", resp.Diagnostics)
	}
}

// fourNodeEngine is A-B (10), B-C (10), B-D (5), D-C (5).
func fourNodeEngine(t *testing.T) *routing.Engine {
	t.Helper()
	a, b, c, d := orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{20, 0}, orb.Point{10, 10}
	net, _, err := network.New([]network.Line{
		{Geometry: orb.LineString{a, b}, Attrs: network.Attrs{"cost": 10.0}},
		{Geometry: orb.LineString{b, c}, Attrs: network.Attrs{"cost": 10.0}},
		{Geometry: orb.LineString{b, d}, Attrs: network.Attrs{"cost": 5.0}},
		{Geometry: orb.LineString{d, c}, Attrs: network.Attrs{"cost": 5.0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	e, err := routing.NewEngine(net, rules.MustNew("cost", rules.WithSearchFactor(0)))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRouterEndToEnd(t *testing.T) {
	h := NewHandlers(fourNodeEngine(t), HandlerOptions{})
	srv := httptest.NewServer(NewRouter(DefaultConfig(""), h, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/od", "application/json", strings.NewReader(pairBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	var od ODResponse
	if err := json.NewDecoder(resp.Body).Decode(&od); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if od.Metric != "cost" || len(od.Rows) != 1 || od.Rows[0].Cost == nil || *od.Rows[0].Cost != 20 {
		t.Errorf("od = %+v", od)
	}

	get, err := http.Get(srv.URL + "/api/v1/od")
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/v1/od status = %d, want 405", get.StatusCode)
	}
}

// blockingHandler holds requests until released.
type blockingHandler struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.entered <- struct{}{}
	<-b.release
}

func TestLimitConcurrency(t *testing.T) {
	bh := &blockingHandler{entered: make(chan struct{}, 1), release: make(chan struct{})}
	handler := limitConcurrency(1)(bh)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}()
	<-bh.entered

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}

	close(bh.release)
	wg.Wait()
}

func TestRecoverer(t *testing.T) {
	handler := recoverer(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	handler := timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if deadline.IsZero() {
		t.Error("request context has no deadline")
	}
}
