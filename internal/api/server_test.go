// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/flowshell/internal/burst"
	"grimm.is/flowshell/internal/controller"
	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/topology"
	"grimm.is/flowshell/internal/traffic"
)

type testEnv struct {
	server   *Server
	table    *flowtable.Table
	counter  *traffic.Counter
	registry *dispatch.Registry
	topo     *topology.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.New(logging.Config{Level: logging.LevelError})
	m := metrics.NewEngine()

	tbl := flowtable.New(flowtable.Options{Logger: logger, Metrics: m})
	counter := traffic.NewCounter(m)
	reg := dispatch.NewRegistry(m)
	topo := topology.NewStore(topology.Topology{
		Switches: []topology.Switch{{ID: "s1", DPID: 1}},
		Links:    []topology.Link{},
	}, logger)
	ctrl := controller.New(controller.Options{
		Table: tbl, Counter: counter, Registry: reg, Topology: topo, Logger: logger,
	})

	cfg := DefaultServerConfig()
	cfg.StreamInterval = 10 * time.Millisecond

	srv := NewServer(Options{
		Table:      tbl,
		Counter:    counter,
		Controller: ctrl,
		Injector:   burst.NewInjector(counter, logger, m),
		Topology:   topo,
		Registry:   reg,
		Metrics:    m,
		Mode:       "simulated",
		Config:     cfg,
		Logger:     logger,
	})
	return &testEnv{server: srv, table: tbl, counter: counter, registry: reg, topo: topo}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.counter.ResetTo(42)
	env.table.Install(flowtable.Entry{ID: "a", Priority: 100})
	env.topo.SwitchUp(1)

	rr := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)

	doc := decode[MetricsDocument](t, rr)
	assert.Equal(t, int64(42), doc.PacketCount)
	assert.Equal(t, 1, doc.Flows)
	assert.Len(t, doc.Topology.Switches, 1)
	assert.Len(t, doc.Topology.Live, 1)
}

func TestSimulateBurst(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		form   string
		want   int64
	}{
		{"query", http.MethodGet, "/simulate_burst?amount=300", "", 300},
		{"absent", http.MethodGet, "/simulate_burst", "", 2000},
		{"unparsable", http.MethodGet, "/simulate_burst?amount=abc", "", 2000},
		{"negative", http.MethodGet, "/simulate_burst?amount=-4", "", 2000},
		{"post query", http.MethodPost, "/simulate_burst?amount=10", "", 10},
		{"post form", http.MethodPost, "/simulate_burst", "amount=75", 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.counter.Increment(999)

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.form))
			if tt.form != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rr := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			res := decode[map[string]int64](t, rr)
			assert.Equal(t, map[string]int64{"packet_count": tt.want, "added": tt.want}, res)
			assert.Equal(t, tt.want, env.counter.Read())
		})
	}
}

func TestSimulateBurst_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodDelete, "/simulate_burst", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFlows_CRUD(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/flows", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/flows",
		`{"id":"web","match":{"in_port":1},"actions":[{"type":"OUTPUT","port":2}],"priority":200}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[flowtable.Entry](t, rr)
	assert.Equal(t, "web", created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	rr = env.do(t, http.MethodPost, "/flows", `{"id":"web","priority":200}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/flows", "")
	flows := decode[map[string]flowtable.Entry](t, rr)
	require.Contains(t, flows, "web")
	assert.Equal(t, 200, flows["web"].Priority)

	rr = env.do(t, http.MethodPut, "/flows/web", `{"match":{"in_port":1},"priority":300}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 300, decode[flowtable.Entry](t, rr).Priority)

	rr = env.do(t, http.MethodPut, "/flows/new", `{"priority":100}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPut, "/flows/web", `{"id":"other","priority":100}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/flows/web", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodDelete, "/flows/web", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodDelete, "/flows/web", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Error, "not found")

	rr = env.do(t, http.MethodGet, "/flows/web", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, 1, env.table.Len())
}

func TestFlows_BadBody(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{`, `{"priority":"high"}`, `{"unknown":1}`, `{"priority":-1}`} {
		rr := env.do(t, http.MethodPost, "/flows", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Equal(t, 0, env.table.Len())
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	big := `{"id":"x","metadata":{"pad":"` + strings.Repeat("a", 2<<20) + `"}}`
	rr := env.do(t, http.MethodPost, "/flows", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestTopologyAndStatus(t *testing.T) {
	env := newTestEnv(t)
	env.registry.Connect(dispatch.NewChannelDatapath(3, 1))

	rr := env.do(t, http.MethodGet, "/topology", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[topology.Document](t, rr).Switches, 1)

	rr = env.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[StatusDocument](t, rr)
	assert.Equal(t, "simulated", status.Mode)
	assert.Equal(t, []uint64{3}, status.Datapaths)
	assert.Nil(t, status.LastTick)
}

func TestPrometheus(t *testing.T) {
	env := newTestEnv(t)
	env.counter.Increment(5)

	rr := env.do(t, http.MethodGet, "/api/prometheus", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "flowshell_packet_count 5")
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "/ws/metrics")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws/metrics"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	var first MetricsDocument
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, int64(0), first.PacketCount)

	env.counter.ResetTo(123)
	require.Eventually(t, func() bool {
		var doc MetricsDocument
		if err := conn.ReadJSON(&doc); err != nil {
			return false
		}
		return doc.PacketCount == 123
	}, time.Second, time.Millisecond)
}

func TestServe_ShutdownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
