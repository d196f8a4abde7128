package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

type stubBuilder struct {
	calls int
	snap  *snapshot.Snapshot
}

func (b *stubBuilder) Build() *snapshot.Snapshot {
	b.calls++
	return b.snap
}

type stubHealth struct {
	name    string
	healthy bool
	last    time.Time
}

func (h stubHealth) Name() string          { return h.name }
func (h stubHealth) IsHealthy() bool       { return h.healthy }
func (h stubHealth) LastUpdate() time.Time { return h.last }

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Metadata: []snapshot.Field{
			{Key: "krakenTs", Value: 1700000000},
			{Key: "krakenCount", Value: 2},
		},
		Data: []sources.Rate{
			{Base: "XMR", Counter: "EUR", Price: 140, Timestamp: 1700000000, Provider: sources.AggregateProvider},
			{Base: "XMR", Counter: "USD", Price: 150, Timestamp: 1700000000, Provider: sources.AggregateProvider},
		},
	}
}

func TestServer_SnapshotEndpoints(t *testing.T) {
	builder := &stubBuilder{snap: testSnapshot()}
	srv := NewServer(Options{Version: "1.0.0"}, builder, nil, nil, nil)

	for _, path := range []string{"/getAllMarketPrices", "/v1/prices"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			assert.True(t, strings.HasPrefix(body, `{"krakenTs":1700000000,"krakenCount":2,"data":[`), body)
		})
	}
	assert.Equal(t, 2, builder.calls)
}

func TestServer_RejectsPost(t *testing.T) {
	srv := NewServer(Options{}, &stubBuilder{snap: testSnapshot()}, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/getAllMarketPrices", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Version(t *testing.T) {
	srv := NewServer(Options{Version: "1.2.3"}, &stubBuilder{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.2.3"}`, rec.Body.String())
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name   string
		health []HealthReporter
		status int
	}{
		{name: "no sources", status: http.StatusOK},
		{
			name: "one healthy",
			health: []HealthReporter{
				stubHealth{name: "kraken", healthy: true, last: time.Unix(1700000000, 0)},
				stubHealth{name: "static"},
			},
			status: http.StatusOK,
		},
		{
			name:   "all down",
			health: []HealthReporter{stubHealth{name: "kraken"}},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Options{}, &stubBuilder{}, tt.health, nil, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.status, rec.Code)

			var body struct {
				Status  string                  `json:"status"`
				Sources map[string]sourceHealth `json:"sources"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Sources, len(tt.health))
		})
	}
}

func TestServer_MetricsRoute(t *testing.T) {
	srv := NewServer(Options{MetricsPath: "/metrics"}, &stubBuilder{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(Options{}, &stubBuilder{}, nil, nil, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter_PerClient(t *testing.T) {
	srv := NewServer(Options{Version: "v", RateLimit: true, RequestsPerSec: 0.001, Burst: 2}, &stubBuilder{}, nil, nil, nil)

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/version", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.getLimiter("a")
	rl.getLimiter("b")
	rl.Cleanup(5)
	assert.Len(t, rl.limiters, 2)
	rl.Cleanup(1)
	assert.Empty(t, rl.limiters)
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	size := func() int {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.limiters)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl.StartCleanup(ctx, 5*time.Millisecond, 1)
	rl.getLimiter("a")
	rl.getLimiter("b")
	require.Eventually(t, func() bool { return size() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	rl.getLimiter("a")
	rl.getLimiter("b")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, size())
}

func TestServer_StopEndsLimiterCleanup(t *testing.T) {
	srv := NewServer(Options{Addr: "127.0.0.1:0", RateLimit: true, RequestsPerSec: 10, Burst: 1}, &stubBuilder{}, nil, nil, nil)
	require.NotNil(t, srv.limiter)
	require.NoError(t, srv.ctx.Err())

	require.NoError(t, srv.Stop(context.Background()))
	assert.ErrorIs(t, srv.ctx.Err(), context.Canceled)
}

func TestWebSocket_BroadcastsSnapshots(t *testing.T) {
	ws := NewWebSocketServer(nil)
	go ws.Run()
	defer func() { _ = ws.Close() }()

	srv := NewServer(Options{WebSocketPath: "/ws"}, &stubBuilder{}, nil, ws, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	all, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer all.Close()

	eurOnly, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer eurOnly.Close()
	require.NoError(t, eurOnly.WriteJSON(WebSocketMessage{Type: "subscribe", Currencies: []string{"eur"}}))

	require.Eventually(t, func() bool { return ws.ClientCount() == 2 }, time.Second, 10*time.Millisecond)
	// Give the subscribe message time to be processed.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.Publish(context.Background(), testSnapshot()))

	var full map[string]json.RawMessage
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, all.ReadJSON(&full))
	var fullRates []sources.Rate
	require.NoError(t, json.Unmarshal(full["data"], &fullRates))
	assert.Len(t, fullRates, 2)

	var filtered map[string]json.RawMessage
	require.NoError(t, eurOnly.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, eurOnly.ReadJSON(&filtered))
	var eurRates []sources.Rate
	require.NoError(t, json.Unmarshal(filtered["data"], &eurRates))
	require.Len(t, eurRates, 1)
	assert.Equal(t, "EUR", eurRates[0].Counter)
	assert.Contains(t, filtered, "krakenTs")
}

func TestWebSocket_CloseWithActiveClients(t *testing.T) {
	ws := NewWebSocketServer(nil)
	go ws.Run()

	srv := NewServer(Options{WebSocketPath: "/ws"}, &stubBuilder{}, nil, ws, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, ws.Close())

	// Pings racing the shutdown must not reach a closed send channel.
	for i := 0; i < 20; i++ {
		if err := conn.WriteJSON(WebSocketMessage{Type: "ping"}); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return ws.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.Error(t, err)

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer late.Close()
		require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = late.ReadMessage()
		assert.Error(t, err)
	}
	assert.Zero(t, ws.ClientCount())
}
