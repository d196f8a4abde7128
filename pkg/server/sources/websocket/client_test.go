package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer echoes messages and drops the first connection after one echo.
func echoServer(t *testing.T, connections *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
			if n == 1 {
				return
			}
		}
	}))
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1"})
	require.ErrorIs(t, c.SendJSON(map[string]string{"a": "b"}), ErrNotConnected)
	assert.False(t, c.IsConnected())
}

func TestClient_MaxRetries(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", MaxRetries: 2, ReconnectWait: time.Millisecond})
	err := c.ConnectWithRetry(context.Background())
	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestClient_ReconnectsAndResubscribes(t *testing.T) {
	var connections atomic.Int32
	ts := echoServer(t, &connections)
	defer ts.Close()

	c := NewClient(Config{
		URL:           "ws" + strings.TrimPrefix(ts.URL, "http"),
		ReconnectWait: 10 * time.Millisecond,
	})

	var echoes, connects, disconnects atomic.Int32
	c.SetHandlers(
		func([]byte) { echoes.Add(1) },
		func() {
			connects.Add(1)
			_ = c.SendJSON(map[string]string{"op": "subscribe"})
		},
		func(error) { disconnects.Add(1) },
	)

	require.NoError(t, c.ConnectWithRetry(context.Background()))
	defer func() { _ = c.Close() }()

	require.Eventually(t, func() bool {
		return connects.Load() >= 2 && echoes.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, disconnects.Load(), int32(1))
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
