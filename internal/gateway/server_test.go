package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/daemon"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/broadcast"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

func newTestServer(t *testing.T) (*httptest.Server, *broadcast.Broadcaster) {
	t.Helper()
	d := rpc.NewDispatcher()
	d.RegisterFunc(rpc.MethodPing, func(_ context.Context, _ rpc.Params) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	b := broadcast.New(8)
	srv := NewServer("127.0.0.1:0", daemon.PeerConfig{
		Token:      "secret",
		Dispatcher: d,
		Events:     b,
	}, false, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.gateway.Hub.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
		b.Close()
	})
	return ts, b
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *gorillaws.Conn, request string) string {
	t.Helper()
	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(request)))
	return readMessage(t, conn)
}

func readMessage(t *testing.T, conn *gorillaws.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestGateway_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGateway_AuthMessage(t *testing.T) {
	ts, b := newTestServer(t)
	conn := dialWS(t, ts, "")

	assert.JSONEq(t, `{"id":1,"error":{"message":"unauthorized"}}`,
		roundTrip(t, conn, `{"id":1,"method":"ping"}`))
	assert.JSONEq(t, `{"id":2,"result":{"ok":true}}`,
		roundTrip(t, conn, `{"id":2,"method":"auth","params":{"token":"secret"}}`))
	assert.JSONEq(t, `{"id":3,"result":{"ok":true}}`,
		roundTrip(t, conn, `{"id":3,"method":"ping"}`))

	b.Publish([]byte(`{"method":"app-server-event","params":{"n":1}}`))
	assert.JSONEq(t, `{"method":"app-server-event","params":{"n":1}}`, readMessage(t, conn))
}

func TestGateway_QueryToken(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts, "?token=secret")

	assert.JSONEq(t, `{"id":1,"result":{"ok":true}}`,
		roundTrip(t, conn, `{"id":1,"method":"ping"}`))
}

func TestGateway_WrongQueryTokenStillNeedsAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts, "?token=nope")

	assert.JSONEq(t, `{"id":1,"error":{"message":"unauthorized"}}`,
		roundTrip(t, conn, `{"id":1,"method":"ping"}`))
}
