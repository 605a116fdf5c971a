package tdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/tdb-client/pkg/tdb"
	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := ws.DefaultServerConfig()
	cfg.Authorize = ws.StaticCredentials("alice", "secret")
	server := ws.NewServer(cfg)
	server.HandleDefault(ws.EchoHandler)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func params(url, password string) ws.ConnectionParameters {
	return ws.ConnectionParameters{
		URL:      url,
		DBName:   "shop",
		Schema:   "users { name: string }",
		Username: "alice",
		Password: password,
	}
}

func newClient(t *testing.T) *tdb.Client {
	t.Helper()

	cfg := tdb.DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.RequestTimeout = 2 * time.Second
	c := tdb.NewClient(cfg)

	t.Cleanup(func() { _ = c.Close(context.Background()) })

	return c
}

func TestClient_ConnectAndQuery(t *testing.T) {
	ts := newEchoServer(t)
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "c1", params(wsURL(ts), "secret")))
	assert.Equal(t, []string{"c1"}, c.Connections())

	resp, err := c.Query(ctx, "c1", ws.Request{
		Action: ws.ActionInsert,
		Table:  "t",
		Data:   map[string]any{"x": 1},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"insert","table":"t","data":{"x":1}}`, resp.String())
}

func TestClient_WrongPassword(t *testing.T) {
	ts := newEchoServer(t)
	c := newClient(t)

	err := c.Connect(context.Background(), "c1", params(wsURL(ts), "wrong"))
	require.ErrorIs(t, err, ws.ErrHandshakeRejected)

	var hsErr *ws.HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, http.StatusUnauthorized, hsErr.StatusCode)

	assert.Empty(t, c.Connections())

	_, err = c.Query(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestClient_InvalidEndpoint(t *testing.T) {
	c := newClient(t)

	for _, endpoint := range []string{"http://localhost:7085", "ws://localhost:99999999999", "ws://"} {
		err := c.Connect(context.Background(), "c1", params(endpoint, "secret"))
		assert.ErrorIs(t, err, ws.ErrInvalidEndpoint, endpoint)
		assert.NotErrorIs(t, err, ws.ErrNetwork, endpoint)
	}

	assert.Empty(t, c.Connections())
}

func TestClient_ReconnectSameID(t *testing.T) {
	ts := newEchoServer(t)
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "c1", params(wsURL(ts), "secret")))
	require.NoError(t, c.Connect(ctx, "c1", params(wsURL(ts), "secret")))

	assert.Equal(t, []string{"c1"}, c.Connections())

	_, err := c.Query(ctx, "c1", ws.Request{Action: ws.ActionSelect, Table: "t"})
	assert.NoError(t, err)
}

func TestClient_IndependentIDs(t *testing.T) {
	ts := newEchoServer(t)
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "a", params(wsURL(ts), "secret")))
	require.NoError(t, c.Connect(ctx, "b", params(wsURL(ts), "secret")))
	assert.Equal(t, []string{"a", "b"}, c.Connections())

	require.NoError(t, c.Disconnect("a"))

	_, err := c.Query(ctx, "a", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrNotConnected)

	_, err = c.Query(ctx, "b", ws.Request{Action: ws.ActionSelect})
	assert.NoError(t, err)
}

func TestClient_DisconnectUnknown(t *testing.T) {
	c := newClient(t)

	assert.ErrorIs(t, c.Disconnect("nope"), ws.ErrNotConnected)
}

func TestClient_ServerDropsConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		_, _, _ = conn.ReadMessage()
		_ = conn.Close()
	}))
	t.Cleanup(ts.Close)

	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "c1", params(wsURL(ts), "secret")))

	_, err := c.Query(ctx, "c1", ws.Request{Action: ws.ActionSelect})
	require.ErrorIs(t, err, ws.ErrConnectionLost)
	assert.Empty(t, c.Connections())

	_, err = c.Query(ctx, "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestClient_Metrics(t *testing.T) {
	ts := newEchoServer(t)

	m := tdb.NewMetrics(prometheus.NewRegistry())
	cfg := tdb.DefaultConfig()
	cfg.Metrics = m
	c := tdb.NewClient(cfg)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, "c1", params(wsURL(ts), "secret")))
	require.Error(t, c.Connect(ctx, "c2", params(wsURL(ts), "wrong")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connects.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connects.WithLabelValues("handshake_rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenConnections))

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenConnections))
}
